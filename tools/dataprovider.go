package tools

import (
	"io/fs"
)

// DataProvider gives access to the search data snapshot shipped with the binary.
// Names are relative to the data root, e.g. "data/search/searchdata.js".
//
// Implementations:
//   - embeddedDataProvider: the snapshot compiled in with embed.FS
//   - MockDataProvider: an in-memory file set for tests
type DataProvider interface {
	ReadFile(name string) ([]byte, error)
	ReadDir(name string) ([]fs.DirEntry, error)
}
