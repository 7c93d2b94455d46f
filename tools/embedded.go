package tools

import (
	"embed"
	"io/fs"
)

// Embedded search data snapshot: shards plus searchdata.js.
// It is extracted to the data directory on first start so the server
// answers lookups before any manifest has been indexed.

//go:embed data/search/*
var embeddedFS embed.FS

// snapshotDir is the directory of the snapshot inside every DataProvider
const snapshotDir = "data/search"

type embeddedDataProvider struct {
	fs embed.FS
}

// NewEmbeddedDataProvider returns the provider backed by the compiled-in snapshot
func NewEmbeddedDataProvider() DataProvider {
	return &embeddedDataProvider{fs: embeddedFS}
}

func (p *embeddedDataProvider) ReadFile(name string) ([]byte, error) {
	return p.fs.ReadFile(name)
}

func (p *embeddedDataProvider) ReadDir(name string) ([]fs.DirEntry, error) {
	return p.fs.ReadDir(name)
}

var defaultDataProvider DataProvider = NewEmbeddedDataProvider()
