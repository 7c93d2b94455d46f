package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sync"

	"github.com/doxsearch/mcp-server/internal/searchdata"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

var (
	// ErrNotLoaded is returned when no catalog has been loaded yet
	ErrNotLoaded = errors.New("search data not loaded")

	// ErrUnknownSection is returned for a section the catalog has no shards for
	ErrUnknownSection = errors.New("unknown section")

	// ErrNoIndex is returned by full-text searches on a catalog without a symbol index
	ErrNoIndex = errors.New("no symbol index attached")
)

// Catalog is a read-only view over one directory of shards.
// Shards are decoded on first use and cached.
type Catalog struct {
	fsys     fs.FS
	source   string
	sections []searchdata.SectionContent

	mu     sync.Mutex
	shards map[string][]searchdata.SearchEntry

	index Index
}

// Open loads the catalog in a search directory on disk
func Open(dir string) (*Catalog, error) {
	return OpenFS(os.DirFS(dir), dir)
}

// OpenFS loads a catalog from fsys; source names it in logs and results
func OpenFS(fsys fs.FS, source string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, searchdata.SectionIndexFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", searchdata.SectionIndexFile, err)
	}
	sections, err := searchdata.UnmarshalSectionIndex(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", searchdata.SectionIndexFile, err)
	}

	return &Catalog{
		fsys:     fsys,
		source:   source,
		sections: sections,
		shards:   make(map[string][]searchdata.SearchEntry),
	}, nil
}

// Load opens dir and attaches the symbol index at indexPath.
// An index built from other search data, or no index at all, is replaced by
// an in-memory one built from the "all" section.
func Load(dir, indexPath string) (*Catalog, error) {
	c, err := Open(dir)
	if err != nil {
		return nil, err
	}

	if indexPath != "" {
		if _, statErr := os.Stat(indexPath); statErr == nil {
			fingerprint, err := Fingerprint(dir)
			if err != nil {
				return nil, err
			}
			idx, err := OpenSymbolIndexFor(indexPath, fingerprint)
			switch {
			case err == nil:
				c.AttachIndex(idx)
				return c, nil
			case errors.Is(err, ErrStaleIndex):
				log.Printf("Warning: Symbol index at %q does not match %s, using in-memory index", indexPath, dir)
			default:
				return nil, err
			}
		} else {
			log.Printf("Symbol index not found at %q, using in-memory index", indexPath)
		}
	}

	entries, err := c.Entries(searchdata.Sections[0].Name)
	if err != nil && !errors.Is(err, ErrUnknownSection) {
		return nil, err
	}
	idx, err := NewMemSymbolIndex(entries)
	if err != nil {
		return nil, err
	}
	c.AttachIndex(idx)
	log.Printf("✓ In-memory symbol index ready (%d entries)", len(entries))
	return c, nil
}

// Source returns where the catalog was loaded from
func (c *Catalog) Source() string {
	return c.source
}

// Sections lists the sections with content, ordered by number
func (c *Catalog) Sections() []searchdata.SectionContent {
	return c.sections
}

func (c *Catalog) section(name string) (searchdata.SectionContent, error) {
	for _, sc := range c.sections {
		if sc.Section.Name == name {
			return sc, nil
		}
	}
	return searchdata.SectionContent{}, fmt.Errorf("%w: %q", ErrUnknownSection, name)
}

// Shard returns the decoded entries of a section's shard
func (c *Catalog) Shard(section string, index int) ([]searchdata.SearchEntry, error) {
	name := searchdata.ShardFileName(section, index)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entries, ok := c.shards[name]; ok {
		return entries, nil
	}

	data, err := fs.ReadFile(c.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read shard %s: %w", name, err)
	}
	entries, err := searchdata.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("shard %s: %w", name, err)
	}
	c.shards[name] = entries
	return entries, nil
}

// ReadFile returns the raw bytes of a shard or of searchdata.js
func (c *Catalog) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(c.fsys, name)
}

// Lookup finds the entries of a section whose key starts with the key of query.
// Only the shard of the query's bucket character is consulted, like the search widget does.
func (c *Catalog) Lookup(section, query string, limit int) ([]searchdata.SearchEntry, error) {
	if section == "" {
		section = searchdata.Sections[0].Name
	}
	sc, err := c.section(section)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return nil, nil
	}
	limit = clampLimit(limit)

	bucket := searchdata.BucketChar(query)
	shardIndex := -1
	for i, ch := range sc.Chars {
		if ch == bucket {
			shardIndex = i
			break
		}
	}
	if shardIndex < 0 {
		return nil, nil
	}

	entries, err := c.Shard(section, shardIndex)
	if err != nil {
		return nil, err
	}

	prefix := searchdata.QueryKey(query)
	var matches []searchdata.SearchEntry
	for _, entry := range entries {
		if len(entry.Key) >= len(prefix) && entry.Key[:len(prefix)] == prefix {
			matches = append(matches, entry)
			if len(matches) == limit {
				break
			}
		}
	}
	return matches, nil
}

// Entries decodes every shard of a section
func (c *Catalog) Entries(section string) ([]searchdata.SearchEntry, error) {
	sc, err := c.section(section)
	if err != nil {
		return nil, err
	}
	var all []searchdata.SearchEntry
	for i := range sc.Chars {
		entries, err := c.Shard(section, i)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// EntryCount counts the entries of the "all" section
func (c *Catalog) EntryCount() (int, error) {
	entries, err := c.Entries(searchdata.Sections[0].Name)
	if err != nil {
		if errors.Is(err, ErrUnknownSection) {
			return 0, nil
		}
		return 0, err
	}
	return len(entries), nil
}

// AttachIndex makes idx available for full-text searches; the catalog takes ownership
func (c *Catalog) AttachIndex(idx Index) {
	c.index = idx
}

// Search runs a full-text query against the attached symbol index
func (c *Catalog) Search(query string, limit int) ([]SymbolHit, uint64, error) {
	if c.index == nil {
		return nil, 0, ErrNoIndex
	}
	return SearchSymbols(c.index, query, clampLimit(limit))
}

// Close releases the attached symbol index
func (c *Catalog) Close() error {
	if c.index == nil {
		return nil
	}
	return c.index.Close()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
