package catalog

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doxsearch/mcp-server/internal/searchdata"
)

// Holder manages concurrent access to the active catalog.
// Lookups never block: each catalog is reference counted, the holder keeps one
// reference while the catalog is active, and whoever drops the last reference closes it.
type Holder struct {
	// current holds the active catalog (atomic access for lock-free reads)
	current atomic.Pointer[lease]

	// refreshMu prevents concurrent reloads
	// NOT used for lookups
	refreshMu sync.Mutex

	loadedAt atomic.Int64
}

// lease counts the users of one catalog
type lease struct {
	catalog  *Catalog
	refs     atomic.Int64
	storedAt time.Time
}

func newLease(c *Catalog) *lease {
	l := &lease{catalog: c, storedAt: time.Now()}
	l.refs.Store(1)
	return l
}

// tryRef takes a reference unless the catalog was already released for good
func (l *lease) tryRef() bool {
	for {
		n := l.refs.Load()
		if n == 0 {
			return false
		}
		if l.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops a reference and closes the catalog when it was the last one
func (l *lease) release() error {
	if l.refs.Add(-1) != 0 {
		return nil
	}
	if err := l.catalog.Close(); err != nil {
		log.Printf("Warning: Error closing catalog %s: %v", l.catalog.Source(), err)
		return err
	}
	log.Printf("✓ Catalog %s closed (active for %v)", l.catalog.Source(), time.Since(l.storedAt).Round(time.Millisecond))
	return nil
}

// NewHolder returns a holder with no catalog loaded
func NewHolder() *Holder {
	return &Holder{}
}

// Current returns the active catalog or nil
func (h *Holder) Current() *Catalog {
	if l := h.current.Load(); l != nil {
		return l.catalog
	}
	return nil
}

// LoadedAt returns when the active catalog was installed
func (h *Holder) LoadedAt() time.Time {
	ns := h.loadedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// acquire references the active catalog
func (h *Holder) acquire() (*lease, error) {
	for {
		l := h.current.Load()
		if l == nil {
			return nil, ErrNotLoaded
		}
		if l.tryRef() {
			return l, nil
		}
		// Replaced and fully released since Load; the next Load sees its successor
	}
}

// Use runs fn against the active catalog, keeping it open until fn returns
func (h *Holder) Use(fn func(*Catalog) error) error {
	l, err := h.acquire()
	if err != nil {
		return err
	}
	defer l.release()
	return fn(l.catalog)
}

// Lookup runs a prefix lookup on the active catalog
func (h *Holder) Lookup(section, query string, limit int) ([]searchdata.SearchEntry, error) {
	var entries []searchdata.SearchEntry
	err := h.Use(func(c *Catalog) error {
		var err error
		entries, err = c.Lookup(section, query, limit)
		return err
	})
	return entries, err
}

// Search runs a full-text query on the active catalog
func (h *Holder) Search(query string, limit int) ([]SymbolHit, uint64, error) {
	var (
		hits  []SymbolHit
		total uint64
	)
	err := h.Use(func(c *Catalog) error {
		var err error
		hits, total, err = c.Search(query, limit)
		return err
	})
	return hits, total, err
}

// Store installs c. The previous catalog is closed once its in-flight lookups finish.
func (h *Holder) Store(c *Catalog) {
	if cur := h.current.Load(); cur != nil && cur.catalog == c {
		return
	}
	old := h.current.Swap(newLease(c))
	h.loadedAt.Store(time.Now().UnixNano())
	if old != nil {
		old.release()
	}
}

// Reload serializes calls to load and installs the result
func (h *Holder) Reload(load func() (*Catalog, error)) (*Catalog, error) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	startTime := time.Now()
	c, err := load()
	if err != nil {
		return nil, fmt.Errorf("reload failed: %w", err)
	}
	h.Store(c)
	log.Printf("✓ Catalog reloaded from %s in %v", c.Source(), time.Since(startTime).Round(time.Millisecond))
	return c, nil
}

// Close detaches the active catalog. It is closed right away when idle,
// otherwise by the last lookup still using it.
func (h *Holder) Close() error {
	l := h.current.Swap(nil)
	if l == nil {
		return nil
	}
	return l.release()
}
