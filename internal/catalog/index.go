package catalog

import (
	"errors"
	"fmt"
	"html"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/doxsearch/mcp-server/internal/searchdata"
)

// Index is an interface that abstracts bleve.Index operations
// This allows for easier testing with mocks
type Index interface {
	// Search executes a search request
	Search(req *bleve.SearchRequest) (*bleve.SearchResult, error)

	// DocCount returns the number of documents in the index
	DocCount() (uint64, error)

	// Close closes the index
	Close() error
}

// bleveIndexWrapper wraps a bleve.Index to implement our Index interface
type bleveIndexWrapper struct {
	index bleve.Index
}

// NewBleveIndexWrapper wraps a bleve.Index
func NewBleveIndexWrapper(index bleve.Index) Index {
	return &bleveIndexWrapper{index: index}
}

func (w *bleveIndexWrapper) Search(req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	return w.index.Search(req)
}

func (w *bleveIndexWrapper) DocCount() (uint64, error) {
	return w.index.DocCount()
}

func (w *bleveIndexWrapper) Close() error {
	return w.index.Close()
}

// SymbolDoc is the document indexed for every occurrence of every entry
type SymbolDoc struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Terms      string `json:"terms"`
	Scope      string `json:"scope"`
	ScopeTerms string `json:"scope_terms"`
	URL        string `json:"url"`
	Anchor     string `json:"anchor"`
}

// SymbolHit is one full-text search result
type SymbolHit struct {
	Label string  `json:"label"`
	Key   string  `json:"key"`
	Scope string  `json:"scope"`
	Href  string  `json:"href"`
	Score float64 `json:"score"`
}

const batchSize = 100

func newSymbolMapping() mapping.IndexMapping {
	keyword := bleve.NewKeywordFieldMapping()
	text := bleve.NewTextFieldMapping()
	stored := bleve.NewTextFieldMapping()
	stored.Index = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("key", keyword)
	doc.AddFieldMappingsAt("label", keyword)
	doc.AddFieldMappingsAt("terms", text)
	doc.AddFieldMappingsAt("scope", stored)
	doc.AddFieldMappingsAt("scope_terms", text)
	doc.AddFieldMappingsAt("url", stored)
	doc.AddFieldMappingsAt("anchor", stored)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// SymbolDocs flattens entries into one document per occurrence
func SymbolDocs(entries []searchdata.SearchEntry) []SymbolDoc {
	var docs []SymbolDoc
	for _, entry := range entries {
		label := html.UnescapeString(entry.Label)
		for _, occ := range entry.Occurrences {
			scope := html.UnescapeString(occ.Scope)
			docs = append(docs, SymbolDoc{
				Key:        entry.Key,
				Label:      label,
				Terms:      strings.Join(splitWords(label), " "),
				Scope:      scope,
				ScopeTerms: strings.Join(splitWords(scope), " "),
				URL:        occ.URL,
				Anchor:     occ.Anchor,
			})
		}
	}
	return docs
}

// splitWords breaks an identifier on punctuation and camel-case boundaries:
// "compile_time_sized_ringbuffer" -> compile time sized ringbuffer,
// "MatLogger2" -> mat logger2
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if unicode.IsUpper(r) && len(cur) > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					flush()
				}
			}
			cur = append(cur, r)
		default:
			flush()
		}
	}
	flush()
	return words
}

func indexDocs(idx bleve.Index, docs []SymbolDoc) error {
	batch := idx.NewBatch()
	for i, doc := range docs {
		if err := batch.Index(fmt.Sprintf("%06d", i), doc); err != nil {
			return fmt.Errorf("failed to add %s to batch: %w", doc.Key, err)
		}

		// Submit batch every 100 documents
		if i%batchSize == 0 && i > 0 {
			if err := idx.Batch(batch); err != nil {
				return fmt.Errorf("failed to index batch: %w", err)
			}
			batch = idx.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return fmt.Errorf("failed to index final batch: %w", err)
		}
	}
	return nil
}

// NewMemSymbolIndex builds an in-memory symbol index, used for the embedded snapshot
func NewMemSymbolIndex(entries []searchdata.SearchEntry) (Index, error) {
	idx, err := bleve.NewMemOnly(newSymbolMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create memory index: %w", err)
	}
	if err := indexDocs(idx, SymbolDocs(entries)); err != nil {
		idx.Close()
		return nil, err
	}
	return NewBleveIndexWrapper(idx), nil
}

// sourceKey names the internal bleve value holding the fingerprint of the indexed search data
const sourceKey = "doxsearch_source"

// ErrStaleIndex is returned when a symbol index was built from other search data
var ErrStaleIndex = errors.New("symbol index built from different search data")

// BuildSymbolIndex indexes entries into a temp directory and swaps it into path.
// The index is stamped with source, the Fingerprint of the search data it covers.
func BuildSymbolIndex(path string, entries []searchdata.SearchEntry, source string) error {
	startTime := time.Now()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	tempDir, err := os.MkdirTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)
	tempPath := filepath.Join(tempDir, "index")

	docs := SymbolDocs(entries)
	newIndex, err := bleve.New(tempPath, newSymbolMapping())
	if err != nil {
		return fmt.Errorf("failed to create temp index: %w", err)
	}
	if err := indexDocs(newIndex, docs); err != nil {
		newIndex.Close()
		return err
	}
	if err := newIndex.SetInternal([]byte(sourceKey), []byte(source)); err != nil {
		newIndex.Close()
		return fmt.Errorf("failed to stamp index: %w", err)
	}
	if err := newIndex.Close(); err != nil {
		return fmt.Errorf("failed to close temp index: %w", err)
	}

	if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old index: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp index: %w", err)
	}

	log.Printf("✓ Symbol index built (%d documents) in %v", len(docs), time.Since(startTime).Round(time.Millisecond))
	return nil
}

// OpenSymbolIndex opens an index written by BuildSymbolIndex
func OpenSymbolIndex(path string) (Index, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol index: %w", err)
	}
	return NewBleveIndexWrapper(idx), nil
}

// OpenSymbolIndexFor opens the index at path only if it was stamped with source
func OpenSymbolIndexFor(path, source string) (Index, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol index: %w", err)
	}
	stamp, err := idx.GetInternal([]byte(sourceKey))
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("failed to read index stamp: %w", err)
	}
	if string(stamp) != source {
		idx.Close()
		return nil, ErrStaleIndex
	}
	return NewBleveIndexWrapper(idx), nil
}

// SearchSymbols matches query words against symbol names (fuzzy) and key prefixes
func SearchSymbols(idx Index, q string, limit int) ([]SymbolHit, uint64, error) {
	var clauses []query.Query

	words := strings.Join(splitWords(q), " ")
	if words != "" {
		terms := bleve.NewMatchQuery(words)
		terms.SetField("terms")
		terms.SetFuzziness(1)
		terms.SetBoost(2)

		scope := bleve.NewMatchQuery(words)
		scope.SetField("scope_terms")

		clauses = append(clauses, terms, scope)
	}
	if key := searchdata.QueryKey(q); key != "" {
		prefix := bleve.NewPrefixQuery(key)
		prefix.SetField("key")
		prefix.SetBoost(3)
		clauses = append(clauses, prefix)
	}
	if len(clauses) == 0 {
		return nil, 0, nil
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(clauses...))
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := idx.Search(req)
	if err != nil {
		return nil, 0, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]SymbolHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		h := SymbolHit{Score: hit.Score}
		if v, ok := hit.Fields["label"].(string); ok {
			h.Label = v
		}
		if v, ok := hit.Fields["key"].(string); ok {
			h.Key = v
		}
		if v, ok := hit.Fields["scope"].(string); ok {
			h.Scope = v
		}
		url, _ := hit.Fields["url"].(string)
		anchor, _ := hit.Fields["anchor"].(string)
		h.Href = searchdata.Occurrence{URL: url, Anchor: anchor}.Href()
		hits = append(hits, h)
	}
	return hits, res.Total, nil
}
