package tools

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/doxsearch/mcp-server/internal/catalog"
	"github.com/doxsearch/mcp-server/internal/searchdata"
)

const (
	maxFindings   = 100
	lockTimeout   = 5 * time.Second
	lockRetryWait = 500 * time.Millisecond
)

// SymbolSearchConfig locates the data behind the symbol tools
type SymbolSearchConfig struct {
	SearchDir string // shard directory served and validated
	IndexPath string // bleve symbol index; empty keeps the index in memory
	Manifest  string // symbol manifest; when set, refreshes rebuild from it
	Strict    bool   // default strictness of validate_search_data
	Limit     int    // default result limit
}

// SymbolSearch answers the symbol tools from a reloadable catalog
type SymbolSearch struct {
	cfg      SymbolSearchConfig
	holder   *catalog.Holder
	provider DataProvider

	// buildMu serializes writers of SearchDir within the process
	buildMu sync.Mutex
}

// NewSymbolSearch creates the tool backend; nothing is loaded until Initialize or the first call
func NewSymbolSearch(cfg SymbolSearchConfig) *SymbolSearch {
	if cfg.Limit <= 0 {
		cfg.Limit = catalog.DefaultLimit
	}
	return &SymbolSearch{
		cfg:      cfg,
		holder:   catalog.NewHolder(),
		provider: defaultDataProvider,
	}
}

// Holder exposes the catalog holder, e.g. to share it with the HTTP server
func (s *SymbolSearch) Holder() *catalog.Holder {
	return s.holder
}

// LookupSymbolInput defines input for lookup_symbol tool
type LookupSymbolInput struct {
	Query   string `json:"query" jsonschema:"Symbol name or prefix, e.g. MatLogger2 or pop_to"`
	Section string `json:"section,omitempty" jsonschema:"Index section: all, classes, functions, variables, typedefs... (optional, defaults to all)"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of entries (optional, defaults to 20)"`
}

// SymbolLocation is one documentation link of a matched symbol
type SymbolLocation struct {
	Href     string `json:"href"`
	Scope    string `json:"scope"`
	External bool   `json:"external,omitempty"`
}

// SymbolMatch is one matched index entry
type SymbolMatch struct {
	Label     string           `json:"label"`
	Key       string           `json:"key"`
	Locations []SymbolLocation `json:"locations"`
}

// LookupSymbolOutput defines output for lookup_symbol tool
type LookupSymbolOutput struct {
	Query   string        `json:"query"`
	Section string        `json:"section"`
	Count   int           `json:"count"`
	Matches []SymbolMatch `json:"matches"`
}

// SearchSymbolsInput defines input for search_symbols tool
type SearchSymbolsInput struct {
	Query      string `json:"query" jsonschema:"Free text: words of a symbol name or scope, typos tolerated"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (optional, defaults to 20)"`
}

// SearchSymbolsOutput defines output for search_symbols tool
type SearchSymbolsOutput struct {
	Query     string              `json:"query"`
	TotalHits int                 `json:"total_hits"`
	Results   []catalog.SymbolHit `json:"results"`
}

// ValidateSearchDataInput defines input for validate_search_data tool
type ValidateSearchDataInput struct {
	Path   string `json:"path,omitempty" jsonschema:"Search directory or single shard file (optional, defaults to the served directory)"`
	Strict bool   `json:"strict,omitempty" jsonschema:"Treat links without an anchor as errors (optional)"`
}

// ValidateSearchDataOutput defines output for validate_search_data tool
type ValidateSearchDataOutput struct {
	Valid     bool                 `json:"valid"`
	Path      string               `json:"path"`
	Files     int                  `json:"files"`
	Entries   int                  `json:"entries"`
	Errors    int                  `json:"errors"`
	Warnings  int                  `json:"warnings"`
	Findings  []searchdata.Finding `json:"findings"`
	Truncated bool                 `json:"truncated,omitempty"`
	Summary   string               `json:"summary"`
}

// RefreshSymbolIndexInput defines input for refresh_symbol_index tool
type RefreshSymbolIndexInput struct {
	Force bool `json:"force,omitempty" jsonschema:"Rebuild even if the search data is newer than the manifest (optional, defaults to false)"`
}

// RefreshSymbolIndexOutput defines output for refresh_symbol_index tool
type RefreshSymbolIndexOutput struct {
	Updated  bool      `json:"updated"`
	Source   string    `json:"source"`
	Entries  int       `json:"entries"`
	Shards   int       `json:"shards,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
	Message  string    `json:"message"`
}

// Initialize loads the search data.
// Priority: local search directory (current schema) > manifest rebuild > embedded snapshot
func (s *SymbolSearch) Initialize(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	return s.initialize(ctx)
}

func (s *SymbolSearch) initialize(ctx context.Context) error {
	startTime := time.Now()
	log.Printf("Initializing symbol search...")

	// Strategy 1: search directory from a previous build or extraction
	if _, err := os.Stat(filepath.Join(s.cfg.SearchDir, searchdata.SectionIndexFile)); err == nil {
		// Version 0: written by the documentation generator itself, served as is
		currentVersion := catalog.ReadIndexVersion(s.cfg.SearchDir)
		if currentVersion != 0 && currentVersion != searchdata.IndexSchemaVersion {
			log.Printf("Search data schema version mismatch (have: v%d, want: v%d), invalidating...",
				currentVersion, searchdata.IndexSchemaVersion)
		} else {
			c, err := s.holder.Reload(s.load)
			if err == nil {
				count, _ := c.EntryCount()
				log.Printf("✓ Symbol search initialized (%d entries, local data v%d) in %v",
					count, searchdata.IndexSchemaVersion, time.Since(startTime).Round(time.Millisecond))
				return nil
			}
			log.Printf("Warning: Local search data unusable (%v), replacing...", err)
		}
	}

	// Strategy 2: rebuild from the manifest
	if s.cfg.Manifest != "" {
		if _, err := s.rebuildLocked(ctx); err != nil {
			return err
		}
		log.Printf("✓ Symbol search initialized from %s in %v", s.cfg.Manifest, time.Since(startTime).Round(time.Millisecond))
		return nil
	}

	// Strategy 3: extract the embedded snapshot
	log.Printf("No local search data found, extracting embedded snapshot...")
	if err := s.restoreSnapshot(ctx); err != nil {
		return fmt.Errorf("failed to extract embedded search data: %w", err)
	}
	log.Printf("✓ Symbol search initialized (embedded snapshot) in %v", time.Since(startTime).Round(time.Millisecond))
	log.Printf("ℹ️  Using embedded search data. Configure a manifest and use refresh_symbol_index to index your project.")
	return nil
}

func (s *SymbolSearch) load() (*catalog.Catalog, error) {
	return catalog.Load(s.cfg.SearchDir, s.cfg.IndexPath)
}

// rebuild regenerates the search directory from the manifest and swaps in the result
func (s *SymbolSearch) rebuild(ctx context.Context) (*catalog.BuildResult, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	return s.rebuildLocked(ctx)
}

func (s *SymbolSearch) rebuildLocked(ctx context.Context) (*catalog.BuildResult, error) {
	result, err := catalog.BuildFromManifest(ctx, s.cfg.Manifest, s.cfg.SearchDir, catalog.BuildOptions{
		SymbolIndexPath: s.cfg.IndexPath,
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild failed: %w", err)
	}
	if _, err := s.holder.Reload(s.load); err != nil {
		return nil, err
	}
	return result, nil
}

// Rebuild regenerates the search data from the manifest; used by the manifest watcher
func (s *SymbolSearch) Rebuild(ctx context.Context) error {
	if s.cfg.Manifest == "" {
		return errors.New("no manifest configured")
	}
	_, err := s.rebuild(ctx)
	return err
}

// restoreSnapshot extracts the embedded shards and serves them; buildMu must be held
func (s *SymbolSearch) restoreSnapshot(ctx context.Context) error {
	if err := s.extractSnapshot(ctx); err != nil {
		return err
	}
	_, err := s.holder.Reload(s.load)
	return err
}

// extractSnapshot copies the embedded shards into the search directory
func (s *SymbolSearch) extractSnapshot(ctx context.Context) error {
	lock := catalog.NewLock(s.cfg.SearchDir+".lock").WithTimeout(lockTimeout, lockRetryWait)
	if err := lock.Acquire(ctx); err != nil {
		return err
	}
	defer lock.Release()

	entries, err := s.provider.ReadDir(snapshotDir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", snapshotDir, err)
	}
	if err := os.MkdirAll(s.cfg.SearchDir, 0755); err != nil {
		return fmt.Errorf("failed to create search directory: %w", err)
	}
	// Only generated data is replaced; widget scripts and other files stay
	existing, err := os.ReadDir(s.cfg.SearchDir)
	if err != nil {
		return fmt.Errorf("failed to read search directory: %w", err)
	}
	for _, entry := range existing {
		if entry.IsDir() || !isGeneratedFile(entry.Name()) {
			continue
		}
		os.Remove(filepath.Join(s.cfg.SearchDir, entry.Name()))
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := s.provider.ReadFile(path.Join(snapshotDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read embedded file %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(s.cfg.SearchDir, entry.Name()), data, 0644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", entry.Name(), err)
		}
	}

	// A symbol index left by another data set would answer for the wrong symbols
	if s.cfg.IndexPath != "" {
		os.RemoveAll(s.cfg.IndexPath)
	}

	log.Printf("✓ Embedded search data extracted to %s (%d files)", s.cfg.SearchDir, len(entries))
	return catalog.WriteIndexVersion(s.cfg.SearchDir)
}

func isGeneratedFile(name string) bool {
	return name == searchdata.SectionIndexFile || searchdata.IsShardFile(name)
}

// ensureLoaded initializes on first use when startup initialization failed
func (s *SymbolSearch) ensureLoaded(ctx context.Context) error {
	if s.holder.Current() != nil {
		return nil
	}
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	if s.holder.Current() != nil {
		return nil
	}
	log.Printf("Symbol search not initialized, initializing now...")
	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize symbol search: %w", err)
	}
	return nil
}

// LookupSymbol resolves a name prefix the way the documentation's search box does
func (s *SymbolSearch) LookupSymbol(ctx context.Context, req *mcp.CallToolRequest, input LookupSymbolInput) (*mcp.CallToolResult, LookupSymbolOutput, error) {
	if input.Query == "" {
		return nil, LookupSymbolOutput{}, errors.New("query is required")
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, LookupSymbolOutput{}, err
	}

	section := input.Section
	if section == "" {
		section = searchdata.Sections[0].Name
	}
	limit := input.Limit
	if limit <= 0 {
		limit = s.cfg.Limit
	}

	entries, err := s.holder.Lookup(section, input.Query, limit)
	if err != nil {
		return nil, LookupSymbolOutput{}, fmt.Errorf("lookup failed: %w", err)
	}

	output := LookupSymbolOutput{
		Query:   input.Query,
		Section: section,
		Count:   len(entries),
		Matches: make([]SymbolMatch, 0, len(entries)),
	}
	for _, entry := range entries {
		match := SymbolMatch{
			Label:     html.UnescapeString(entry.Label),
			Key:       entry.Key,
			Locations: make([]SymbolLocation, 0, len(entry.Occurrences)),
		}
		for _, occ := range entry.Occurrences {
			match.Locations = append(match.Locations, SymbolLocation{
				Href:     occ.Href(),
				Scope:    html.UnescapeString(occ.Scope),
				External: !occ.Local,
			})
		}
		output.Matches = append(output.Matches, match)
	}
	return nil, output, nil
}

// SearchSymbols runs a fuzzy full-text search over symbol names and scopes
func (s *SymbolSearch) SearchSymbols(ctx context.Context, req *mcp.CallToolRequest, input SearchSymbolsInput) (*mcp.CallToolResult, SearchSymbolsOutput, error) {
	if input.Query == "" {
		return nil, SearchSymbolsOutput{}, errors.New("query is required")
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, SearchSymbolsOutput{}, err
	}

	maxResults := input.MaxResults
	if maxResults <= 0 {
		maxResults = s.cfg.Limit
	}

	hits, total, err := s.holder.Search(input.Query, maxResults)
	if err != nil {
		return nil, SearchSymbolsOutput{}, fmt.Errorf("search failed: %w", err)
	}
	if hits == nil {
		hits = []catalog.SymbolHit{}
	}

	return nil, SearchSymbolsOutput{
		Query:     input.Query,
		TotalHits: int(total),
		Results:   hits,
	}, nil
}

// ValidateSearchData checks a search directory or one shard file
func (s *SymbolSearch) ValidateSearchData(ctx context.Context, req *mcp.CallToolRequest, input ValidateSearchDataInput) (*mcp.CallToolResult, ValidateSearchDataOutput, error) {
	target := input.Path
	if target == "" {
		target = s.cfg.SearchDir
	}
	opts := searchdata.ValidateOptions{Strict: input.Strict || s.cfg.Strict}

	info, err := os.Stat(target)
	if err != nil {
		return nil, ValidateSearchDataOutput{}, fmt.Errorf("cannot access %s: %w", target, err)
	}

	var report *searchdata.Report
	if info.IsDir() {
		report, err = searchdata.ValidateDir(target, opts)
		if err != nil {
			return nil, ValidateSearchDataOutput{}, err
		}
	} else {
		data, err := os.ReadFile(target)
		if err != nil {
			return nil, ValidateSearchDataOutput{}, fmt.Errorf("failed to read %s: %w", target, err)
		}
		entries, findings := searchdata.ValidateShard(filepath.Base(target), data, opts)
		report = &searchdata.Report{Files: 1, Entries: len(entries), Findings: findings}
	}

	output := ValidateSearchDataOutput{
		Valid:    report.Valid(),
		Path:     target,
		Files:    report.Files,
		Entries:  report.Entries,
		Errors:   report.Errors(),
		Warnings: report.Warnings(),
		Findings: report.Findings,
	}
	if output.Findings == nil {
		output.Findings = []searchdata.Finding{}
	}
	if len(output.Findings) > maxFindings {
		output.Findings = output.Findings[:maxFindings]
		output.Truncated = true
	}

	status := "valid"
	if !output.Valid {
		status = "INVALID"
	}
	output.Summary = fmt.Sprintf("%s: %d files, %d entries, %d errors, %d warnings",
		status, output.Files, output.Entries, output.Errors, output.Warnings)
	return nil, output, nil
}

// RefreshSymbolIndex rebuilds from the manifest (or re-extracts the snapshot) and reloads
func (s *SymbolSearch) RefreshSymbolIndex(ctx context.Context, req *mcp.CallToolRequest, input RefreshSymbolIndexInput) (*mcp.CallToolResult, RefreshSymbolIndexOutput, error) {
	startTime := time.Now()
	output := RefreshSymbolIndexOutput{}

	switch {
	case s.cfg.Manifest != "":
		if !input.Force && !s.manifestChanged() && s.holder.Current() != nil {
			output.Source = s.cfg.Manifest
			output.LoadedAt = s.holder.LoadedAt()
			output.Entries = s.entryCount()
			output.Message = fmt.Sprintf("Search data is up to date with %s", s.cfg.Manifest)
			return nil, output, nil
		}
		result, err := s.rebuild(ctx)
		if err != nil {
			return nil, output, err
		}
		output.Source = s.cfg.Manifest
		output.Shards = result.Shards

	case input.Force:
		s.buildMu.Lock()
		err := s.restoreSnapshot(ctx)
		s.buildMu.Unlock()
		if err != nil {
			return nil, output, fmt.Errorf("refresh failed: %w", err)
		}
		output.Source = "embedded snapshot"

	default:
		// Pick up data written by an external indexer run
		if _, err := s.holder.Reload(s.load); err != nil {
			return nil, output, err
		}
		output.Source = s.cfg.SearchDir
	}

	output.Updated = true
	output.Entries = s.entryCount()
	output.LoadedAt = s.holder.LoadedAt()
	output.Message = fmt.Sprintf("Search data reloaded from %s, %d entries in %v",
		output.Source, output.Entries, time.Since(startTime).Round(time.Millisecond))
	return nil, output, nil
}

// manifestChanged reports whether the manifest is newer than the served search data
func (s *SymbolSearch) manifestChanged() bool {
	manifestInfo, err := os.Stat(s.cfg.Manifest)
	if err != nil {
		return true
	}
	dataInfo, err := os.Stat(filepath.Join(s.cfg.SearchDir, searchdata.SectionIndexFile))
	if err != nil {
		return true
	}
	return manifestInfo.ModTime().After(dataInfo.ModTime())
}

func (s *SymbolSearch) entryCount() int {
	var n int
	s.holder.Use(func(c *catalog.Catalog) error {
		var err error
		n, err = c.EntryCount()
		return err
	})
	return n
}

// RegisterSymbolTools registers the symbol lookup tools
func RegisterSymbolTools(server *mcp.Server, s *SymbolSearch) error {
	// Initialize synchronously
	if err := s.Initialize(context.Background()); err != nil {
		log.Printf("Warning: Symbol search initialization failed: %v", err)
		log.Printf("Symbol search will attempt to initialize on first use")
	}

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "lookup_symbol",
			Description: "Look up documented symbols by name prefix, exactly like the documentation search box. Returns labels and documentation links.",
		},
		s.LookupSymbol,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "search_symbols",
			Description: "Full-text search over symbol names and their scopes (camelCase and snake_case words, typos tolerated).",
		},
		s.SearchSymbols,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "validate_search_data",
			Description: "Validate generated search data (searchdata.js and <section>_<n>.js shards): keys, links, shard membership, ordering and canonical encoding.",
		},
		s.ValidateSearchData,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "refresh_symbol_index",
			Description: "Rebuild the search data from the symbol manifest (or reload it from disk) and swap it in without interrupting lookups.",
		},
		s.RefreshSymbolIndex,
	)

	return nil
}

// Close closes the active catalog after in-flight lookups finish
func (s *SymbolSearch) Close() error {
	if err := s.holder.Close(); err != nil {
		log.Printf("Error closing symbol search: %v", err)
		return err
	}
	log.Printf("✓ Symbol search closed")
	return nil
}
