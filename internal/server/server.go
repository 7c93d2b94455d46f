package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/doxsearch/mcp-server/internal/catalog"
	"github.com/doxsearch/mcp-server/internal/searchdata"
)

// Server exposes the active catalog over HTTP: the shard files for the
// search widget, a JSON lookup API, health and metrics.
type Server struct {
	holder  *catalog.Holder
	metrics *Metrics
	limit   int

	httpServer *http.Server
}

// LookupResponse is the body of /api/lookup
type LookupResponse struct {
	Query   string                   `json:"query"`
	Section string                   `json:"section"`
	Count   int                      `json:"count"`
	Results []searchdata.SearchEntry `json:"results"`
}

// SearchResponse is the body of /api/search
type SearchResponse struct {
	Query   string              `json:"query"`
	Total   uint64              `json:"total"`
	Results []catalog.SymbolHit `json:"results"`
}

// HealthResponse is the body of /healthz
type HealthResponse struct {
	Status   string    `json:"status"`
	Source   string    `json:"source,omitempty"`
	Entries  int       `json:"entries"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a server for addr. metrics may be nil.
func New(addr string, holder *catalog.Holder, metrics *Metrics, defaultLimit int) *Server {
	if defaultLimit <= 0 {
		defaultLimit = catalog.DefaultLimit
	}
	s := &Server{
		holder:  holder,
		metrics: metrics,
		limit:   defaultLimit,
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the instrumented route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search/{file}", s.handleShard)
	mux.HandleFunc("GET /api/lookup", s.handleLookup)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return instrument(mux, s.metrics)
}

// Run listens on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()
	log.Printf("✓ HTTP server listening on %s", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Printf("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

func (s *Server) handleShard(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if !strings.HasSuffix(name, ".js") || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusNotFound, "not a shard file")
		return
	}

	var data []byte
	err := s.holder.Use(func(c *catalog.Catalog) error {
		var err error
		data, err = c.ReadFile(name)
		return err
	})
	switch {
	case errors.Is(err, catalog.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s not found", name))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.metrics != nil {
		section, _, _ := strings.Cut(strings.TrimSuffix(name, ".js"), "_")
		s.metrics.ShardsServed.WithLabelValues(section).Inc()
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	section := q.Get("section")
	if section == "" {
		section = searchdata.Sections[0].Name
	}
	limit, ok := s.parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}

	entries, err := s.holder.Lookup(section, query, limit)
	s.observe("prefix", len(entries), err)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	if entries == nil {
		entries = []searchdata.SearchEntry{}
	}

	writeJSON(w, http.StatusOK, LookupResponse{
		Query:   query,
		Section: section,
		Count:   len(entries),
		Results: entries,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit, ok := s.parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}

	hits, total, err := s.holder.Search(query, limit)
	s.observe("fulltext", len(hits), err)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	if hits == nil {
		hits = []catalog.SymbolHit{}
	}

	writeJSON(w, http.StatusOK, SearchResponse{Query: query, Total: total, Results: hits})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	err := s.holder.Use(func(c *catalog.Catalog) error {
		n, err := c.EntryCount()
		if err != nil {
			return err
		}
		resp.Source = c.Source()
		resp.Entries = n
		return nil
	})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: err.Error()})
		return
	}
	resp.LoadedAt = s.holder.LoadedAt().UTC()
	if s.metrics != nil {
		s.metrics.CatalogEntries.Set(float64(resp.Entries))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) parseLimit(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return s.limit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
		return 0, false
	}
	return limit, true
}

func (s *Server) observe(kind string, results int, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	} else if results == 0 {
		result = "empty"
	}
	s.metrics.LookupsTotal.WithLabelValues(kind, result).Inc()
	if err == nil {
		s.metrics.LookupResults.WithLabelValues(kind).Observe(float64(results))
	}
}

func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotLoaded), errors.Is(err, catalog.ErrNoIndex):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, catalog.ErrUnknownSection):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}
