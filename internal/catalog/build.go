package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doxsearch/mcp-server/internal/searchdata"
)

// BuildOptions tunes BuildDir
type BuildOptions struct {
	// Workers bounds concurrent shard writes; 0 means one per CPU
	Workers int

	// SymbolIndexPath, when set, also builds the bleve symbol index there
	SymbolIndexPath string
}

// BuildResult summarizes a finished build
type BuildResult struct {
	Dir      string        `json:"dir"`
	Sections int           `json:"sections"`
	Shards   int           `json:"shards"`
	Entries  int           `json:"entries"`
	Duration time.Duration `json:"duration"`
}

// dirLocks serializes builds of one output directory inside this process;
// the PID lock file only keeps other processes out.
var dirLocks sync.Map // absolute outDir -> *sync.Mutex

func dirMutex(dir string) *sync.Mutex {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	mu, _ := dirLocks.LoadOrStore(dir, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// BuildDir writes every shard of idx plus searchdata.js into outDir.
// Files are written to a private sibling temp directory first. When
// SymbolIndexPath is set the symbol index is built next, so a failure leaves
// outDir untouched. Finally each file is renamed into outDir: shards first,
// then searchdata.js, then stale shards are removed and .index_version is
// written. Files outDir holds besides shards (the widget's own scripts,
// styles and result pages) are left alone.
func BuildDir(ctx context.Context, idx *searchdata.Index, outDir string, opts BuildOptions) (*BuildResult, error) {
	startTime := time.Now()
	outDir = filepath.Clean(outDir)

	mu := dirMutex(outDir)
	mu.Lock()
	defer mu.Unlock()

	lock := NewLock(outDir + ".lock")
	if err := lock.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire build lock: %w", err)
	}
	defer lock.Release()

	parent := filepath.Dir(outDir)
	tempPattern := "." + filepath.Base(outDir) + ".tmp-"

	// Leftovers of crashed builds; we hold both locks, so none is in use
	stale, _ := filepath.Glob(filepath.Join(parent, tempPattern+"*"))
	for _, dir := range stale {
		os.RemoveAll(dir)
	}

	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output parent directory: %w", err)
	}
	tempDir, err := os.MkdirTemp(parent, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, shard := range idx.Shards {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(tempDir, shard.FileName())
			if err := os.WriteFile(path, searchdata.Marshal(shard.Entries), 0644); err != nil {
				return fmt.Errorf("failed to write shard %s: %w", shard.FileName(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(tempDir, searchdata.SectionIndexFile), searchdata.MarshalSectionIndex(idx.Sections), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", searchdata.SectionIndexFile, err)
	}

	if opts.SymbolIndexPath != "" {
		fingerprint, err := Fingerprint(tempDir)
		if err != nil {
			return nil, err
		}
		var all []searchdata.SearchEntry
		for _, shard := range idx.Shards {
			if shard.Section == searchdata.Sections[0].Name {
				all = append(all, shard.Entries...)
			}
		}
		if err := BuildSymbolIndex(opts.SymbolIndexPath, all, fingerprint); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := installFiles(tempDir, outDir); err != nil {
		return nil, err
	}

	result := &BuildResult{
		Dir:      outDir,
		Sections: len(idx.Sections),
		Shards:   len(idx.Shards),
		Entries:  idx.EntryCount(),
		Duration: time.Since(startTime).Round(time.Millisecond),
	}
	log.Printf("✓ Wrote %d shards (%d entries, %d sections) to %s in %v",
		result.Shards, result.Entries, result.Sections, outDir, result.Duration)
	return result, nil
}

// installFiles moves a finished build from tempDir into outDir file by file.
// searchdata.js is moved after the shards it lists; shard files the new
// build does not contain are removed afterwards.
func installFiles(tempDir, outDir string) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create search directory: %w", err)
	}

	files, err := os.ReadDir(tempDir)
	if err != nil {
		return fmt.Errorf("failed to read temp directory: %w", err)
	}
	written := make(map[string]bool, len(files))
	for _, f := range files {
		name := f.Name()
		if name == searchdata.SectionIndexFile {
			continue
		}
		if err := os.Rename(filepath.Join(tempDir, name), filepath.Join(outDir, name)); err != nil {
			return fmt.Errorf("failed to install %s: %w", name, err)
		}
		written[name] = true
	}
	if err := os.Rename(filepath.Join(tempDir, searchdata.SectionIndexFile), filepath.Join(outDir, searchdata.SectionIndexFile)); err != nil {
		return fmt.Errorf("failed to install %s: %w", searchdata.SectionIndexFile, err)
	}

	existing, err := os.ReadDir(outDir)
	if err != nil {
		return fmt.Errorf("failed to read search directory: %w", err)
	}
	for _, f := range existing {
		name := f.Name()
		if f.IsDir() || written[name] || !searchdata.IsShardFile(name) {
			continue
		}
		if err := os.Remove(filepath.Join(outDir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale shard %s: %w", name, err)
		}
	}

	return WriteIndexVersion(outDir)
}

// Fingerprint hashes the shards and searchdata.js of a search directory.
// Symbol indexes are stamped with it so they are only used with the data they were built from.
func Fingerprint(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read search directory: %w", err)
	}

	h := sha256.New()
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || (name != searchdata.SectionIndexFile && !searchdata.IsShardFile(name)) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00", name, len(data))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// BuildFromManifest loads a manifest and builds its search directory
func BuildFromManifest(ctx context.Context, manifestPath, outDir string, opts BuildOptions) (*BuildResult, error) {
	m, err := searchdata.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	idx, err := searchdata.BuildIndex(m.Symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}
	return BuildDir(ctx, idx, outDir, opts)
}

// ReadIndexVersion reads the index schema version of a search directory, 0 if unknown
func ReadIndexVersion(dir string) int {
	data, err := os.ReadFile(filepath.Join(dir, searchdata.VersionFile))
	if err != nil {
		return 0
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return version
}

// WriteIndexVersion marks dir as written by the current index schema version
func WriteIndexVersion(dir string) error {
	path := filepath.Join(dir, searchdata.VersionFile)
	if err := os.WriteFile(path, []byte(strconv.Itoa(searchdata.IndexSchemaVersion)), 0644); err != nil {
		return fmt.Errorf("failed to write index version: %w", err)
	}
	return nil
}
