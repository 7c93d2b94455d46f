package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doxsearch/mcp-server/internal/searchdata"
)

const manifestYAML = `symbols:
  - name: spsc_queue
    kind: class
    scope: boost::lockfree
    scope_kind: namespace
  - name: push
    kind: function
    scope: boost::lockfree::spsc_queue
    args: (T const &t)
  - name: pop
    kind: function
    scope: boost::lockfree::spsc_queue
`

var fixtureShard = filepath.Join("..", "..", "internal", "catalog", "testdata", "search", "all_1.js")

func TestMain(m *testing.M) {
	// Tests change the working directory
	if abs, err := filepath.Abs(fixtureShard); err == nil {
		fixtureShard = abs
	}
	color.NoColor = true
	os.Exit(m.Run())
}

// testEnv isolates config discovery and returns a data directory
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("USERPROFILE", dir)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return filepath.Join(dir, "data")
}

func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	b := new(bytes.Buffer)
	cmd.SetOut(b)
	cmd.SetErr(b)
	cmd.SetArgs(append([]string{"--data-dir", dataDir}, args...))
	err := cmd.Execute()
	return b.String(), err
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	dataDir := testEnv(t)

	out, err := run(t, dataDir, "nonexistent")
	assert.Error(t, err)
	assert.Contains(t, out, `unknown command "nonexistent" for "indexer"`)
}

func TestBuildLookupValidate(t *testing.T) {
	dataDir := testEnv(t)
	manifest := filepath.Join(dataDir, "..", "symbols.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(manifestYAML), 0644))
	outDir := filepath.Join(dataDir, "..", "html", "search")

	out, err := run(t, dataDir, "build", manifest, outDir, "--no-index")
	require.NoError(t, err)
	assert.Contains(t, out, "built 3 entries")

	out, err = run(t, dataDir, "lookup", "--dir", outDir, "pu")
	require.NoError(t, err)
	assert.Contains(t, out, "push")
	assert.Contains(t, out, "../classboost_1_1lockfree_1_1spsc__queue.html#")

	out, err = run(t, dataDir, "lookup", "--dir", outDir, "--section", "classes", "--json", "spsc")
	require.NoError(t, err)
	var entries []searchdata.SearchEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "spsc_queue", entries[0].Label)

	out, err = run(t, dataDir, "lookup", "--dir", outDir, "zzz")
	require.NoError(t, err)
	assert.Contains(t, out, "no matches")

	out, err = run(t, dataDir, "validate", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "valid:")

	// The class page link has no anchor
	out, err = run(t, dataDir, "validate", "--strict", outDir)
	assert.Error(t, err)
	assert.Contains(t, out, "INVALID")
	assert.Contains(t, out, searchdata.CodeMissingAnchor)
}

func TestBuild_ConfiguredPaths(t *testing.T) {
	dataDir := testEnv(t)
	manifest := filepath.Join(dataDir, "..", "symbols.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(manifestYAML), 0644))
	t.Setenv("DOXSEARCH_MANIFEST", manifest)

	_, err := run(t, dataDir, "build")
	require.NoError(t, err)

	// Defaults: <data-dir>/search and one index under <data-dir>/index
	_, err = os.Stat(filepath.Join(dataDir, "search", searchdata.SectionIndexFile))
	assert.NoError(t, err)
	indexes, err := filepath.Glob(filepath.Join(dataDir, "index", "symbols-*.bleve"))
	require.NoError(t, err)
	assert.Len(t, indexes, 1)

	out, err := run(t, dataDir, "search", "spsc", "queue")
	require.NoError(t, err)
	assert.Contains(t, out, "spsc_queue")
}

func TestSearch_IndexPerDirectory(t *testing.T) {
	dataDir := testEnv(t)
	root := filepath.Dir(dataDir)

	write := func(name, symbol string) string {
		manifest := filepath.Join(root, name+".yaml")
		content := "symbols:\n  - name: " + symbol + "\n    kind: class\n"
		require.NoError(t, os.WriteFile(manifest, []byte(content), 0644))
		return manifest
	}
	dirA := filepath.Join(root, "a", "search")
	dirB := filepath.Join(root, "b", "search")

	_, err := run(t, dataDir, "build", write("a", "alpha_logger"), dirA)
	require.NoError(t, err)
	_, err = run(t, dataDir, "build", write("b", "bravo_logger"), dirB)
	require.NoError(t, err)

	out, err := run(t, dataDir, "search", "--dir", dirA, "--json", "logger")
	require.NoError(t, err)
	assert.Contains(t, out, "alpha_logger")
	assert.NotContains(t, out, "bravo_logger")
}

func TestBuild_NoManifest(t *testing.T) {
	dataDir := testEnv(t)

	_, err := run(t, dataDir, "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no manifest given")
}

func TestBuild_InvalidManifest(t *testing.T) {
	dataDir := testEnv(t)
	manifest := filepath.Join(dataDir, "..", "bad.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("symbols:\n  - kind: class\n"), 0644))

	_, err := run(t, dataDir, "build", manifest, filepath.Join(dataDir, "out"))
	var manifestErr *searchdata.ManifestError
	assert.ErrorAs(t, err, &manifestErr)
}

func TestDecode(t *testing.T) {
	dataDir := testEnv(t)

	out, err := run(t, dataDir, "decode", fixtureShard)
	require.NoError(t, err)
	var entries []searchdata.SearchEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.NotEmpty(t, entries)

	out, err = run(t, dataDir, "decode", "--encode", fixtureShard)
	require.NoError(t, err)
	original, err := os.ReadFile(fixtureShard)
	require.NoError(t, err)
	assert.Equal(t, string(original), out)
}

func TestDecode_Errors(t *testing.T) {
	dataDir := testEnv(t)
	bad := filepath.Join(t.TempDir(), "bad.js")
	require.NoError(t, os.WriteFile(bad, []byte("var searchData=\n[\n  ['x'"), 0644))

	_, err := run(t, dataDir, "decode", bad)
	assert.ErrorIs(t, err, searchdata.ErrSyntax)

	_, err = run(t, dataDir, "decode", filepath.Join(t.TempDir(), "missing.js"))
	assert.Error(t, err)
}

func TestValidate_SingleShardJSON(t *testing.T) {
	dataDir := testEnv(t)

	out, err := run(t, dataDir, "validate", "--json", fixtureShard)
	require.NoError(t, err)

	var report searchdata.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Files)
	assert.Positive(t, report.Entries)
	assert.True(t, report.Valid())
}

func TestArgOr(t *testing.T) {
	got, err := argOr([]string{"a"}, 0, "b", "thing")
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	got, err = argOr(nil, 0, "b", "thing")
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	_, err = argOr(nil, 0, "", "thing")
	assert.True(t, strings.Contains(err.Error(), "no thing given"))
}
