package searchdata_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doxsearch/mcp-server/internal/searchdata"
)

const sampleManifest = `project: matlogger2
version: "1.6.0"
symbols:
  - name: MatLogger2
    kind: class
    scope: XBot
    scope_kind: namespace
  - name: create
    kind: function
    scope: XBot::MatLogger2
    args: (std::string file)
  - name: MATLOGGER2_VERSION
    kind: define
    file: matlogger2.h
`

func TestParseManifest(t *testing.T) {
	m, err := searchdata.ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "matlogger2", m.Project)
	assert.Equal(t, "1.6.0", m.Version)
	require.Len(t, m.Symbols, 3)
	assert.Equal(t, searchdata.KindNamespace, m.Symbols[0].ScopeKind)
	assert.Equal(t, "(std::string file)", m.Symbols[1].Args)
	assert.Equal(t, "matlogger2.h", m.Symbols[2].File)
}

func TestParseManifest_JSON(t *testing.T) {
	m, err := searchdata.ParseManifest([]byte(`{"symbols":[{"name":"XBot","kind":"namespace"}]}`))
	require.NoError(t, err)
	require.Len(t, m.Symbols, 1)
	assert.Equal(t, searchdata.KindNamespace, m.Symbols[0].Kind)
}

func TestParseManifest_SchemaViolations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantPath string
	}{
		{
			name:     "unknown kind",
			input:    "symbols:\n  - name: x\n    kind: macro\n",
			wantPath: "$.symbols.0.kind",
		},
		{
			name:     "missing name",
			input:    "symbols:\n  - kind: class\n",
			wantPath: "$.symbols.0",
		},
		{
			name:     "unknown field",
			input:    "symbols: []\nauthor: someone\n",
			wantPath: "$",
		},
		{
			name:     "document not html",
			input:    "symbols:\n  - name: x\n    kind: page\n    document: x.md\n",
			wantPath: "$.symbols.0.document",
		},
		{
			name:     "empty",
			input:    "",
			wantPath: "$",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := searchdata.ParseManifest([]byte(tt.input))

			var manifestErr *searchdata.ManifestError
			require.True(t, errors.As(err, &manifestErr), "error = %v", err)
			require.NotEmpty(t, manifestErr.Problems)

			var paths []string
			for _, p := range manifestErr.Problems {
				paths = append(paths, p.Path)
			}
			assert.Contains(t, paths, tt.wantPath)
		})
	}
}

func TestParseManifest_InvalidYAML(t *testing.T) {
	_, err := searchdata.ParseManifest([]byte("symbols: [\n"))
	require.Error(t, err)

	var manifestErr *searchdata.ManifestError
	assert.False(t, errors.As(err, &manifestErr))
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0644))

	m, err := searchdata.LoadManifest(path)
	require.NoError(t, err)
	assert.Len(t, m.Symbols, 3)

	_, err = searchdata.LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshalManifest_RoundTrip(t *testing.T) {
	m, err := searchdata.ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)

	data, err := searchdata.MarshalManifest(m)
	require.NoError(t, err)

	again, err := searchdata.ParseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, m, again)
}
