package tools

import (
	"io/fs"
	"testing/fstest"
)

// MockDataProvider serves an in-memory snapshot, for tests
type MockDataProvider struct {
	files fstest.MapFS
}

// NewMockDataProvider creates an empty mock provider
func NewMockDataProvider() *MockDataProvider {
	return &MockDataProvider{files: fstest.MapFS{}}
}

// AddFile adds a file; parent directories are implied
func (m *MockDataProvider) AddFile(name string, content []byte) {
	m.files[name] = &fstest.MapFile{Data: content, Mode: 0644}
}

func (m *MockDataProvider) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(m.files, name)
}

func (m *MockDataProvider) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(m.files, name)
}

// SetDefaultDataProvider replaces the snapshot used by NewSymbolSearch
func SetDefaultDataProvider(provider DataProvider) {
	defaultDataProvider = provider
}

// ResetDefaultDataProvider restores the embedded snapshot
func ResetDefaultDataProvider() {
	defaultDataProvider = NewEmbeddedDataProvider()
}
