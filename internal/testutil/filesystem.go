package testutil

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"sync"
)

// MockFile is an in-memory media.File. Content and metadata can be mutated
// between resolutions to simulate edits, and Opens counts how many times the
// content was actually read, which lets tests assert that the fast path
// skipped hashing.
type MockFile struct {
	mu      sync.Mutex
	path    string
	content []byte
	modified int64
	gone    bool
	openErr error
	opens   int
}

// NewMockFile creates a MockFile at path with the given content and
// modification time in unix milliseconds.
func NewMockFile(path string, content []byte, modified int64) *MockFile {
	return &MockFile{path: path, content: content, modified: modified}
}

func (f *MockFile) Name() string { return filepath.Base(f.path) }
func (f *MockFile) Path() string { return f.path }

func (f *MockFile) Exists() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.gone
}

func (f *MockFile) Length() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone {
		return 0
	}
	return int64(len(f.content))
}

func (f *MockFile) LastModified() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone {
		return 0
	}
	return f.modified
}

func (f *MockFile) Open() (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	if f.gone {
		return nil, errors.New("file does not exist")
	}
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

// Opens returns how many times Open was called.
func (f *MockFile) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// SetContent replaces the content and bumps the modification time.
func (f *MockFile) SetContent(content []byte, modified int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = content
	f.modified = modified
}

// SetModified changes the modification time without touching content.
func (f *MockFile) SetModified(modified int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modified = modified
}

// Remove marks the file as gone.
func (f *MockFile) Remove() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gone = true
}

// SetOpenError makes subsequent Opens fail with err.
func (f *MockFile) SetOpenError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

// PathSet tracks which paths exist on disk for resolver and reconciler
// tests. The zero value is empty; use its Exists method as an exists func.
type PathSet struct {
	mu    sync.Mutex
	paths map[string]bool
}

func NewPathSet(paths ...string) *PathSet {
	s := &PathSet{paths: make(map[string]bool)}
	for _, p := range paths {
		s.paths[p] = true
	}
	return s
}

func (s *PathSet) Add(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paths == nil {
		s.paths = make(map[string]bool)
	}
	s.paths[path] = true
}

func (s *PathSet) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, path)
}

func (s *PathSet) Exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paths[path]
}
