package fs

import (
	"io"
	"os"
	"path/filepath"

	"mediadex/internal/media"
)

// OSFile is the plain-filesystem implementation of media.File. Metadata
// accessors stat the file on every call so the resolver always sees the
// current state.
type OSFile struct {
	path string
}

// NewOSFile creates a file handle for an absolute path.
func NewOSFile(path string) *OSFile {
	return &OSFile{path: filepath.Clean(path)}
}

func (f *OSFile) Name() string { return filepath.Base(f.path) }
func (f *OSFile) Path() string { return f.path }

func (f *OSFile) Exists() bool {
	info, err := os.Stat(f.path)
	return err == nil && info.Mode().IsRegular()
}

func (f *OSFile) Length() int64 {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (f *OSFile) LastModified() int64 {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixMilli()
}

func (f *OSFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

var _ media.File = (*OSFile)(nil)
