package fs

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mediadex/internal/media"
)

// ArchiveEntry is a read-only media.File backed by one entry of a zip
// archive. The entry path addresses archive and entry together, so store
// records for archive content key cleanly. Metadata comes from the entry
// header and is unknown (zero) until the archive can be opened.
type ArchiveEntry struct {
	archivePath string
	entryName   string
}

// NewArchiveEntry creates a handle for entryName inside the archive.
func NewArchiveEntry(archivePath, entryName string) *ArchiveEntry {
	return &ArchiveEntry{archivePath: filepath.Clean(archivePath), entryName: entryName}
}

// ListArchive returns handles for every regular entry in the archive.
func ListArchive(archivePath string) ([]*ArchiveEntry, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", archivePath, err)
	}
	defer r.Close()

	var entries []*ArchiveEntry
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, NewArchiveEntry(archivePath, f.Name))
	}
	return entries, nil
}

func (e *ArchiveEntry) Name() string { return filepath.Base(e.entryName) }

// Path addresses the entry inside the archive with a separator that
// cannot occur in a real filesystem path.
func (e *ArchiveEntry) Path() string {
	return e.archivePath + media.ArchivePathSeparator + e.entryName
}

func (e *ArchiveEntry) Exists() bool {
	f, err := e.find()
	if err != nil {
		return false
	}
	f.close()
	return true
}

func (e *ArchiveEntry) Length() int64 {
	f, err := e.find()
	if err != nil {
		return 0
	}
	defer f.close()
	return int64(f.entry.UncompressedSize64)
}

func (e *ArchiveEntry) LastModified() int64 {
	f, err := e.find()
	if err != nil {
		return 0
	}
	defer f.close()
	return f.entry.Modified.UnixMilli()
}

// Open returns the decompressed entry content. Closing the returned
// reader closes the archive too.
func (e *ArchiveEntry) Open() (io.ReadCloser, error) {
	f, err := e.find()
	if err != nil {
		return nil, err
	}
	rc, err := f.entry.Open()
	if err != nil {
		f.close()
		return nil, fmt.Errorf("opening archive entry %s: %w", e.Path(), err)
	}
	return &entryReader{rc: rc, archive: f.reader}, nil
}

type foundEntry struct {
	reader *zip.ReadCloser
	entry  *zip.File
}

func (f *foundEntry) close() { f.reader.Close() }

func (e *ArchiveEntry) find() (*foundEntry, error) {
	if info, err := os.Stat(e.archivePath); err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("archive gone: %s", e.archivePath)
	}
	r, err := zip.OpenReader(e.archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", e.archivePath, err)
	}
	for _, f := range r.File {
		if f.Name == e.entryName {
			return &foundEntry{reader: r, entry: f}, nil
		}
	}
	r.Close()
	return nil, fmt.Errorf("entry %s not found in %s", e.entryName, e.archivePath)
}

type entryReader struct {
	rc      io.ReadCloser
	archive *zip.ReadCloser
}

func (r *entryReader) Read(p []byte) (int, error) { return r.rc.Read(p) }

func (r *entryReader) Close() error {
	err := r.rc.Close()
	if cerr := r.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

// IsArchive reports whether the file name looks like a supported archive.
func IsArchive(name string) bool {
	return filepath.Ext(name) == ".zip"
}

var _ media.File = (*ArchiveEntry)(nil)
