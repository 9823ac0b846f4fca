package media

import (
	"archive/zip"
	"io"
	"os"
	"strings"
)

// ArchivePathSeparator joins an archive path and an entry name into one
// entry path. The sequence cannot occur in a real filesystem path, so
// entry paths key cleanly in the store next to plain paths.
const ArchivePathSeparator = "!/"

// File abstracts a readable media file. Implementations cover plain
// filesystem files and entries inside read-only archives, where metadata
// may be unknown until the archive is opened.
//
// Exists, Length and LastModified reflect the current state of the backing
// file, not a cached snapshot: the resolver relies on fresh values to
// detect staleness.
type File interface {
	// Name returns the base name of the file.
	Name() string

	// Path returns the absolute path of the file. For archive entries the
	// path addresses the entry, not the archive. The path is the unique
	// key for the persistent store.
	Path() string

	// Exists reports whether the backing file is still present.
	Exists() bool

	// Length returns the file size in bytes, or 0 if unknown.
	Length() int64

	// LastModified returns the modification time in milliseconds since the
	// Unix epoch, or 0 if unknown.
	LastModified() int64

	// Open opens the file content for reading.
	Open() (io.ReadCloser, error)
}

// fileExistsOnDisk is the default liveness check used when deciding whether
// records for other paths are stale. Archive-entry paths are checked inside
// their archive; a bare stat would misread every live entry as gone.
func fileExistsOnDisk(path string) bool {
	if archivePath, entryName, ok := strings.Cut(path, ArchivePathSeparator); ok {
		return archiveEntryExists(archivePath, entryName)
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// archiveEntryExists reports whether the archive is still a regular file
// and carries the named entry.
func archiveEntryExists(archivePath, entryName string) bool {
	if info, err := os.Stat(archivePath); err != nil || !info.Mode().IsRegular() {
		return false
	}
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return false
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name == entryName {
			return !f.FileInfo().IsDir()
		}
	}
	return false
}
