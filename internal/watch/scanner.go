package watch

import (
	"fmt"
	"io/fs"
	"path/filepath"

	mfs "mediadex/internal/fs"
	"mediadex/internal/media"
)

// Scanner walks the library root once and reports every media file to the
// sink. The index core never initiates scanning; the scanner is the
// one-shot producer used by the scan command and at serve startup.
type Scanner struct {
	root     string
	ignore   *mfs.IgnoreMatcher
	archives bool
	sink     media.EventSink
	logger   media.Logger
}

func NewScanner(root string, ignore *mfs.IgnoreMatcher, archives bool, sink media.EventSink, logger media.Logger) *Scanner {
	return &Scanner{
		root:     filepath.Clean(root),
		ignore:   ignore,
		archives: archives,
		sink:     sink,
		logger:   logger,
	}
}

// Scan walks the tree and returns the number of files reported. Unreadable
// subtrees are logged and skipped, not fatal.
func (s *Scanner) Scan() (int, error) {
	count := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, rerr := filepath.Rel(s.root, path)
		if rerr != nil {
			return rerr
		}
		if rel != "." && s.ignore.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		if s.archives && mfs.IsArchive(d.Name()) {
			count += s.scanArchive(path)
			return nil
		}

		s.sink.FileFound(mfs.NewOSFile(path))
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("walking %s: %w", s.root, err)
	}
	return count, nil
}

func (s *Scanner) scanArchive(path string) int {
	entries, err := mfs.ListArchive(path)
	if err != nil {
		s.logger.Warn("skipping unreadable archive", "path", path, "error", err)
		return 0
	}
	for _, e := range entries {
		s.sink.FileFound(e)
	}
	return len(entries)
}
