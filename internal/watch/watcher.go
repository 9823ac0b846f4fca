package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	mfs "mediadex/internal/fs"
	"mediadex/internal/media"
)

// Watcher turns fsnotify events into found/modified/gone reports for the
// sink. Every directory under the root is watched; directories created
// later are added as their create events arrive.
type Watcher struct {
	root    string
	ignore  *mfs.IgnoreMatcher
	sink    media.EventSink
	logger  media.Logger
	watcher *fsnotify.Watcher
}

func NewWatcher(root string, ignore *mfs.IgnoreMatcher, sink media.EventSink, logger media.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{
		root:    filepath.Clean(root),
		ignore:  ignore,
		sink:    sink,
		logger:  logger,
		watcher: fw,
	}, nil
}

// Run watches until the context is canceled. It blocks; run it in its own
// goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.logger.Info("filesystem watcher started", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || (rel != "." && w.ignore.Match(rel)) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("watching new directory", "path", event.Name, "error", err)
			}
			return
		}
		if info.Mode().IsRegular() {
			w.sink.FileFound(mfs.NewOSFile(event.Name))
		}
	case event.Op.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err == nil && info.Mode().IsRegular() {
			w.sink.FileModified(mfs.NewOSFile(event.Name))
		}
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.sink.FileGone(filepath.Clean(event.Name))
	}
}

// addRecursive registers the directory and every subdirectory with the
// underlying watcher, reporting files found along the way so entries
// created inside a brand-new directory are not missed.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping unwatchable path", "path", path, "error", err)
			return nil
		}
		rel, rerr := filepath.Rel(w.root, path)
		if rerr == nil && rel != "." && w.ignore.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			return nil
		}
		if dir != w.root && d.Type().IsRegular() {
			w.sink.FileFound(mfs.NewOSFile(path))
		}
		return nil
	})
}
