package media

import (
	"context"
	"time"
)

// DefaultReconcileDelay gives the first full scan time to complete before
// the initial sweep.
const DefaultReconcileDelay = 5 * time.Minute

// Reconciler marks store rows missing when their files are gone from both
// the tree and the disk. Files absent from the tree but still on disk are
// left alone: they may simply not have been re-indexed yet.
type Reconciler struct {
	store  Store
	tree   *ContentTree
	logger Logger
	exists func(string) bool
}

func NewReconciler(store Store, tree *ContentTree, logger Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		tree:   tree,
		logger: logger,
		exists: fileExistsOnDisk,
	}
}

// SetExistsFunc overrides the on-disk liveness check for tests.
func (r *Reconciler) SetExistsFunc(fn func(string) bool) { r.exists = fn }

// Run performs one sweep in one transaction and returns the number of
// rows newly marked missing.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	live := r.tree.LivePaths()

	tx, err := r.store.BeginWrite(ctx)
	if err != nil {
		return 0, err
	}

	paths, err := tx.PathsNotMissing()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	marked := 0
	for _, path := range paths {
		if _, ok := live[path]; ok {
			continue
		}
		if r.exists(path) {
			continue
		}
		if err := tx.MarkMissing(path); err != nil {
			tx.Rollback()
			return 0, err
		}
		marked++
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return 0, err
	}

	if marked > 0 {
		r.logger.Info("reconciler marked files missing", "count", marked)
	}
	return marked, nil
}

// Start runs one sweep after the initial delay, then waits for further
// Run calls. Failures are logged; the next invocation simply tries again.
func (r *Reconciler) Start(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		delay = DefaultReconcileDelay
	}
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if _, err := r.Run(ctx); err != nil {
			r.logger.Error("reconciler sweep failed", "error", err)
		}
	}()
}
