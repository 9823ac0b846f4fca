package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"mediadex/internal/config"
	"mediadex/internal/database"
	"mediadex/internal/fs"
	"mediadex/internal/media"
	"mediadex/internal/watch"
)

// App is the application layer between the CLI and the index core. It
// constructs all dependencies from config, exposes high-level operations
// and manages lifecycle on Close.
type App struct {
	cfg        *config.Config
	store      *database.SQLiteStore // nil in transient mode
	tree       *media.ContentTree
	service    *media.Service
	worker     *media.Worker
	durations  *media.DurationWriter
	reconciler *media.Reconciler
	ignore     *fs.IgnoreMatcher
	logger     media.Logger
	logFile    *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Scan", "Serve"). The caller
// must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	if cfg.Library.Root == "" {
		return nil, fmt.Errorf("library root not configured")
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	a := &App{
		cfg:     cfg,
		store:   store,
		ignore:  fs.NewIgnoreMatcher(cfg.Library.Ignore),
		logger:  logger,
		logFile: logFile,
	}

	a.tree = media.NewContentTree(cfg.Index.RecentCapacity, logger)

	idgen := media.UUIDGenerator{}
	var resolver media.Resolver
	if store != nil {
		if err := store.MigrateUp(); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		a.worker = media.NewWorker(store, idgen, media.RealClock{}, logger)
		if cfg.Index.DrainBudgetSeconds > 0 {
			a.worker.SetDrainBudget(time.Duration(cfg.Index.DrainBudgetSeconds) * time.Second)
		}
		a.durations = media.NewDurationWriter(store, logger, time.Duration(cfg.Index.DurationFlushSeconds)*time.Second)
		a.durations.Start()
		a.reconciler = media.NewReconciler(store, a.tree, logger)
		resolver = media.NewPersistentResolver(a.worker)
	} else {
		resolver = media.NewTransientResolver(idgen)
	}

	var svcStore media.Store
	if store != nil {
		svcStore = store
	}
	a.service = media.NewService(a.tree, resolver, svcStore, a.durations, idgen, logger, cfg.Library.Root, fs.FormatOf)

	return a, nil
}

// Service exposes the event sink for producers and consumers.
func (a *App) Service() *media.Service { return a.service }

// Tree exposes the content tree for read-side consumers.
func (a *App) Tree() *media.ContentTree { return a.tree }

// Scan walks the library once, drains all pending resolutions and
// returns the number of files reported.
func (a *App) Scan() (int, error) {
	scanner := watch.NewScanner(a.cfg.Library.Root, a.ignore, a.cfg.Library.Archives, a.service, a.logger)
	count, err := scanner.Scan()
	a.service.Drain()
	return count, err
}

// Serve scans once, then watches the library until the context is
// canceled. The reconciler runs its first sweep after the configured
// delay.
func (a *App) Serve(ctx context.Context) error {
	if _, err := a.Scan(); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}

	if a.reconciler != nil {
		a.reconciler.Start(ctx, time.Duration(a.cfg.Index.ReconcileDelaySeconds)*time.Second)
	}

	watcher, err := watch.NewWatcher(a.cfg.Library.Root, a.ignore, a.service, a.logger)
	if err != nil {
		return err
	}
	if err := watcher.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// Reconcile runs one missing-file sweep, returning the number of rows
// newly marked missing.
func (a *App) Reconcile(ctx context.Context) (int, error) {
	if a.reconciler == nil {
		return 0, fmt.Errorf("no database configured")
	}
	return a.reconciler.Run(ctx)
}

// Stats returns store counters, zero in transient mode.
func (a *App) Stats() (media.StoreStats, error) {
	if a.store == nil {
		return media.StoreStats{}, nil
	}
	return a.store.Stats()
}

// Close flushes background writers and releases all resources.
func (a *App) Close() error {
	var firstErr error

	if a.durations != nil {
		a.durations.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing store: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
