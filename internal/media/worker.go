package media

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDrainBudget is the wall-clock budget for one worker drain run.
// It caps transaction size and duration; remaining work re-arms a fresh
// run with a fresh transaction.
const DefaultDrainBudget = 10 * time.Second

// DefaultDurationFlushInterval is how often queued duration writes are
// flushed in one batched upsert.
const DefaultDurationFlushInterval = 30 * time.Second

type resolveRequest struct {
	file      File
	authScope uint32
	fn        ResolveFunc
}

type resolveResult struct {
	fn  ResolveFunc
	id  string
	err error
}

// Worker drains queued resolution requests in time-boxed batches, each
// batch against one write transaction. A compare-and-set running flag
// guarantees a single active drain at a time; Enqueue arms a drain only
// when none is running, and a finishing drain re-arms itself if requests
// arrived after its cutoff.
type Worker struct {
	store  Store
	idgen  IDGenerator
	clock  Clock
	logger Logger

	budget time.Duration
	exists func(string) bool
	submit func(func())

	mu      sync.Mutex
	queue   []resolveRequest
	running atomic.Bool
}

// NewWorker creates a resolution worker. Start is implicit: the first
// Enqueue arms a drain.
func NewWorker(store Store, idgen IDGenerator, clock Clock, logger Logger) *Worker {
	return &Worker{
		store:  store,
		idgen:  idgen,
		clock:  clock,
		logger: logger,
		budget: DefaultDrainBudget,
		exists: fileExistsOnDisk,
		submit: func(fn func()) { go fn() },
	}
}

// SetDrainBudget overrides the per-drain wall-clock budget.
func (w *Worker) SetDrainBudget(d time.Duration) { w.budget = d }

// SetExistsFunc overrides the on-disk liveness check used by the merge
// logic. Tests use it to control which paths count as gone.
func (w *Worker) SetExistsFunc(fn func(string) bool) { w.exists = fn }

// Enqueue queues one resolution request. Requests in one batch are
// processed in arrival order.
func (w *Worker) Enqueue(f File, authScope uint32, fn ResolveFunc) {
	w.mu.Lock()
	w.queue = append(w.queue, resolveRequest{file: f, authScope: authScope, fn: fn})
	w.mu.Unlock()

	w.arm()
}

// Pending returns the number of queued requests.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *Worker) arm() {
	if w.running.CompareAndSwap(false, true) {
		w.submit(w.drain)
	}
}

func (w *Worker) pop() (resolveRequest, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return resolveRequest{}, false
	}
	req := w.queue[0]
	w.queue = w.queue[1:]
	return req, true
}

// drain processes queued requests against one write transaction until the
// queue empties or the budget elapses. Resolution of the request in flight
// always completes; the budget is a cooperative cutoff checked between
// requests.
//
// Callbacks fire only after the batch commits, in arrival order. A commit
// failure rolls the whole batch back and is reported once to every
// callback of the batch; previously committed batches are unaffected.
func (w *Worker) drain() {
	deadline := w.clock.Now().Add(w.budget)

	tx, err := w.store.BeginWrite(context.Background())
	if err != nil {
		w.logger.Error("opening resolution transaction", "error", err)
		w.failPending(err)
	} else {
		var results []resolveResult
		for {
			req, ok := w.pop()
			if !ok {
				break
			}
			id, err := resolveInTx(tx, req.file, req.authScope, w.idgen, w.exists, w.logger)
			if err != nil {
				// Per-request failure: report to this caller only, keep
				// draining the batch.
				w.logger.Error("resolution failed", "path", req.file.Path(), "error", err)
			}
			results = append(results, resolveResult{fn: req.fn, id: id, err: err})

			// The budget is checked only between requests: the request in
			// flight always completes.
			if !w.clock.Now().Before(deadline) {
				break
			}
		}

		if err := tx.Commit(); err != nil {
			tx.Rollback()
			w.logger.Error("resolution batch commit failed", "requests", len(results), "error", err)
			for _, res := range results {
				if res.fn != nil {
					res.fn("", err)
				}
			}
		} else {
			for _, res := range results {
				if res.fn != nil {
					res.fn(res.id, res.err)
				}
			}
		}
	}

	w.running.Store(false)

	// Requests may have arrived after the cutoff; re-arm so they are not
	// stranded until the next Enqueue.
	w.mu.Lock()
	remaining := len(w.queue)
	w.mu.Unlock()
	if remaining > 0 {
		w.arm()
	}
}

// failPending reports a transaction-open failure to all queued callers
// without processing anything.
func (w *Worker) failPending(err error) {
	for {
		req, ok := w.pop()
		if !ok {
			return
		}
		if req.fn != nil {
			req.fn("", err)
		}
	}
}

// DurationWriter queues duration-cache writes and flushes them on a fixed
// schedule, one batched upsert per cycle.
type DurationWriter struct {
	store    Store
	logger   Logger
	interval time.Duration

	mu    sync.Mutex
	queue []DurationEntry

	stop chan struct{}
	done chan struct{}
}

// NewDurationWriter creates a duration writer flushing every interval.
// A non-positive interval falls back to the default.
func NewDurationWriter(store Store, logger Logger, interval time.Duration) *DurationWriter {
	if interval <= 0 {
		interval = DefaultDurationFlushInterval
	}
	return &DurationWriter{
		store:    store,
		logger:   logger,
		interval: interval,
	}
}

// Add queues one duration entry for the next flush.
func (d *DurationWriter) Add(path string, size, millis int64) {
	d.mu.Lock()
	d.queue = append(d.queue, DurationEntry{Path: path, Size: size, Millis: millis})
	d.mu.Unlock()
}

// Flush writes all queued entries in one transaction. Failed entries are
// re-queued for the next cycle.
func (d *DurationWriter) Flush() error {
	d.mu.Lock()
	batch := d.queue
	d.queue = nil
	d.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	tx, err := d.store.BeginWrite(context.Background())
	if err != nil {
		d.requeue(batch)
		return err
	}
	if err := tx.PutDurations(batch); err != nil {
		tx.Rollback()
		d.requeue(batch)
		return err
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		d.requeue(batch)
		return err
	}
	return nil
}

func (d *DurationWriter) requeue(batch []DurationEntry) {
	d.mu.Lock()
	d.queue = append(batch, d.queue...)
	d.mu.Unlock()
}

// Start launches the periodic flusher. Call Stop to flush once more and
// shut it down.
func (d *DurationWriter) Start() {
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := d.Flush(); err != nil {
					d.logger.Error("duration flush failed", "error", err)
				}
			case <-d.stop:
				if err := d.Flush(); err != nil {
					d.logger.Error("final duration flush failed", "error", err)
				}
				return
			}
		}
	}()
}

// Stop shuts down the periodic flusher, flushing any remaining entries.
func (d *DurationWriter) Stop() {
	if d.stop == nil {
		return
	}
	close(d.stop)
	<-d.done
	d.stop = nil
}
