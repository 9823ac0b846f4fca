package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"
)

// fakeFile is an in-memory File whose content and metadata tests mutate
// between resolutions. opens counts content reads so tests can assert the
// fast path skipped hashing.
type fakeFile struct {
	mu       sync.Mutex
	path     string
	content  []byte
	modified int64
	gone     bool
	opens    int
}

func newFakeFile(path, content string, modified int64) *fakeFile {
	return &fakeFile{path: path, content: []byte(content), modified: modified}
}

func (f *fakeFile) Name() string { return filepath.Base(f.path) }
func (f *fakeFile) Path() string { return f.path }

func (f *fakeFile) Exists() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.gone
}

func (f *fakeFile) Length() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.content))
}

func (f *fakeFile) LastModified() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modified
}

func (f *fakeFile) Open() (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.gone {
		return nil, errors.New("file does not exist")
	}
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

func (f *fakeFile) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeFile) setContent(content string, modified int64) {
	f.mu.Lock()
	f.content = []byte(content)
	f.modified = modified
	f.mu.Unlock()
}

func (f *fakeFile) remove() {
	f.mu.Lock()
	f.gone = true
	f.mu.Unlock()
}

// memStore is an in-memory Store for resolver and worker tests. Each
// transaction works on a copy of the maps and publishes on Commit, which
// makes rollback semantics observable.
type memStore struct {
	mu        sync.Mutex
	records   map[string]ContentRecord // by path
	canonical map[string]string        // content hash -> id
	durations map[string]DurationEntry // by path

	begins    int
	commits   int
	beginErr  error
	commitErr error
	putDurErr error
}

func newMemStore() *memStore {
	return &memStore{
		records:   make(map[string]ContentRecord),
		canonical: make(map[string]string),
		durations: make(map[string]DurationEntry),
	}
}

func (s *memStore) FindRecordByPath(path string) (*ContentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[path]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memStore) FindDuration(path string, size int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.durations[path]
	if !ok || e.Size != size {
		return 0, false, nil
	}
	return e.Millis, true, nil
}

func (s *memStore) Stats() (StoreStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := StoreStats{Canonical: int64(len(s.canonical))}
	for _, rec := range s.records {
		stats.Records++
		if rec.Missing() {
			stats.Missing++
		}
	}
	return stats, nil
}

func (s *memStore) BeginWrite(_ context.Context) (WriteTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	tx := &memTx{
		store:     s,
		records:   make(map[string]ContentRecord, len(s.records)),
		canonical: make(map[string]string, len(s.canonical)),
		durations: make(map[string]DurationEntry, len(s.durations)),
	}
	for k, v := range s.records {
		tx.records[k] = v
	}
	for k, v := range s.canonical {
		tx.canonical[k] = v
	}
	for k, v := range s.durations {
		tx.durations[k] = v
	}
	return tx, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) record(path string) (ContentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[path]
	return rec, ok
}

type memTx struct {
	store     *memStore
	records   map[string]ContentRecord
	canonical map[string]string
	durations map[string]DurationEntry
	finished  bool
}

func (t *memTx) FindRecordByPath(path string) (*ContentRecord, error) {
	rec, ok := t.records[path]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (t *memTx) SaveRecord(rec ContentRecord) error {
	t.records[rec.Path()] = rec
	return nil
}

func (t *memTx) DeleteRecordByPath(path string) error {
	delete(t.records, path)
	return nil
}

func (t *memTx) FindRecordsByHash(contentHash string) ([]ContentRecord, error) {
	var out []ContentRecord
	for _, rec := range t.records {
		if rec.ContentHash() == contentHash {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (t *memTx) CanonicalID(contentHash string) (string, error) {
	return t.canonical[contentHash], nil
}

func (t *memTx) SetCanonicalID(contentHash, id string) error {
	t.canonical[contentHash] = id
	return nil
}

func (t *memTx) HashesForID(id string) ([]string, error) {
	var out []string
	for _, rec := range t.records {
		if rec.ID() == id && !rec.Missing() {
			out = append(out, rec.ContentHash())
		}
	}
	return out, nil
}

func (t *memTx) PathsNotMissing() ([]string, error) {
	var out []string
	for path, rec := range t.records {
		if !rec.Missing() {
			out = append(out, path)
		}
	}
	return out, nil
}

func (t *memTx) MarkMissing(path string) error {
	rec, ok := t.records[path]
	if !ok {
		return fmt.Errorf("no record for %s", path)
	}
	t.records[path] = rec.WithMissing(true)
	return nil
}

func (t *memTx) PutDurations(entries []DurationEntry) error {
	if err := t.store.putDurErr; err != nil {
		return err
	}
	for _, e := range entries {
		t.durations[e.Path] = e
	}
	return nil
}

func (t *memTx) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	t.store.records = t.records
	t.store.canonical = t.canonical
	t.store.durations = t.durations
	t.store.commits++
	return nil
}

func (t *memTx) Rollback() error {
	t.finished = true
	return nil
}

var (
	_ Store   = (*memStore)(nil)
	_ WriteTx = (*memTx)(nil)
)

// seqIDs generates "id-1", "id-2", ... optionally prefixed by canned ids
// to force collisions.
type seqIDs struct {
	mu     sync.Mutex
	canned []string
	n      int
}

func (g *seqIDs) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.canned) > 0 {
		id := g.canned[0]
		g.canned = g.canned[1:]
		return id
	}
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

// stepClock advances by step on every Now call.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// allExist and noneExist stand in for the on-disk liveness check.
func allExist(string) bool  { return true }
func noneExist(string) bool { return false }
