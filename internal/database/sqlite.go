package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"mediadex/internal/database/migrations"
	"mediadex/internal/media"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// durationCacheSize bounds the in-memory read cache in front of the
// durations table.
const durationCacheSize = 1024

type durationValue struct {
	size   int64
	millis int64
}

// SQLiteStore implements media.Store on SQLite. Reads go through the
// shared connection pool; every write transaction gets its own handle via
// BeginWrite, so concurrent writers never share transaction state.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	durations *lru.Cache[string, durationValue]
}

// NewSQLiteStore opens (or creates) the store at path. Use ":memory:" for
// an in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return newStore(db, path)
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is
// responsible for its configuration.
func NewSQLiteStoreFromDB(db *sql.DB) (*SQLiteStore, error) {
	return newStore(db, "")
}

func newStore(db *sql.DB, path string) (*SQLiteStore, error) {
	cache, err := lru.New[string, durationValue](durationCacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating duration cache: %w", err)
	}
	return &SQLiteStore{db: db, path: path, durations: cache}, nil
}

// OpenConnection opens and configures a SQLite connection. Exported for
// tools and tests that need a properly configured handle.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Waiting briefly for locks keeps concurrent write transactions from
	// failing immediately with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return db, nil
}

// Path returns the database file path ("" when wrapping a caller-owned
// connection, ":memory:" for in-memory stores).
func (s *SQLiteStore) Path() string { return s.path }

// MigrateUp brings the schema to the latest version.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.Up(s.db)
}

// CheckMigrations verifies the schema is up to date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

const recordColumns = "path, size, modified, content_hash, secondary_hash, mime_type, id, auth_scope, missing"

func scanRecord(row interface{ Scan(...any) error }) (media.ContentRecord, error) {
	var (
		path, contentHash, secondaryHash, mimeType, id string
		size, modified                                 int64
		authScope                                      uint32
		missing                                        bool
	)
	err := row.Scan(&path, &size, &modified, &contentHash, &secondaryHash, &mimeType, &id, &authScope, &missing)
	if err != nil {
		return media.ContentRecord{}, err
	}
	return media.RestoreContentRecord(path, size, modified, contentHash, secondaryHash, mimeType, id, authScope, missing), nil
}

func findRecordByPath(q queryer, path string) (*media.ContentRecord, error) {
	row := q.QueryRow("SELECT "+recordColumns+" FROM content_records WHERE path = ?", path)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding record by path: %w", err)
	}
	return &rec, nil
}

// queryer is the subset of sql.DB/sql.Tx used by shared query helpers.
type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

// FindRecordByPath returns the record for an absolute path, nil when no
// row exists.
func (s *SQLiteStore) FindRecordByPath(path string) (*media.ContentRecord, error) {
	return findRecordByPath(s.db, path)
}

// FindDuration returns the cached duration for a path. A hit is only
// honored when the stored size matches the current file size, which is
// how stale entries invalidate themselves.
func (s *SQLiteStore) FindDuration(path string, size int64) (int64, bool, error) {
	if v, ok := s.durations.Get(path); ok {
		if v.size == size {
			return v.millis, true, nil
		}
		return 0, false, nil
	}

	var v durationValue
	err := s.db.QueryRow("SELECT size, duration_millis FROM durations WHERE path = ?", path).Scan(&v.size, &v.millis)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("finding duration: %w", err)
	}

	s.durations.Add(path, v)
	if v.size == size {
		return v.millis, true, nil
	}
	return 0, false, nil
}

// Stats returns record counts for status reporting.
func (s *SQLiteStore) Stats() (media.StoreStats, error) {
	var stats media.StoreStats
	err := s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(missing), 0) FROM content_records").Scan(&stats.Records, &stats.Missing)
	if err != nil {
		return stats, fmt.Errorf("counting records: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM canonical_hashes").Scan(&stats.Canonical); err != nil {
		return stats, fmt.Errorf("counting canonical hashes: %w", err)
	}
	return stats, nil
}

// BeginWrite opens a write transaction. The handle is single-owner and
// must be finished with Commit or Rollback.
func (s *SQLiteStore) BeginWrite(ctx context.Context) (media.WriteTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return &writeTx{tx: tx, store: s}, nil
}

// BackupTo creates a complete copy of the database at destPath.
func (s *SQLiteStore) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// writeTx implements media.WriteTx over one *sql.Tx. Duration writes are
// staged and only published to the read cache once the transaction
// commits.
type writeTx struct {
	tx        *sql.Tx
	store     *SQLiteStore
	durations []media.DurationEntry
	finished  bool
}

func (t *writeTx) FindRecordByPath(path string) (*media.ContentRecord, error) {
	return findRecordByPath(t.tx, path)
}

func (t *writeTx) SaveRecord(rec media.ContentRecord) error {
	_, err := t.tx.Exec(`
		INSERT INTO content_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET
			size = excluded.size,
			modified = excluded.modified,
			content_hash = excluded.content_hash,
			secondary_hash = excluded.secondary_hash,
			mime_type = excluded.mime_type,
			id = excluded.id,
			auth_scope = excluded.auth_scope,
			missing = excluded.missing`,
		rec.Path(), rec.Size(), rec.Modified(), rec.ContentHash(), rec.SecondaryHash(),
		rec.MimeType(), rec.ID(), rec.AuthScope(), rec.Missing())
	if err != nil {
		return fmt.Errorf("saving record: %w", err)
	}
	return nil
}

func (t *writeTx) DeleteRecordByPath(path string) error {
	if _, err := t.tx.Exec("DELETE FROM content_records WHERE path = ?", path); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

func (t *writeTx) FindRecordsByHash(contentHash string) ([]media.ContentRecord, error) {
	rows, err := t.tx.Query("SELECT "+recordColumns+" FROM content_records WHERE content_hash = ?", contentHash)
	if err != nil {
		return nil, fmt.Errorf("finding records by hash: %w", err)
	}
	defer rows.Close()

	var out []media.ContentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return out, nil
}

func (t *writeTx) CanonicalID(contentHash string) (string, error) {
	var id string
	err := t.tx.QueryRow("SELECT id FROM canonical_hashes WHERE content_hash = ?", contentHash).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("finding canonical id: %w", err)
	}
	return id, nil
}

func (t *writeTx) SetCanonicalID(contentHash, id string) error {
	_, err := t.tx.Exec(`
		INSERT INTO canonical_hashes (content_hash, id) VALUES (?, ?)
		ON CONFLICT (content_hash) DO UPDATE SET id = excluded.id`,
		contentHash, id)
	if err != nil {
		return fmt.Errorf("setting canonical id: %w", err)
	}
	return nil
}

func (t *writeTx) HashesForID(id string) ([]string, error) {
	rows, err := t.tx.Query("SELECT content_hash FROM content_records WHERE id = ? AND missing = 0", id)
	if err != nil {
		return nil, fmt.Errorf("finding hashes for id: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scanning hash: %w", err)
		}
		out = append(out, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading hashes: %w", err)
	}
	return out, nil
}

func (t *writeTx) PathsNotMissing() ([]string, error) {
	rows, err := t.tx.Query("SELECT path FROM content_records WHERE missing = 0")
	if err != nil {
		return nil, fmt.Errorf("listing paths: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scanning path: %w", err)
		}
		out = append(out, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading paths: %w", err)
	}
	return out, nil
}

func (t *writeTx) MarkMissing(path string) error {
	if _, err := t.tx.Exec("UPDATE content_records SET missing = 1 WHERE path = ?", path); err != nil {
		return fmt.Errorf("marking missing: %w", err)
	}
	return nil
}

// PutDurations writes the batch as update-then-insert: an UPDATE first,
// and an INSERT only for paths the UPDATE did not touch.
func (t *writeTx) PutDurations(entries []media.DurationEntry) error {
	for _, e := range entries {
		res, err := t.tx.Exec("UPDATE durations SET size = ?, duration_millis = ? WHERE path = ?", e.Size, e.Millis, e.Path)
		if err != nil {
			return fmt.Errorf("updating duration: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking duration update: %w", err)
		}
		if n == 0 {
			if _, err := t.tx.Exec("INSERT INTO durations (path, size, duration_millis) VALUES (?, ?, ?)", e.Path, e.Size, e.Millis); err != nil {
				return fmt.Errorf("inserting duration: %w", err)
			}
		}
	}
	t.durations = append(t.durations, entries...)
	return nil
}

func (t *writeTx) Commit() error {
	if t.finished {
		return nil
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	t.finished = true
	for _, e := range t.durations {
		t.store.durations.Add(e.Path, durationValue{size: e.Size, millis: e.Millis})
	}
	return nil
}

func (t *writeTx) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	return t.tx.Rollback()
}

// Compile-time checks.
var (
	_ media.Store   = (*SQLiteStore)(nil)
	_ media.WriteTx = (*writeTx)(nil)
)
