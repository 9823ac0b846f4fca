package media

import "context"

// DurationEntry is one queued duration-cache write.
type DurationEntry struct {
	Path   string
	Size   int64
	Millis int64
}

// StoreStats summarizes the persisted index for operator surfaces.
type StoreStats struct {
	Records   int64
	Missing   int64
	Canonical int64
}

// Store provides durable storage for content records, the canonical
// hash-to-id index and the duration cache.
//
// Read methods use the store's shared connection. All mutation goes
// through a WriteTx obtained from BeginWrite: one transaction per logical
// unit of work, explicitly committed or rolled back.
type Store interface {
	// FindRecordByPath returns the record for an absolute path, or nil if
	// no record exists.
	FindRecordByPath(path string) (*ContentRecord, error)

	// FindDuration returns the cached duration for a path. The hit is only
	// honored when the stored size matches the file's current size.
	FindDuration(path string, size int64) (millis int64, ok bool, err error)

	// Stats returns record counts for status reporting.
	Stats() (StoreStats, error)

	// BeginWrite opens a write transaction. The returned handle is
	// single-owner: it must not be shared across goroutines, and must be
	// finished with Commit or Rollback.
	BeginWrite(ctx context.Context) (WriteTx, error)

	Close() error
}

// WriteTx is one write transaction against the store. Resolution batches,
// duration flushes and reconciler sweeps each run against exactly one
// WriteTx.
type WriteTx interface {
	// FindRecordByPath returns the record for a path, or nil.
	FindRecordByPath(path string) (*ContentRecord, error)

	// SaveRecord inserts or updates the record identified by its path.
	SaveRecord(rec ContentRecord) error

	// DeleteRecordByPath removes the record for one explicit path.
	DeleteRecordByPath(path string) error

	// FindRecordsByHash returns every record whose content hash matches.
	FindRecordsByHash(contentHash string) ([]ContentRecord, error)

	// CanonicalID returns the id currently in authoritative use for a
	// content hash, or "" when no mapping exists.
	CanonicalID(contentHash string) (string, error)

	// SetCanonicalID installs or replaces the canonical mapping for a hash.
	SetCanonicalID(contentHash, id string) error

	// HashesForID returns the content hashes of all non-missing records
	// carrying the given id. Used to guard freshly minted ids against
	// collision.
	HashesForID(id string) ([]string, error)

	// PathsNotMissing returns every path not yet marked missing.
	PathsNotMissing() ([]string, error)

	// MarkMissing sets the missing flag on the record for one path.
	MarkMissing(path string) error

	// PutDurations batch-writes duration entries, update-then-insert.
	PutDurations(entries []DurationEntry) error

	Commit() error
	Rollback() error
}
