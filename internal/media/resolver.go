package media

import (
	"fmt"
	"sync"
)

// ResolveFunc receives the outcome of one identity resolution.
type ResolveFunc func(id string, err error)

// Resolver turns a file into a stable, content-derived id. The persistent
// implementation is asynchronous: Resolve enqueues and the result arrives
// via the callback from a worker goroutine. The transient implementation
// invokes the callback before returning.
type Resolver interface {
	Resolve(f File, authScope uint32, fn ResolveFunc)
}

// maxMintAttempts bounds the retry loop when a freshly minted id collides
// with one already in use. Collisions are vanishingly rare; hitting the
// bound means the id generator is broken.
const maxMintAttempts = 10

// resolveInTx runs the identity algorithm for one file inside the caller's
// write transaction.
//
//  1. No record for the path: hash the content. If every other record
//     sharing the hash is backed by a gone file and they agree on one id,
//     reuse that id and delete the stale rows (merge-on-rediscovery).
//     Otherwise mint a fresh id. A new path never steals the id of a
//     still-live duplicate.
//  2. Record exists and size/mtime match: return the stored id, no
//     hashing.
//  3. Record exists but the file changed: rehash, keep the existing id
//     unless the canonical id for the old hash differs and every other
//     holder of that hash is gone, in which case adopt the canonical id
//     and delete the redundant rows.
//  4. Record exists and the file is gone: return the best-known id so the
//     caller can deregister it; persist nothing.
func resolveInTx(tx WriteTx, f File, authScope uint32, idgen IDGenerator, exists func(string) bool, logger Logger) (string, error) {
	rec, err := tx.FindRecordByPath(f.Path())
	if err != nil {
		return "", err
	}

	if rec == nil {
		return resolveNewPath(tx, f, authScope, idgen, exists, logger)
	}

	if !f.Exists() {
		// Gone between discovery and resolution. Not an error: hand back
		// the known id so the tree entry can be removed.
		return rec.ID(), nil
	}

	if rec.UpToDate(f.Length(), f.LastModified()) {
		return rec.ID(), nil
	}

	return resolveChangedPath(tx, f, *rec, authScope, exists, logger)
}

func resolveNewPath(tx WriteTx, f File, authScope uint32, idgen IDGenerator, exists func(string) bool, logger Logger) (string, error) {
	digest, err := digestFile(f)
	if err != nil {
		return "", err
	}

	id, stale, err := reusableID(tx, digest.contentHash, f.Path(), exists)
	if err != nil {
		return "", err
	}

	if id != "" {
		for _, path := range stale {
			if err := tx.DeleteRecordByPath(path); err != nil {
				return "", err
			}
		}
		logger.Debug("id reused from stale duplicate", "path", f.Path(), "id", id)
	} else {
		id, err = mintID(tx, idgen, logger)
		if err != nil {
			return "", err
		}
	}

	rec := NewContentRecord(f.Path(), digest.size, f.LastModified(), digest.contentHash).
		WithSecondaryHash(digest.secondaryHash).
		WithMimeType(digest.mimeType).
		WithID(id).
		WithAuthScope(authScope)
	if err := tx.SaveRecord(rec); err != nil {
		return "", err
	}

	canonical, err := tx.CanonicalID(digest.contentHash)
	if err != nil {
		return "", err
	}
	if canonical == "" {
		if err := tx.SetCanonicalID(digest.contentHash, id); err != nil {
			return "", err
		}
	}

	return id, nil
}

func resolveChangedPath(tx WriteTx, f File, rec ContentRecord, authScope uint32, exists func(string) bool, logger Logger) (string, error) {
	oldHash := rec.ContentHash()

	digest, err := digestFile(f)
	if err != nil {
		return "", err
	}

	// Identity stays sticky across content edits unless a merge applies:
	// the canonical id for the old hash differs from ours and every other
	// holder of that hash is gone.
	canonical, err := tx.CanonicalID(oldHash)
	if err != nil {
		return "", err
	}
	if canonical != "" && canonical != rec.ID() {
		others, err := tx.FindRecordsByHash(oldHash)
		if err != nil {
			return "", err
		}
		merge := true
		var stale []string
		for _, other := range others {
			if other.Path() == rec.Path() {
				continue
			}
			if exists(other.Path()) {
				merge = false
				break
			}
			stale = append(stale, other.Path())
		}
		if merge {
			for _, path := range stale {
				if err := tx.DeleteRecordByPath(path); err != nil {
					return "", err
				}
			}
			logger.Debug("id merged onto canonical", "path", rec.Path(), "old", rec.ID(), "id", canonical)
			rec = rec.WithReplacedID(canonical)
		}
	}

	rec = rec.WithContent(digest.size, f.LastModified(), digest.contentHash).
		WithSecondaryHash(digest.secondaryHash).
		WithMimeType(digest.mimeType).
		WithAuthScope(authScope).
		WithMissing(false)
	if err := tx.SaveRecord(rec); err != nil {
		return "", err
	}

	canonical, err = tx.CanonicalID(digest.contentHash)
	if err != nil {
		return "", err
	}
	if canonical == "" {
		if err := tx.SetCanonicalID(digest.contentHash, rec.ID()); err != nil {
			return "", err
		}
	}

	return rec.ID(), nil
}

// reusableID looks for records of other paths sharing the hash. If any of
// them is still backed by a live file no reuse happens. If all are gone
// and they agree on exactly one distinct id, that id is reused and the
// stale paths are returned for deletion.
func reusableID(tx WriteTx, contentHash, selfPath string, exists func(string) bool) (string, []string, error) {
	dups, err := tx.FindRecordsByHash(contentHash)
	if err != nil {
		return "", nil, err
	}

	var id string
	var stale []string
	for _, dup := range dups {
		if dup.Path() == selfPath {
			continue
		}
		if exists(dup.Path()) {
			return "", nil, nil
		}
		if id == "" {
			id = dup.ID()
		} else if id != dup.ID() {
			// Ambiguous: two gone paths with different ids. Mint fresh.
			return "", nil, nil
		}
		stale = append(stale, dup.Path())
	}
	return id, stale, nil
}

// mintID generates a fresh random id, retrying while the candidate is
// already in use for some other content. Collisions are logged, never
// surfaced as errors.
func mintID(tx WriteTx, idgen IDGenerator, logger Logger) (string, error) {
	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		id := idgen.New()
		hashes, err := tx.HashesForID(id)
		if err != nil {
			return "", err
		}
		if len(hashes) == 0 {
			return id, nil
		}
		logger.Warn("minted id collides with existing record, retrying", "id", id)
	}
	return "", fmt.Errorf("id generator produced %d colliding ids in a row", maxMintAttempts)
}

// persistentResolver hands requests to the batched async worker.
type persistentResolver struct {
	worker *Worker
}

// NewPersistentResolver returns the resolver used when a durable store is
// configured. Resolution is queued on the worker and never blocks the
// caller.
func NewPersistentResolver(worker *Worker) Resolver {
	return &persistentResolver{worker: worker}
}

func (r *persistentResolver) Resolve(f File, authScope uint32, fn ResolveFunc) {
	r.worker.Enqueue(f, authScope, fn)
}

// transientResolver assigns process-local ids with no persistence and no
// hashing. Ids are stable per path for the lifetime of the process only.
type transientResolver struct {
	idgen IDGenerator
	mu    sync.Mutex
	ids   map[string]string
}

// NewTransientResolver returns the synchronous no-store resolver.
func NewTransientResolver(idgen IDGenerator) Resolver {
	return &transientResolver{idgen: idgen, ids: make(map[string]string)}
}

func (r *transientResolver) Resolve(f File, _ uint32, fn ResolveFunc) {
	r.mu.Lock()
	id, ok := r.ids[f.Path()]
	if !ok {
		id = r.idgen.New()
		r.ids[f.Path()] = id
	}
	r.mu.Unlock()
	fn(id, nil)
}

var (
	_ Resolver = (*persistentResolver)(nil)
	_ Resolver = (*transientResolver)(nil)
)
