package testutil

import (
	"context"
	"errors"

	"mediadex/internal/media"
)

// ErrCommitFailed is returned by FailingCommitStore transactions.
var ErrCommitFailed = errors.New("commit failed")

// FailingCommitStore wraps a Store so that Commit fails while FailCommits
// is set. Used to exercise batch failure paths.
type FailingCommitStore struct {
	media.Store
	FailCommits bool
}

func (s *FailingCommitStore) BeginWrite(ctx context.Context) (media.WriteTx, error) {
	tx, err := s.Store.BeginWrite(ctx)
	if err != nil {
		return nil, err
	}
	return &failingCommitTx{WriteTx: tx, store: s}, nil
}

type failingCommitTx struct {
	media.WriteTx
	store *FailingCommitStore
}

func (t *failingCommitTx) Commit() error {
	if t.store.FailCommits {
		t.WriteTx.Rollback()
		return ErrCommitFailed
	}
	return t.WriteTx.Commit()
}
