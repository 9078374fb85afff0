package badger

import (
	"context"
	"time"

	badgerv4 "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/GabriWar/vigilant/internal/errs"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

// SnapshotStorage implements storage.SnapshotStore. Exactly one row
// per watcher (P1), keyed by watcher id to make that invariant
// structural rather than enforced by query.
type SnapshotStorage struct{ db *DB }

func NewSnapshotStorage(db *DB) *SnapshotStorage { return &SnapshotStorage{db: db} }

func (s *SnapshotStorage) Get(ctx context.Context, watcherID int64) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := s.db.store.Get(watcherID, &snap); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, errs.New(errs.NotFound, "snapshot.get", err)
		}
		return nil, errs.New(errs.Storage, "snapshot.get", err)
	}
	return &snap, nil
}

// Put upserts the snapshot for s.WatcherID, keyed by watcher id so a
// second Put always overwrites rather than duplicates (spec §4.4 step
// 5: "overwrite snapshot").
func (s *SnapshotStorage) Put(ctx context.Context, snap *models.Snapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	if err := s.db.store.Upsert(snap.WatcherID, snap); err != nil {
		return errs.New(errs.Storage, "snapshot.put", err)
	}
	return nil
}

// PutTx is Put run against an open transaction (see
// storage.Transactor), so the snapshot commits atomically with the
// ChangeLog it was produced alongside.
func (s *SnapshotStorage) PutTx(ctx context.Context, tx storage.Tx, snap *models.Snapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	txn := tx.(*badgerv4.Txn)
	if err := s.db.store.TxUpsert(txn, snap.WatcherID, snap); err != nil {
		return errs.New(errs.Storage, "snapshot.putTx", err)
	}
	return nil
}

func (s *SnapshotStorage) Delete(ctx context.Context, watcherID int64) error {
	if err := s.db.store.Delete(watcherID, &models.Snapshot{}); err != nil && err != badgerhold.ErrNotFound {
		return errs.New(errs.Storage, "snapshot.delete", err)
	}
	return nil
}
