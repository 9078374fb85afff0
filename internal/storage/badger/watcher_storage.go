package badger

import (
	"context"
	"fmt"
	"time"

	badgerv4 "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/GabriWar/vigilant/internal/errs"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

// WatcherStorage implements storage.WatcherStore.
type WatcherStorage struct{ db *DB }

func NewWatcherStorage(db *DB) *WatcherStorage { return &WatcherStorage{db: db} }

func (s *WatcherStorage) Create(ctx context.Context, w *models.Watcher) error {
	if w.Name == "" {
		return errs.New(errs.Validation, "watcher.create", fmt.Errorf("name is required"))
	}
	if w.CookieWatcherID != 0 && w.CookieWatcherID == w.ID {
		return errs.New(errs.Conflict, "watcher.create", fmt.Errorf("watcher cannot reference itself via cookie_watcher_id"))
	}
	if existing, _ := s.GetByName(ctx, w.Name); existing != nil {
		return errs.New(errs.Conflict, "watcher.create", fmt.Errorf("watcher name %q already exists", w.Name))
	}

	id, err := s.db.nextID("watcher")
	if err != nil {
		return errs.New(errs.Storage, "watcher.create", err)
	}
	w.ID = id
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	if w.Status == "" {
		w.Status = models.WatcherPending
	}

	if err := s.db.store.Insert(w.ID, w); err != nil {
		return errs.New(errs.Storage, "watcher.create", err)
	}
	return nil
}

func (s *WatcherStorage) Get(ctx context.Context, id int64) (*models.Watcher, error) {
	var w models.Watcher
	if err := s.db.store.Get(id, &w); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, errs.New(errs.NotFound, "watcher.get", err)
		}
		return nil, errs.New(errs.Storage, "watcher.get", err)
	}
	return &w, nil
}

func (s *WatcherStorage) GetByName(ctx context.Context, name string) (*models.Watcher, error) {
	var ws []models.Watcher
	if err := s.db.store.Find(&ws, badgerhold.Where("Name").Eq(name)); err != nil {
		return nil, errs.New(errs.Storage, "watcher.getByName", err)
	}
	if len(ws) == 0 {
		return nil, errs.New(errs.NotFound, "watcher.getByName", fmt.Errorf("watcher %q not found", name))
	}
	return &ws[0], nil
}

func (s *WatcherStorage) Update(ctx context.Context, w *models.Watcher) error {
	w.UpdatedAt = time.Now().UTC()
	if err := s.db.store.Update(w.ID, w); err != nil {
		if err == badgerhold.ErrNotFound {
			return errs.New(errs.NotFound, "watcher.update", err)
		}
		return errs.New(errs.Storage, "watcher.update", err)
	}
	return nil
}

// UpdateTx is Update run against an open transaction (see
// storage.Transactor), so a watcher's counters commit atomically with
// the change-detection write they summarize.
func (s *WatcherStorage) UpdateTx(ctx context.Context, tx storage.Tx, w *models.Watcher) error {
	w.UpdatedAt = time.Now().UTC()
	txn := tx.(*badgerv4.Txn)
	if err := s.db.store.TxUpdate(txn, w.ID, w); err != nil {
		if err == badgerhold.ErrNotFound {
			return errs.New(errs.NotFound, "watcher.updateTx", err)
		}
		return errs.New(errs.Storage, "watcher.updateTx", err)
	}
	return nil
}

// Delete removes the watcher row itself. Cascading to its cookies,
// snapshot and change logs is orchestrated by the package-level
// DeleteWatcher (manager.go), which has visibility into every entity
// store (spec §3: "deleted
// cascades to its cookies, snapshots, change logs").
func (s *WatcherStorage) Delete(ctx context.Context, id int64) error {
	if err := s.db.store.Delete(id, &models.Watcher{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return errs.New(errs.NotFound, "watcher.delete", err)
		}
		return errs.New(errs.Storage, "watcher.delete", err)
	}
	return nil
}

func (s *WatcherStorage) List(ctx context.Context) ([]*models.Watcher, error) {
	var ws []models.Watcher
	if err := s.db.store.Find(&ws, badgerhold.Where("ID").Ge(int64(0)).SortBy("ID")); err != nil {
		return nil, errs.New(errs.Storage, "watcher.list", err)
	}
	out := make([]*models.Watcher, len(ws))
	for i := range ws {
		out[i] = &ws[i]
	}
	return out, nil
}

// SchedulableWatchers returns active watchers in {scheduled, both}
// mode with an interval set; eligibility (interval elapsed) is
// evaluated in Go since badgerhold cannot express the computed
// "now - last_checked_at >= interval" predicate (spec §4.7).
func (s *WatcherStorage) SchedulableWatchers(ctx context.Context, now time.Time) ([]*models.Watcher, error) {
	var ws []models.Watcher
	q := badgerhold.Where("IsActive").Eq(true).
		And("ExecutionMode").In(models.ExecutionScheduled, models.ExecutionBoth)
	if err := s.db.store.Find(&ws, q); err != nil {
		return nil, errs.New(errs.Storage, "watcher.schedulable", err)
	}
	out := make([]*models.Watcher, 0, len(ws))
	for i := range ws {
		if ws[i].SchedulableNow(now) {
			out = append(out, &ws[i])
		}
	}
	return out, nil
}
