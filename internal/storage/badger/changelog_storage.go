package badger

import (
	"bytes"
	"context"
	"sort"
	"time"

	badgerv4 "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/GabriWar/vigilant/internal/errs"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

// ChangeLogStorage implements storage.ChangeLogStore.
type ChangeLogStorage struct{ db *DB }

func NewChangeLogStorage(db *DB) *ChangeLogStorage { return &ChangeLogStorage{db: db} }

func (s *ChangeLogStorage) Create(ctx context.Context, c *models.ChangeLog) error {
	id, err := s.db.nextID("changelog")
	if err != nil {
		return errs.New(errs.Storage, "changelog.create", err)
	}
	c.ID = id
	if c.DetectedAt.IsZero() {
		c.DetectedAt = time.Now().UTC()
	}
	if err := s.db.store.Insert(c.ID, c); err != nil {
		return errs.New(errs.Storage, "changelog.create", err)
	}
	return nil
}

// CreateTx is Create run against an open transaction (see
// storage.Transactor). ID allocation uses badger's native sequence
// counter (sequence.go) independent of the transaction, same as
// Create; only the row insert joins tx.
func (s *ChangeLogStorage) CreateTx(ctx context.Context, tx storage.Tx, c *models.ChangeLog) error {
	id, err := s.db.nextID("changelog")
	if err != nil {
		return errs.New(errs.Storage, "changelog.createTx", err)
	}
	c.ID = id
	if c.DetectedAt.IsZero() {
		c.DetectedAt = time.Now().UTC()
	}
	txn := tx.(*badgerv4.Txn)
	if err := s.db.store.TxInsert(txn, c.ID, c); err != nil {
		return errs.New(errs.Storage, "changelog.createTx", err)
	}
	return nil
}

func (s *ChangeLogStorage) Get(ctx context.Context, id int64) (*models.ChangeLog, error) {
	var c models.ChangeLog
	if err := s.db.store.Get(id, &c); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, errs.New(errs.NotFound, "changelog.get", err)
		}
		return nil, errs.New(errs.Storage, "changelog.get", err)
	}
	return &c, nil
}

// List applies storage.ChangeLogFilter (spec §6's changelog.list):
// watcher/type/date/size filters are pushed into the badgerhold
// query; full-text search over diff bytes and ordering are applied in
// Go since badgerhold has no substring-search or dynamic-field sort.
func (s *ChangeLogStorage) List(ctx context.Context, f storage.ChangeLogFilter) ([]*models.ChangeLog, error) {
	q := badgerhold.Where("ID").Ge(int64(0))
	if f.WatcherID != 0 {
		q = q.And("WatcherID").Eq(f.WatcherID)
	}
	if f.ChangeType != "" {
		q = q.And("ChangeType").Eq(f.ChangeType)
	}
	if f.DateFrom != nil {
		q = q.And("DetectedAt").Ge(*f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.And("DetectedAt").Le(*f.DateTo)
	}
	if f.MinSize != nil {
		q = q.And("NewSize").Ge(*f.MinSize)
	}
	if f.MaxSize != nil {
		q = q.And("NewSize").Le(*f.MaxSize)
	}

	var rows []models.ChangeLog
	if err := s.db.store.Find(&rows, q); err != nil {
		return nil, errs.New(errs.Storage, "changelog.list", err)
	}

	if f.Search != "" {
		filtered := rows[:0]
		needle := []byte(f.Search)
		for _, r := range rows {
			if bytes.Contains(r.Diff, needle) {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	sortChangeLogs(rows, f.OrderBy, f.Direction)

	if f.Offset > 0 && f.Offset < len(rows) {
		rows = rows[f.Offset:]
	} else if f.Offset >= len(rows) {
		rows = nil
	}
	if f.Limit > 0 && f.Limit < len(rows) {
		rows = rows[:f.Limit]
	}

	out := make([]*models.ChangeLog, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func sortChangeLogs(rows []models.ChangeLog, orderBy, direction string) {
	ascending := func(i, j int) bool {
		switch orderBy {
		case "new_size":
			return rows[i].NewSize < rows[j].NewSize
		case "change_type":
			return rows[i].ChangeType < rows[j].ChangeType
		default: // detected_at
			return rows[i].DetectedAt.Before(rows[j].DetectedAt)
		}
	}
	if direction == "desc" {
		sort.SliceStable(rows, func(i, j int) bool { return ascending(j, i) })
		return
	}
	sort.SliceStable(rows, ascending)
}

func (s *ChangeLogStorage) DeleteByWatcher(ctx context.Context, watcherID int64) error {
	if err := s.db.store.DeleteMatching(&models.ChangeLog{}, badgerhold.Where("WatcherID").Eq(watcherID)); err != nil {
		return errs.New(errs.Storage, "changelog.deleteByWatcher", err)
	}
	return nil
}
