package badger

import (
	"context"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/GabriWar/vigilant/internal/errs"
	"github.com/GabriWar/vigilant/internal/models"
)

// CookieStorage implements storage.CookieStore, backing C2.
type CookieStorage struct{ db *DB }

func NewCookieStorage(db *DB) *CookieStorage { return &CookieStorage{db: db} }

// PutAll replaces the cookie set owned by watcherID: delete then
// insert (spec §4.2's "replace set"). Safe without an explicit cross-
// call transaction because a watcher's cookie set has exactly one
// writer — its own run (spec §5) — so no concurrent PutAll for the
// same watcherID can interleave with this one.
func (s *CookieStorage) PutAll(ctx context.Context, watcherID int64, cookies []models.Cookie) error {
	if err := s.DeleteByWatcher(ctx, watcherID); err != nil {
		return err
	}
	for i := range cookies {
		c := cookies[i]
		c.WatcherID = watcherID
		id, err := s.db.nextID("cookie")
		if err != nil {
			return errs.New(errs.Storage, "cookie.putAll", err)
		}
		c.ID = id
		if err := s.db.store.Insert(c.ID, &c); err != nil {
			return errs.New(errs.Storage, "cookie.putAll", err)
		}
	}
	return nil
}

func (s *CookieStorage) Get(ctx context.Context, watcherID int64) ([]models.Cookie, error) {
	var rows []models.Cookie
	if err := s.db.store.Find(&rows, badgerhold.Where("WatcherID").Eq(watcherID)); err != nil {
		return nil, errs.New(errs.Storage, "cookie.get", err)
	}
	return rows, nil
}

func (s *CookieStorage) Expired(ctx context.Context, now time.Time) ([]models.Cookie, error) {
	var rows []models.Cookie
	if err := s.db.store.Find(&rows, badgerhold.Where("ID").Ge(int64(0))); err != nil {
		return nil, errs.New(errs.Storage, "cookie.expired", err)
	}
	out := rows[:0]
	for _, c := range rows {
		if c.IsExpired(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *CookieStorage) ExpiringWithin(ctx context.Context, now time.Time, d time.Duration) ([]models.Cookie, error) {
	var rows []models.Cookie
	if err := s.db.store.Find(&rows, badgerhold.Where("ID").Ge(int64(0))); err != nil {
		return nil, errs.New(errs.Storage, "cookie.expiringWithin", err)
	}
	out := rows[:0]
	for _, c := range rows {
		if c.ExpiresWithin(now, d) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *CookieStorage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.Expired(ctx, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, c := range expired {
		if err := s.db.store.Delete(c.ID, &models.Cookie{}); err != nil && err != badgerhold.ErrNotFound {
			return count, errs.New(errs.Storage, "cookie.deleteExpired", err)
		}
		count++
	}
	return count, nil
}

func (s *CookieStorage) DeleteByWatcher(ctx context.Context, watcherID int64) error {
	if err := s.db.store.DeleteMatching(&models.Cookie{}, badgerhold.Where("WatcherID").Eq(watcherID)); err != nil {
		return errs.New(errs.Storage, "cookie.deleteByWatcher", err)
	}
	return nil
}
