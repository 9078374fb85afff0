// Package cookies implements C2: the cookie store service that sits
// between the watcher executor and persistence, grounded on the
// original vigilant backend's cookie_service.py expiry-query shape and
// the teacher's services-wrap-storage layering.
package cookies

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/GabriWar/vigilant/internal/httpclient"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

// Store is C2's public surface (spec §4.2). It never injects cookies
// into a request itself; the watcher executor reads Get's result and
// forwards it to C1.
type Store struct {
	store  storage.CookieStore
	logger arbor.ILogger
}

func New(store storage.CookieStore, logger arbor.ILogger) *Store {
	return &Store{store: store, logger: logger}
}

// PutAll replaces watcherID's entire cookie set with cookies, the jar
// C1 returned from the most recent request (spec §4.2: "the watcher's
// cookie jar is replaced wholesale after each run, never merged").
func (s *Store) PutAll(ctx context.Context, watcherID int64, jar []httpclient.Cookie) error {
	rows := make([]models.Cookie, 0, len(jar))
	for _, c := range jar {
		rows = append(rows, models.Cookie{
			WatcherID: watcherID,
			Name:      c.Name,
			Value:     c.Value,
			Domain:    c.Domain,
			Path:      c.Path,
			Expires:   c.Expires,
		})
	}
	if err := s.store.PutAll(ctx, watcherID, rows); err != nil {
		return err
	}
	s.logger.Debug().Int64("watcher_id", watcherID).Int("count", len(rows)).Msg("cookies stored")
	return nil
}

// Get returns watcherID's current cookie jar, translated into the
// httpclient.Cookie shape C1's Request expects.
func (s *Store) Get(ctx context.Context, watcherID int64) ([]httpclient.Cookie, error) {
	rows, err := s.store.Get(ctx, watcherID)
	if err != nil {
		return nil, err
	}
	out := make([]httpclient.Cookie, 0, len(rows))
	for _, c := range rows {
		out = append(out, httpclient.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: c.Expires,
		})
	}
	return out, nil
}

// Expired returns every cookie whose Expires has passed as of now,
// across all watchers (spec §4.2, feeds the scheduler's cleanup job).
func (s *Store) Expired(ctx context.Context, now time.Time) ([]models.Cookie, error) {
	return s.store.Expired(ctx, now)
}

// ExpiringWithin returns cookies expiring within d of now but not
// already expired (spec §4.2, feeds the scheduler's warn/notify jobs).
func (s *Store) ExpiringWithin(ctx context.Context, now time.Time, d time.Duration) ([]models.Cookie, error) {
	return s.store.ExpiringWithin(ctx, now, d)
}

// DeleteExpired purges every expired cookie and returns the count
// removed.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int("count", n).Msg("expired cookies purged")
	}
	return n, nil
}
