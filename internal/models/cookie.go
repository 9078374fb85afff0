package models

import "time"

// Cookie is a single watcher-owned cookie, unique per (WatcherID, Name)
// (spec §3). The store never injects cookies into a request itself —
// the watcher executor reads and forwards them.
type Cookie struct {
	ID        int64     `json:"id" badgerholdKey:"ID"`
	WatcherID int64     `json:"watcher_id" badgerhold:"index"`
	Name      string    `json:"name" badgerhold:"index"`
	Value     string    `json:"value"`
	Domain    string    `json:"domain,omitempty"`
	Path      string    `json:"path,omitempty"`
	Expires   *time.Time `json:"expires,omitempty"`
}

// IsExpired reports whether c is expired as of now. A nil Expires
// means a session cookie, which is never expired (spec §4.2).
func (c *Cookie) IsExpired(now time.Time) bool {
	if c.Expires == nil {
		return false
	}
	return c.Expires.Before(now)
}

// ExpiresWithin reports whether c expires within d of now. Session
// cookies (nil Expires) never match.
func (c *Cookie) ExpiresWithin(now time.Time, d time.Duration) bool {
	if c.Expires == nil {
		return false
	}
	return !c.Expires.After(now.Add(d)) && c.Expires.After(now)
}
