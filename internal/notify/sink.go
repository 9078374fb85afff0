// Package notify implements the two event types the core emits to its
// notification collaborator (spec §6): cookie_expiring and
// watcher_changed. Delivery is at-most-once, best-effort — the core
// never retries (spec §6), so LogSink's job is to make a dropped event
// visible in the process log rather than to guarantee delivery.
// Grounded on the teacher's internal/queue/workers/email_worker.go
// shape (a notification step that logs outcome rather than failing the
// caller on delivery error).
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/GabriWar/vigilant/internal/models"
)

// EventType names one of spec §6's two notification event kinds.
type EventType string

const (
	EventCookieExpiring EventType = "cookie_expiring"
	EventWatcherChanged EventType = "watcher_changed"
)

// Event is the wire shape the core hands to the delivery collaborator.
// ID is a uuid stamped per emission, not persisted, used only to
// correlate a delivery attempt in the collaborator's own logs.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	EmittedAt time.Time      `json:"emitted_at"`
	Payload   map[string]any `json:"payload"`
}

// Sink is the external collaborator contract (scheduler.NotificationSink
// satisfies this exact method set; kept as a separate interface here so
// internal/notify doesn't import internal/scheduler).
type Sink interface {
	CookieExpiring(ctx context.Context, watcherID int64, cookieCount int, earliestExpiry time.Time)
	WatcherChanged(ctx context.Context, watcherID int64, changeType models.ChangeType, newSize int)
}

// LogSink is the in-process default: it turns each event into a single
// structured log line rather than delivering it anywhere. A real
// deployment replaces this with a webhook/queue-backed Sink; spec §1
// scopes push-notification delivery itself out as an external concern.
type LogSink struct {
	logger arbor.ILogger
}

func NewLogSink(logger arbor.ILogger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) CookieExpiring(ctx context.Context, watcherID int64, cookieCount int, earliestExpiry time.Time) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      EventCookieExpiring,
		EmittedAt: time.Now().UTC(),
		Payload: map[string]any{
			"watcher_id":     watcherID,
			"cookie_count":   cookieCount,
			"earliest_expiry": earliestExpiry.Format(time.RFC3339),
		},
	}
	s.logger.Warn().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Int64("watcher_id", watcherID).
		Int("cookie_count", cookieCount).
		Str("earliest_expiry", earliestExpiry.Format(time.RFC3339)).
		Msg("notification: cookies expiring soon")
}

func (s *LogSink) WatcherChanged(ctx context.Context, watcherID int64, changeType models.ChangeType, newSize int) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      EventWatcherChanged,
		EmittedAt: time.Now().UTC(),
		Payload: map[string]any{
			"watcher_id":  watcherID,
			"change_type": string(changeType),
			"new_size":    newSize,
		},
	}
	s.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Int64("watcher_id", watcherID).
		Str("change_type", string(changeType)).
		Int("new_size", newSize).
		Msg("notification: watcher changed")
}
