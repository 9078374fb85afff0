package notify

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/GabriWar/vigilant/internal/models"
)

func TestCookieExpiring_DoesNotPanic(t *testing.T) {
	sink := NewLogSink(arbor.NewNoOpLogger())
	sink.CookieExpiring(context.Background(), 1, 3, time.Now().UTC())
}

func TestWatcherChanged_DoesNotPanic(t *testing.T) {
	sink := NewLogSink(arbor.NewNoOpLogger())
	sink.WatcherChanged(context.Background(), 1, models.ChangeModified, 1024)
}

var _ Sink = (*LogSink)(nil)
