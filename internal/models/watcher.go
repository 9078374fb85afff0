// Package models holds the persistent entities of the watcher and
// workflow engine (spec §3): Watcher, Snapshot, ChangeLog, Cookie,
// Workflow, WorkflowStep, Variable, WorkflowExecution.
package models

import "time"

// ExecutionMode controls when a watcher is eligible for dispatch.
type ExecutionMode string

const (
	ExecutionScheduled ExecutionMode = "scheduled"
	ExecutionManual    ExecutionMode = "manual"
	ExecutionBoth      ExecutionMode = "both"
)

// ComparisonMode is the canonicalization rule the Change Detector
// applies before hashing (spec §4.4).
type ComparisonMode string

const (
	ComparisonHash         ComparisonMode = "hash"
	ComparisonContentAware ComparisonMode = "content_aware"
	ComparisonDisabled     ComparisonMode = "disabled"
)

// WatcherStatus is the observable run-state of a watcher (spec §4.5).
type WatcherStatus string

const (
	WatcherPending WatcherStatus = "pending"
	WatcherRunning WatcherStatus = "running"
	WatcherSuccess WatcherStatus = "success"
	WatcherError   WatcherStatus = "error"
)

// Watcher is a monitored endpoint: its request template, execution
// and cookie policy, and its observable status.
type Watcher struct {
	ID   int64  `json:"id" badgerholdKey:"ID"`
	Name string `json:"name" badgerhold:"unique"`

	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body,omitempty"`

	ExecutionMode ExecutionMode `json:"execution_mode" badgerhold:"index"`
	WatchInterval int           `json:"watch_interval_seconds"`
	IsActive      bool          `json:"is_active" badgerhold:"index"`

	SaveCookies     bool  `json:"save_cookies"`
	UseCookies      bool  `json:"use_cookies"`
	CookieWatcherID int64 `json:"cookie_watcher_id,omitempty"`

	ComparisonMode ComparisonMode `json:"comparison_mode"`

	Status       WatcherStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CheckCount   int64         `json:"check_count"`
	ChangeCount  int64         `json:"change_count"`

	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	LastChangedAt *time.Time `json:"last_changed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HeaderMap returns Headers or an empty map, never nil, so callers can
// range over it unconditionally.
func (w *Watcher) HeaderMap() map[string]string {
	if w.Headers == nil {
		return map[string]string{}
	}
	return w.Headers
}

// SchedulableNow reports whether w is eligible for a scheduler tick
// dispatch per spec §4.7: active, scheduled-capable, interval set, and
// either never checked or interval elapsed as of now.
func (w *Watcher) SchedulableNow(now time.Time) bool {
	if !w.IsActive {
		return false
	}
	if w.ExecutionMode != ExecutionScheduled && w.ExecutionMode != ExecutionBoth {
		return false
	}
	if w.WatchInterval <= 0 {
		return false
	}
	if w.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*w.LastCheckedAt) >= time.Duration(w.WatchInterval)*time.Second
}
