package models

import "time"

// WorkflowStatus is the latched last-execution status of a workflow
// (spec §3/§4.6).
type WorkflowStatus string

const (
	WorkflowSuccess WorkflowStatus = "success"
	WorkflowFailed  WorkflowStatus = "failed"
	WorkflowPartial WorkflowStatus = "partial"
	WorkflowRunning WorkflowStatus = "running"
)

// WorkflowStep is one ordered step of a workflow (embedded, spec §3).
type WorkflowStep struct {
	Order             int      `json:"order"`
	WatcherID         int64    `json:"watcher_id"`
	ContinueOnError   bool     `json:"continue_on_error"`
	ExtractVariables  []string `json:"extract_variables,omitempty"`
}

// Workflow is an ordered list of steps sharing a variable context,
// with an optional schedule and execution counters (spec §3).
type Workflow struct {
	ID   int64  `json:"id" badgerholdKey:"ID"`
	Name string `json:"name" badgerhold:"unique"`

	Steps []WorkflowStep `json:"steps"`

	ScheduleEnabled  bool `json:"schedule_enabled" badgerhold:"index"`
	ScheduleInterval int  `json:"schedule_interval_seconds"`

	ExecutionCount int64 `json:"execution_count"`
	SuccessCount   int64 `json:"success_count"`
	FailureCount   int64 `json:"failure_count"`

	LastExecutionStatus WorkflowStatus `json:"last_execution_status,omitempty"`
	LastExecutionError  string         `json:"last_execution_error,omitempty"`
	LastExecutedAt      *time.Time     `json:"last_executed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SortedSteps returns Steps sorted ascending by Order, as spec §4.6
// step 3 requires.
func (w *Workflow) SortedSteps() []WorkflowStep {
	steps := make([]WorkflowStep, len(w.Steps))
	copy(steps, w.Steps)
	for i := 1; i < len(steps); i++ {
		for j := i; j > 0 && steps[j-1].Order > steps[j].Order; j-- {
			steps[j-1], steps[j] = steps[j], steps[j-1]
		}
	}
	return steps
}

// SchedulableNow reports whether w is eligible for scheduler dispatch
// (spec §4.7's workflow analogue to Watcher.SchedulableNow).
func (w *Workflow) SchedulableNow(now time.Time) bool {
	if !w.ScheduleEnabled || w.ScheduleInterval <= 0 {
		return false
	}
	if w.LastExecutedAt == nil {
		return true
	}
	return now.Sub(*w.LastExecutedAt) >= time.Duration(w.ScheduleInterval)*time.Second
}
