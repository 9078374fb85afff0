package models

import "time"

// StepStatus classifies one executed workflow step (spec §4.6 step e).
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
)

// StepResult is the per-step record appended to a WorkflowExecution
// (spec §3).
type StepResult struct {
	Order              int               `json:"order"`
	WatcherID          int64             `json:"watcher_id"`
	Status             StepStatus        `json:"status"`
	ResponseStatus     int               `json:"response_status"`
	VariablesExtracted map[string]string `json:"variables_extracted,omitempty"`
	Error              string            `json:"error,omitempty"`
	DurationMS         int64             `json:"duration_ms"`
}

// WorkflowExecution is one row per workflow run (spec §3).
type WorkflowExecution struct {
	ID         int64          `json:"id" badgerholdKey:"ID"`
	WorkflowID int64          `json:"workflow_id" badgerhold:"index"`
	Status     WorkflowStatus `json:"status" badgerhold:"index"`

	StartedAt       time.Time  `json:"started_at" badgerhold:"index"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`

	StepsCompleted int `json:"steps_completed"`
	StepsTotal     int `json:"steps_total"`

	StepResults        []StepResult      `json:"step_results,omitempty"`
	VariablesExtracted map[string]string `json:"variables_extracted,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
	ErrorStep    int    `json:"error_step,omitempty"`
}
