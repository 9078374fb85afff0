package common

import "github.com/google/uuid"

// NewExecutionID generates a unique workflow-execution ID.
func NewExecutionID() string {
	return "exec_" + uuid.New().String()
}

// NewEventID generates a unique notification-event ID.
func NewEventID() string {
	return "evt_" + uuid.New().String()
}

// NewUUIDv4 returns a canonical UUIDv4 string.
func NewUUIDv4() string {
	return uuid.New().String()
}
