package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Request status constants.
const (
	StatusCreated   = "created"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Result is the terminal outcome of executing a request. Error is non-empty
// exactly when execution failed; a failed result carries only the error
// description.
type Result struct {
	ExecutionID string         `json:"execution_id,omitempty"`
	WorkerID    int            `json:"worker_id,omitempty"`
	DurationMS  int64          `json:"duration_ms,omitempty"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Message     string         `json:"message,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Request is a unit of work accepted for exactly-once processing. ID,
// Payload, WorkerID, and CreatedAt are fixed at admission; Result is written
// at most once, when execution reaches a terminal state.
type Request struct {
	ID        string         `json:"request_id"`
	Payload   map[string]any `json:"payload"`
	WorkerID  int            `json:"worker_id"`
	Status    string         `json:"status"`
	Result    *Result        `json:"result,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DeriveStatus reports the status implied by a result. The durable tier does
// not record the running transition, so a record without a result derives to
// "created"; the cache projection carries "running" explicitly.
func DeriveStatus(r *Result) string {
	switch {
	case r == nil:
		return StatusCreated
	case r.Error != "":
		return StatusFailed
	default:
		return StatusCompleted
	}
}

// NewExecutionID generates a ULID string identifying a single execution run.
func NewExecutionID() string {
	return ulid.Make().String()
}
