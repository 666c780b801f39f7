package domain

import (
	"encoding/json"
	"time"
)

type State string

const (
	StateCreated  State = "created"
	StateQueued   State = "queued"
	StateActive   State = "active"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

// Terminal reports whether s is an absorbing state.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Job is a unit of queued work. IDs are assigned by the queue and are
// monotonically increasing per topic. Once a job reaches a terminal state it
// never leaves it.
type Job struct {
	ID            int64           `json:"id"`
	Topic         string          `json:"topic"`
	Payload       json.RawMessage `json:"payload"`
	State         State           `json:"state"`
	Progress      int             `json:"progress"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
