// Package audit implements the append-only task event and assignment logs.
// Writers join the caller's transaction so a task mutation and its audit row
// commit or roll back together; the read paths serve history, activity, and
// the assignment log.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Method identifies the allocation strategy that produced an assignment.
type Method string

const (
	MethodEqualSplit Method = "equal_split"
	MethodPullQueue  Method = "pull_queue"
)

// Valid reports whether m is a known allocation method.
func (m Method) Valid() bool {
	return m == MethodEqualSplit || m == MethodPullQueue
}

// Event is one committed lifecycle transition of a task.
type Event struct {
	ID        int64           `json:"id"`
	TaskID    uuid.UUID       `json:"task_id"`
	EventType string          `json:"event_type"`
	Actor     string          `json:"actor"`
	OldStatus string          `json:"old_status"`
	NewStatus string          `json:"new_status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Context   map[string]any  `json:"context"`
	CreatedAt time.Time       `json:"created_at"`
}

// Activity is an event joined to the business key of its task.
type Activity struct {
	Event
	RequestID string `json:"request_id"`
}

// Assignment records a single claim of a task by a user.
type Assignment struct {
	ID            int64     `json:"id"`
	TaskID        uuid.UUID `json:"task_id"`
	UserID        string    `json:"user_id"`
	Method        Method    `json:"method"`
	PriorityScore *float64  `json:"priority_score"`
	CreatedAt     time.Time `json:"created_at"`
}
