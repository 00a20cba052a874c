// Package tasks implements the task store and the task lifecycle.
// Every status change goes through ExecuteStateTransition, which updates the
// task and appends its audit event in one transaction.
package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of annotation work.
type Task struct {
	ID            uuid.UUID       `json:"id"`
	RequestID     string          `json:"request_id"`
	JobID         string          `json:"job_id"`
	RowID         string          `json:"row_id"`
	PayloadURL    string          `json:"payload_url"`
	VendorOutput  json.RawMessage `json:"vendor_output,omitempty"`
	Confidence    *float64        `json:"confidence"`
	Status        Status          `json:"status"`
	AssignedTo    *string         `json:"assigned_to"`
	AssignedAt    *time.Time      `json:"assigned_at"`
	AssigneeHint  *string         `json:"assignee_hint,omitempty"`
	Annotation    json.RawMessage `json:"annotation,omitempty"`
	SubmissionKey *string         `json:"-"`
	Version       int64           `json:"version"`
	Token         string          `json:"token"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsAssignedTo reports whether userID currently holds the task.
func (t *Task) IsAssignedTo(userID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// CreateCommand carries a validated row into the store as a new pending task.
type CreateCommand struct {
	RequestID    string
	JobID        string
	RowID        string
	PayloadURL   string
	VendorOutput json.RawMessage
	Confidence   *float64
	AssigneeHint *string
}

// ActionCommand is the body of an annotator operation. Which fields apply
// depends on the operation: Payload for draft and submit, IdempotencyKey for
// submit, ReasonCode for skip. Token is optional on all of them.
type ActionCommand struct {
	UserID         string          `json:"user_id"`
	Token          string          `json:"token,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	ReasonCode     string          `json:"reason_code,omitempty"`
	IP             string          `json:"-"`
	UserAgent      string          `json:"-"`
}

// AbandonCommand moves a non-terminal task into a terminal bucket.
type AbandonCommand struct {
	Actor     string `json:"actor"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Token     string `json:"token,omitempty"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// TransitionContext describes who is moving a task and what travels with the move.
type TransitionContext struct {
	Actor          string
	IP             string
	UserAgent      string
	Payload        json.RawMessage
	IsDraft        bool
	Token          string
	SubmissionKey  string
	ReasonCode     string
	Administrative bool
}

// Stats summarises the task table.
type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[Status]int `json:"by_status"`
	ByAssignee map[string]int `json:"by_assignee"`
}
