package audit

import (
	"encoding/json"
	"net/url"

	"github.com/JaimeStill/docket/pkg/query"
	"github.com/JaimeStill/docket/pkg/repository"
)

var eventProjection = query.
	NewProjectionMap("", "task_events", "e").
	Project("id", "ID").
	Project("task_id", "TaskID").
	Project("event_type", "EventType").
	Project("actor", "Actor").
	Project("old_status", "OldStatus").
	Project("new_status", "NewStatus").
	Project("payload", "Payload").
	Project("context", "Context").
	Project("created_at", "CreatedAt")

var activityProjection = query.
	NewProjectionMap("", "task_events", "e").
	Project("id", "ID").
	Project("task_id", "TaskID").
	Project("event_type", "EventType").
	Project("actor", "Actor").
	Project("old_status", "OldStatus").
	Project("new_status", "NewStatus").
	Project("payload", "Payload").
	Project("context", "Context").
	Project("created_at", "CreatedAt").
	Join("", "tasks", "t", "JOIN", "t.id = e.task_id").
	Project("request_id", "RequestID")

var assignmentProjection = query.
	NewProjectionMap("", "task_assignments", "a").
	Project("id", "ID").
	Project("task_id", "TaskID").
	Project("user_id", "UserID").
	Project("method", "Method").
	Project("priority_score", "PriorityScore").
	Project("created_at", "CreatedAt")

// Newest first; id breaks ties between events stamped in the same instant.
var newestFirst = []query.SortField{
	{Field: "CreatedAt", Descending: true},
	{Field: "ID", Descending: true},
}

// AssignmentFilters narrows the assignment log. Nil fields are ignored.
type AssignmentFilters struct {
	UserID *string `json:"user_id,omitempty"`
	Method *string `json:"method,omitempty"`
	TaskID *string `json:"task_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f AssignmentFilters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("UserID", f.UserID).
		WhereEquals("Method", f.Method).
		WhereEquals("TaskID", f.TaskID)
}

// AssignmentFiltersFromQuery extracts filter values from URL query parameters.
func AssignmentFiltersFromQuery(values url.Values) AssignmentFilters {
	var f AssignmentFilters

	if u := values.Get("user_id"); u != "" {
		f.UserID = &u
	}
	if m := values.Get("method"); m != "" {
		f.Method = &m
	}
	if id := values.Get("task_id"); id != "" {
		f.TaskID = &id
	}

	return f
}

func scanEventInto(e *Event, extra ...any) []any {
	return append([]any{
		&e.ID,
		&e.TaskID,
		&e.EventType,
		&e.Actor,
		&e.OldStatus,
		&e.NewStatus,
	}, extra...)
}

func decodeEvent(e *Event, payload, ctxJSON []byte) error {
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	e.Context = map[string]any{}
	if len(ctxJSON) > 0 {
		if err := json.Unmarshal(ctxJSON, &e.Context); err != nil {
			return err
		}
	}
	return nil
}

func scanEvent(s repository.Scanner) (Event, error) {
	var (
		e       Event
		payload []byte
		ctxJSON []byte
	)
	if err := s.Scan(scanEventInto(&e, &payload, &ctxJSON, &e.CreatedAt)...); err != nil {
		return e, err
	}
	return e, decodeEvent(&e, payload, ctxJSON)
}

func scanActivity(s repository.Scanner) (Activity, error) {
	var (
		a       Activity
		payload []byte
		ctxJSON []byte
	)
	if err := s.Scan(scanEventInto(&a.Event, &payload, &ctxJSON, &a.CreatedAt, &a.RequestID)...); err != nil {
		return a, err
	}
	return a, decodeEvent(&a.Event, payload, ctxJSON)
}

func scanAssignment(s repository.Scanner) (Assignment, error) {
	var a Assignment
	err := s.Scan(
		&a.ID,
		&a.TaskID,
		&a.UserID,
		&a.Method,
		&a.PriorityScore,
		&a.CreatedAt,
	)
	return a, err
}
