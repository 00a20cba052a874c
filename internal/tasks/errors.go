package tasks

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound            = errors.New("task not found")
	ErrForbidden           = errors.New("task is not assigned to this user")
	ErrDuplicate           = errors.New("task already exists")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrValidation          = errors.New("validation failed")
)

// StateTransitionError rejects an edge outside the lifecycle graph, or a
// transition requested from a status the task is no longer in.
type StateTransitionError struct {
	From    Status
	To      Status
	Current Status
	Allowed []Status
}

func (e *StateTransitionError) Error() string {
	if e.Current != "" && e.Current != e.From {
		return fmt.Sprintf("%s: task is %s, not %s", ErrInvalidTransition, e.Current, e.From)
	}
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *StateTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Details exposes the rejected edge and the states reachable from the task's status.
func (e *StateTransitionError) Details() map[string]any {
	current := e.Current
	if current == "" {
		current = e.From
	}
	allowed := e.Allowed
	if allowed == nil {
		allowed = []Status{}
	}
	return map[string]any{
		"from":           e.From,
		"to":             e.To,
		"current_status": current,
		"allowed":        allowed,
	}
}

// ConcurrencyConflictError reports a stale concurrency token.
type ConcurrencyConflictError struct {
	Expected string
	Actual   string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s: token %s is stale, task is at %s", ErrConcurrencyConflict, e.Expected, e.Actual)
}

func (e *ConcurrencyConflictError) Unwrap() error {
	return ErrConcurrencyConflict
}

func (e *ConcurrencyConflictError) Details() map[string]any {
	return map[string]any{
		"expected": e.Expected,
		"actual":   e.Actual,
	}
}

// ValidationError rejects malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func (e *ValidationError) Details() map[string]any {
	return map[string]any{
		"field":  e.Field,
		"reason": e.Reason,
	}
}

// MapHTTPStatus maps task domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrConcurrencyConflict):
		return http.StatusPreconditionFailed
	}
	return http.StatusInternalServerError
}
