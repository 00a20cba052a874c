package tasks

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Status is the lifecycle state of a task.
type Status string

const (
	Pending    Status = "pending"
	InProgress Status = "in_progress"
	Completed  Status = "completed"
	Failed     Status = "failed"
	Skipped    Status = "skipped"
)

// Statuses lists every lifecycle state.
var Statuses = []Status{Pending, InProgress, Completed, Failed, Skipped}

// Event types recorded on the audit trail.
const (
	EventStarted        = "started"
	EventDraftSaved     = "draft_saved"
	EventCompleted      = "completed"
	EventSkippedToQueue = "skipped_to_queue"
	EventFailed         = "failed"
	EventUpdated        = "updated"
)

var allowedTransitions = map[Status][]Status{
	Pending:    {InProgress},
	InProgress: {InProgress, Completed, Pending},
	Completed:  {},
	Failed:     {},
	Skipped:    {},
}

// Abandonment edges. Kept apart from allowedTransitions so annotator
// operations can never reach a terminal bucket other than completed.
var administrativeTransitions = map[Status][]Status{
	Pending:    {Skipped, Failed},
	InProgress: {Skipped, Failed},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Terminal reports whether s has no outgoing edges.
func (s Status) Terminal() bool {
	return s == Completed || s == Failed || s == Skipped
}

// AllowedFrom returns the statuses reachable from s by an annotator.
func AllowedFrom(s Status) []Status {
	return slices.Clone(allowedTransitions[s])
}

// ValidateStateTransition reports whether from -> to is an edge of the lifecycle graph.
func ValidateStateTransition(from, to Status) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// EnsureValidTransition returns a *StateTransitionError when from -> to is not an edge.
func EnsureValidTransition(from, to Status) error {
	if ValidateStateTransition(from, to) {
		return nil
	}
	return &StateTransitionError{
		From:    from,
		To:      to,
		Allowed: AllowedFrom(from),
	}
}

func ensureAdministrativeTransition(from, to Status) error {
	if slices.Contains(administrativeTransitions[from], to) {
		return nil
	}
	return &StateTransitionError{
		From:    from,
		To:      to,
		Allowed: slices.Clone(administrativeTransitions[from]),
	}
}

// DeriveEventType maps a transition to the event type written to the audit trail.
func DeriveEventType(from, to Status, isDraft bool) string {
	switch {
	case to == Failed:
		return EventFailed
	case from == Pending && to == InProgress:
		return EventStarted
	case from == InProgress && to == InProgress && isDraft:
		return EventDraftSaved
	case from == InProgress && to == Completed:
		return EventCompleted
	case from == InProgress && to == Pending:
		return EventSkippedToQueue
	}
	return EventUpdated
}

// GenerateConcurrencyToken renders a version counter as an opaque token.
func GenerateConcurrencyToken(version int64) string {
	return "v" + strconv.FormatInt(version, 10)
}

// ValidateConcurrencyToken compares a caller's token against the task's current
// version. An empty token skips the check.
func ValidateConcurrencyToken(token string, currentVersion int64) error {
	if token == "" {
		return nil
	}

	actual := GenerateConcurrencyToken(currentVersion)
	if normalizeToken(token) != actual {
		return &ConcurrencyConflictError{
			Expected: token,
			Actual:   actual,
		}
	}
	return nil
}

// normalizeToken accepts the token bare or as an HTTP entity tag.
func normalizeToken(token string) string {
	token = strings.TrimSpace(token)
	token = strings.TrimPrefix(token, "W/")
	return strings.Trim(token, `"`)
}

func (s Status) String() string {
	return string(s)
}

func parseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
	return st, nil
}
