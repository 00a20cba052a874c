package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/pkg/pagination"
)

// System defines the read paths over the audit logs.
type System interface {
	Handler() *Handler

	// History returns every event for a task, newest first.
	History(ctx context.Context, taskID uuid.UUID) ([]Event, error)

	// Activity returns the most recent events performed by userID across all tasks.
	Activity(ctx context.Context, userID string, limit int) ([]Activity, error)

	Assignments(
		ctx context.Context,
		page pagination.PageRequest,
		filters AssignmentFilters,
	) (*pagination.PageResult[Assignment], error)
}
