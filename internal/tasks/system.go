package tasks

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/pkg/pagination"
)

// System defines the public contract for task operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Task], error)

	Find(ctx context.Context, id uuid.UUID) (*Task, error)
	Stats(ctx context.Context) (*Stats, error)

	// Exists reports whether a task with the business key has been created.
	Exists(ctx context.Context, requestID string) (bool, error)

	// Insert creates a pending task. A second insert for the same business
	// key fails with ErrDuplicate.
	Insert(ctx context.Context, cmd CreateCommand) (*Task, error)

	// ExecuteStateTransition moves a task from one status to another and
	// records the audit event in the same transaction.
	ExecuteStateTransition(
		ctx context.Context,
		id uuid.UUID,
		from, to Status,
		tc TransitionContext,
	) (*Task, error)

	Start(ctx context.Context, id uuid.UUID, cmd ActionCommand) (*Task, error)
	SaveDraft(ctx context.Context, id uuid.UUID, cmd ActionCommand) (*Task, error)
	Submit(ctx context.Context, id uuid.UUID, cmd ActionCommand) (*Task, error)
	Skip(ctx context.Context, id uuid.UUID, cmd ActionCommand) (*Task, error)
	Abandon(ctx context.Context, id uuid.UUID, cmd AbandonCommand) (*Task, error)
}
