package assignments

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/internal/audit"
	"github.com/JaimeStill/docket/internal/tasks"
)

// System defines the assignment engine.
type System interface {
	Handler(log *audit.Handler) *Handler

	// Claim assigns a pending, unassigned task to userID and logs the
	// assignment. It is the only path that sets assigned_to.
	Claim(
		ctx context.Context,
		taskID uuid.UUID,
		userID string,
		method audit.Method,
		priorityScore *float64,
	) (*tasks.Task, error)

	// ClaimNext dequeues the highest-priority unassigned task for userID.
	// It returns nil, nil when nothing is available.
	ClaimNext(ctx context.Context, userID string) (*tasks.Task, error)

	// EqualSplit walks the user list once, claiming the oldest unassigned
	// tasks up to each user's quota. A user whose claims keep losing races
	// is passed over without ending the split. On error the result still
	// holds the counts committed so far.
	EqualSplit(ctx context.Context, cmd EqualSplitCommand) (*EqualSplitResult, error)
}
