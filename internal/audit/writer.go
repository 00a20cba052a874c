package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JaimeStill/docket/pkg/repository"
)

// AppendEvent inserts e using db, which is expected to be the transaction that
// also mutates the task. A zero CreatedAt is stamped with the current time.
func AppendEvent(ctx context.Context, db repository.Executor, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	ctxJSON := []byte("{}")
	if len(e.Context) > 0 {
		b, err := json.Marshal(e.Context)
		if err != nil {
			return fmt.Errorf("marshal event context: %w", err)
		}
		ctxJSON = b
	}

	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}

	_, err := db.ExecContext(
		ctx,
		`INSERT INTO task_events (task_id, event_type, actor, old_status, new_status, payload, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.TaskID,
		e.EventType,
		e.Actor,
		e.OldStatus,
		e.NewStatus,
		payload,
		string(ctxJSON),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append task event: %w", err)
	}
	return nil
}

// AppendAssignment inserts a into the assignment log within the claim's transaction.
func AppendAssignment(ctx context.Context, db repository.Executor, a Assignment) error {
	if !a.Method.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, a.Method)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(
		ctx,
		`INSERT INTO task_assignments (task_id, user_id, method, priority_score, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		a.TaskID,
		a.UserID,
		string(a.Method),
		a.PriorityScore,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append task assignment: %w", err)
	}
	return nil
}
