package tasks

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/internal/audit"
	"github.com/JaimeStill/docket/pkg/repository"
)

type transitionResult struct {
	task   *Task
	replay bool
}

func (r *repo) ExecuteStateTransition(
	ctx context.Context,
	id uuid.UUID,
	from, to Status,
	tc TransitionContext,
) (*Task, error) {
	edge := EnsureValidTransition
	if tc.Administrative {
		edge = ensureAdministrativeTransition
	}
	if err := edge(from, to); err != nil {
		return nil, err
	}

	if strings.TrimSpace(tc.Actor) == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "required"}
	}

	res, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (transitionResult, error) {
		current, err := findTask(ctx, tx, id, r.dialect.ForUpdate())
		if err != nil {
			return transitionResult{}, err
		}

		if isReplay(current, to, tc) {
			return transitionResult{task: current, replay: true}, nil
		}

		if current.Status != from {
			allowed := AllowedFrom(current.Status)
			if tc.Administrative {
				allowed = administrativeTransitions[current.Status]
			}
			return transitionResult{}, &StateTransitionError{
				From:    from,
				To:      to,
				Current: current.Status,
				Allowed: allowed,
			}
		}

		if !tc.Administrative && !current.IsAssignedTo(tc.Actor) {
			return transitionResult{}, ErrForbidden
		}

		if err := ValidateConcurrencyToken(tc.Token, current.Version); err != nil {
			return transitionResult{}, err
		}

		now := time.Now().UTC()
		stmt, args := buildTransitionUpdate(current, to, tc, now)
		if err := repository.ExecExpectOne(ctx, tx, stmt, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return transitionResult{}, r.versionConflict(ctx, tx, current)
			}
			return transitionResult{}, fmt.Errorf("update task status: %w", err)
		}

		updated, err := findTask(ctx, tx, id)
		if err != nil {
			return transitionResult{}, err
		}

		event := audit.Event{
			TaskID:    id,
			EventType: DeriveEventType(from, to, tc.IsDraft),
			Actor:     tc.Actor,
			OldStatus: string(from),
			NewStatus: string(to),
			Payload:   tc.Payload,
			Context:   eventContext(tc),
			CreatedAt: now,
		}
		if err := audit.AppendEvent(ctx, tx, event); err != nil {
			return transitionResult{}, err
		}

		return transitionResult{task: updated}, nil
	})
	if err != nil {
		return nil, err
	}

	if res.replay {
		r.logger.Info("submission replayed", "id", id, "user_id", tc.Actor, "idempotency_key", tc.SubmissionKey)
		return res.task, nil
	}

	r.logger.Info(
		"task transitioned",
		"id", id,
		"request_id", res.task.RequestID,
		"from", from,
		"to", to,
		"actor", tc.Actor,
	)
	return res.task, nil
}

func (r *repo) Start(ctx context.Context, id uuid.UUID, cmd ActionCommand) (*Task, error) {
	return r.ExecuteStateTransition(ctx, id, Pending, InProgress, cmd.transitionContext())
}

func (r *repo) SaveDraft(ctx context.Context, id uuid.UUID, cmd ActionCommand) (*Task, error) {
	if err := validatePayload(cmd.Payload); err != nil {
		return nil, err
	}

	tc := cmd.transitionContext()
	tc.IsDraft = true
	return r.ExecuteStateTransition(ctx, id, InProgress, InProgress, tc)
}

func (r *repo) Submit(ctx context.Context, id uuid.UUID, cmd ActionCommand) (*Task, error) {
	if err := validatePayload(cmd.Payload); err != nil {
		return nil, err
	}

	tc := cmd.transitionContext()
	tc.SubmissionKey = strings.TrimSpace(cmd.IdempotencyKey)
	return r.ExecuteStateTransition(ctx, id, InProgress, Completed, tc)
}

func (r *repo) Skip(ctx context.Context, id uuid.UUID, cmd ActionCommand) (*Task, error) {
	tc := cmd.transitionContext()
	tc.ReasonCode = cmd.ReasonCode
	return r.ExecuteStateTransition(ctx, id, InProgress, Pending, tc)
}

// Abandon reads the task's current status and moves it to the requested
// terminal bucket through the administrative edge table.
func (r *repo) Abandon(ctx context.Context, id uuid.UUID, cmd AbandonCommand) (*Task, error) {
	if cmd.Status != Skipped && cmd.Status != Failed {
		return nil, &ValidationError{Field: "status", Reason: "must be skipped or failed"}
	}

	current, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	return r.ExecuteStateTransition(ctx, id, current.Status, cmd.Status, TransitionContext{
		Actor:          cmd.Actor,
		IP:             cmd.IP,
		UserAgent:      cmd.UserAgent,
		Token:          cmd.Token,
		ReasonCode:     cmd.Reason,
		Administrative: true,
	})
}

func (r *repo) versionConflict(ctx context.Context, tx *sql.Tx, current *Task) error {
	var actual int64
	err := tx.QueryRowContext(ctx, "SELECT version FROM tasks WHERE id = $1", current.ID).Scan(&actual)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &ConcurrencyConflictError{
		Expected: current.Token,
		Actual:   GenerateConcurrencyToken(actual),
	}
}

func (c ActionCommand) transitionContext() TransitionContext {
	return TransitionContext{
		Actor:     c.UserID,
		IP:        c.IP,
		UserAgent: c.UserAgent,
		Payload:   c.Payload,
		Token:     c.Token,
	}
}

// A submit replay is the same actor resubmitting with the key already
// stored on the completed task.
func isReplay(t *Task, to Status, tc TransitionContext) bool {
	return to == Completed &&
		tc.SubmissionKey != "" &&
		t.Status == Completed &&
		t.SubmissionKey != nil &&
		*t.SubmissionKey == tc.SubmissionKey &&
		t.IsAssignedTo(tc.Actor)
}

// buildTransitionUpdate guards the write on the version read under lock so a
// concurrent writer surfaces as zero affected rows.
func buildTransitionUpdate(current *Task, to Status, tc TransitionContext, now time.Time) (string, []any) {
	sets := []string{"status = $1", "version = version + 1", "updated_at = $2"}
	args := []any{string(to), now}

	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if len(tc.Payload) > 0 {
		add("annotation", string(tc.Payload))
	}
	if to == Completed && tc.SubmissionKey != "" {
		add("submission_key", tc.SubmissionKey)
	}
	if to == Pending || tc.Administrative {
		sets = append(sets, "assigned_to = NULL", "assigned_at = NULL")
	}

	args = append(args, current.ID, current.Version)
	stmt := fmt.Sprintf(
		"UPDATE tasks SET %s WHERE id = $%d AND version = $%d",
		strings.Join(sets, ", "),
		len(args)-1,
		len(args),
	)
	return stmt, args
}

func eventContext(tc TransitionContext) map[string]any {
	fields := make(map[string]any)
	set := func(k, v string) {
		if v != "" {
			fields[k] = v
		}
	}
	set("ip", tc.IP)
	set("user_agent", tc.UserAgent)
	set("reason_code", tc.ReasonCode)
	set("idempotency_key", tc.SubmissionKey)
	if tc.Administrative {
		fields["administrative"] = true
	}
	return fields
}

// validatePayload requires a JSON object.
func validatePayload(payload json.RawMessage) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return &ValidationError{Field: "payload", Reason: "required"}
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return &ValidationError{Field: "payload", Reason: "must be a JSON object"}
	}
	return nil
}
