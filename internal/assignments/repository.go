package assignments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/internal/audit"
	"github.com/JaimeStill/docket/internal/tasks"
	"github.com/JaimeStill/docket/pkg/database"
	"github.com/JaimeStill/docket/pkg/query"
	"github.com/JaimeStill/docket/pkg/repository"
)

const defaultClaimAttempts = 3

// errLostRace marks a candidate that another claimer took between selection
// and the guarded update. Callers re-select and try again.
var errLostRace = errors.New("claim lost to a concurrent claimer")

var fifoOrder = []query.SortField{
	{Field: "CreatedAt"},
	{Field: "RequestID"},
}

type repo struct {
	db            *sql.DB
	dialect       database.Dialect
	logger        *slog.Logger
	claimAttempts int
}

// New creates the assignment engine. claimAttempts bounds how many times a
// single dequeue re-selects after losing a race; values below 1 use the default.
func New(
	db *sql.DB,
	dialect database.Dialect,
	logger *slog.Logger,
	claimAttempts int,
) System {
	if claimAttempts < 1 {
		claimAttempts = defaultClaimAttempts
	}
	return &repo{
		db:            db,
		dialect:       dialect,
		logger:        logger.With("system", "assignments"),
		claimAttempts: claimAttempts,
	}
}

func (r *repo) Handler(log *audit.Handler) *Handler {
	return NewHandler(r, log, r.logger)
}

func (r *repo) Claim(
	ctx context.Context,
	taskID uuid.UUID,
	userID string,
	method audit.Method,
	priorityScore *float64,
) (*tasks.Task, error) {
	if err := validateUser("user_id", userID); err != nil {
		return nil, err
	}

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*tasks.Task, error) {
		if err := claim(ctx, tx, taskID, userID, method, priorityScore); err != nil {
			if errors.Is(err, errLostRace) {
				return nil, r.claimRejection(ctx, tx, taskID)
			}
			return nil, err
		}
		return findTask(ctx, tx, taskID)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("task claimed", "id", taskID, "request_id", t.RequestID, "user_id", userID, "method", method)
	return t, nil
}

func (r *repo) ClaimNext(ctx context.Context, userID string) (*tasks.Task, error) {
	if err := validateUser("user_id", userID); err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf(
		"SELECT %s FROM %s WHERE t.status = $1 AND t.assigned_to IS NULL"+
			" ORDER BY COALESCE(t.confidence, 0) DESC, t.created_at ASC, t.request_id ASC LIMIT 1%s",
		tasks.Projection.Columns(),
		tasks.Projection.From(),
		r.dialect.SkipLocked(),
	)

	for range r.claimAttempts {
		t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*tasks.Task, error) {
			candidate, err := repository.QueryOne(ctx, tx, stmt, []any{string(tasks.Pending)}, tasks.ScanTask)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, nil
				}
				return nil, fmt.Errorf("select next task: %w", err)
			}

			score := 0.0
			if candidate.Confidence != nil {
				score = *candidate.Confidence
			}

			if err := claim(ctx, tx, candidate.ID, userID, audit.MethodPullQueue, &score); err != nil {
				return nil, err
			}
			return findTask(ctx, tx, candidate.ID)
		})

		if errors.Is(err, errLostRace) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, nil
		}

		r.logger.Info("task dequeued", "id", t.ID, "request_id", t.RequestID, "user_id", userID)
		return t, nil
	}

	r.logger.Warn("claim attempts exhausted", "user_id", userID, "attempts", r.claimAttempts)
	return nil, nil
}

func (r *repo) EqualSplit(ctx context.Context, cmd EqualSplitCommand) (*EqualSplitResult, error) {
	if err := validateEqualSplit(cmd); err != nil {
		return nil, err
	}

	var unassigned int
	err := r.db.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM tasks WHERE status = $1 AND assigned_to IS NULL",
		string(tasks.Pending),
	).Scan(&unassigned)
	if err != nil {
		return nil, fmt.Errorf("count unassigned tasks: %w", err)
	}

	quota := (unassigned + len(cmd.UserIDs) - 1) / len(cmd.UserIDs)
	if cmd.QuotaPerUser != nil {
		quota = *cmd.QuotaPerUser
	}

	result := &EqualSplitResult{
		TotalTasks:  unassigned,
		Assignments: make([]UserCount, 0, len(cmd.UserIDs)),
	}

	exhausted := false
	for _, userID := range cmd.UserIDs {
		count := 0
		for count < quota && !exhausted {
			outcome, err := r.claimOldest(ctx, userID)
			if err != nil {
				result.Assignments = append(result.Assignments, UserCount{UserID: userID, Count: count})
				r.logger.Warn(
					"equal split interrupted",
					"user_id", userID,
					"assignments", result.Assignments,
					"error", err,
				)
				return result, fmt.Errorf("equal split for %s: %w", userID, err)
			}
			if outcome == claimEmpty {
				exhausted = true
				break
			}
			if outcome == claimContended {
				break
			}
			count++
		}
		result.Assignments = append(result.Assignments, UserCount{UserID: userID, Count: count})
	}

	r.logger.Info(
		"equal split complete",
		"users", len(cmd.UserIDs),
		"quota", quota,
		"total_tasks", unassigned,
	)
	return result, nil
}

type claimOutcome int

const (
	claimed claimOutcome = iota
	// claimEmpty means the select found no unassigned pending task.
	claimEmpty
	// claimContended means every attempt lost its race; tasks may remain.
	claimContended
)

// claimOldest claims the oldest unassigned pending task for userID.
func (r *repo) claimOldest(ctx context.Context, userID string) (claimOutcome, error) {
	stmt, args := query.
		NewBuilder(tasks.Projection).
		WhereEquals("Status", string(tasks.Pending)).
		WhereNull("AssignedTo").
		OrderByFields(fifoOrder).
		BuildLimit(1, r.dialect.SkipLocked())

	for range r.claimAttempts {
		outcome, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (claimOutcome, error) {
			candidate, err := repository.QueryOne(ctx, tx, stmt, args, tasks.ScanTask)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return claimEmpty, nil
				}
				return claimEmpty, fmt.Errorf("select oldest task: %w", err)
			}

			if err := claim(ctx, tx, candidate.ID, userID, audit.MethodEqualSplit, candidate.Confidence); err != nil {
				return claimEmpty, err
			}
			return claimed, nil
		})

		if errors.Is(err, errLostRace) {
			continue
		}
		return outcome, err
	}

	r.logger.Warn("claim attempts exhausted", "user_id", userID, "attempts", r.claimAttempts)
	return claimContended, nil
}

// claim is the compare-and-swap at the heart of both strategies: the update
// only matches a pending, unassigned row, so of two racing claimers exactly
// one sees an affected row. The assignment record joins the same transaction.
func claim(
	ctx context.Context,
	tx *sql.Tx,
	taskID uuid.UUID,
	userID string,
	method audit.Method,
	priorityScore *float64,
) error {
	now := time.Now().UTC()

	n, err := repository.ExecAffected(
		ctx, tx,
		`UPDATE tasks SET assigned_to = $1, assigned_at = $2, updated_at = $2, version = version + 1
		WHERE id = $3 AND status = $4 AND assigned_to IS NULL`,
		userID, now, taskID, string(tasks.Pending),
	)
	if err != nil {
		return fmt.Errorf("claim task: %w", err)
	}
	if n == 0 {
		return errLostRace
	}

	return audit.AppendAssignment(ctx, tx, audit.Assignment{
		TaskID:        taskID,
		UserID:        userID,
		Method:        method,
		PriorityScore: priorityScore,
		CreatedAt:     now,
	})
}

// claimRejection explains why a direct claim matched no row.
func (r *repo) claimRejection(ctx context.Context, tx *sql.Tx, taskID uuid.UUID) error {
	if _, err := findTask(ctx, tx, taskID); err != nil {
		return err
	}
	return ErrAlreadyAssigned
}

func findTask(ctx context.Context, q repository.Querier, id uuid.UUID) (*tasks.Task, error) {
	stmt, args := query.NewBuilder(tasks.Projection).BuildSingle("ID", id)

	t, err := repository.QueryOne(ctx, q, stmt, args, tasks.ScanTask)
	if err != nil {
		return nil, repository.MapError(err, tasks.ErrNotFound, tasks.ErrDuplicate)
	}
	return &t, nil
}

func validateUser(field, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return &tasks.ValidationError{Field: field, Reason: "required"}
	}
	return nil
}

func validateEqualSplit(cmd EqualSplitCommand) error {
	if len(cmd.UserIDs) == 0 {
		return &tasks.ValidationError{Field: "user_ids", Reason: "at least one user is required"}
	}

	seen := make(map[string]bool, len(cmd.UserIDs))
	for _, u := range cmd.UserIDs {
		if err := validateUser("user_ids", u); err != nil {
			return err
		}
		if seen[u] {
			return &tasks.ValidationError{Field: "user_ids", Reason: fmt.Sprintf("duplicate user %q", u)}
		}
		seen[u] = true
	}

	if cmd.QuotaPerUser != nil && *cmd.QuotaPerUser < 1 {
		return &tasks.ValidationError{Field: "quota_per_user", Reason: "must be positive"}
	}
	return nil
}
