package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/pkg/pagination"
	"github.com/JaimeStill/docket/pkg/query"
	"github.com/JaimeStill/docket/pkg/repository"
)

const defaultActivityLimit = 50

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the audit read system.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "audit"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) History(ctx context.Context, taskID uuid.UUID) ([]Event, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE id = $1", taskID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("lookup task: %w", err)
	}

	id := taskID.String()
	q, args := query.
		NewBuilder(eventProjection, newestFirst...).
		WhereEquals("TaskID", &id).
		Build()

	events, err := repository.QueryMany(ctx, r.db, q, args, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("query task events: %w", err)
	}
	return events, nil
}

func (r *repo) Activity(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit < 1 || limit > r.pagination.MaxPageSize {
		limit = defaultActivityLimit
	}

	q, args := query.
		NewBuilder(activityProjection, newestFirst...).
		WhereEquals("Actor", &userID).
		BuildLimit(limit)

	activity, err := repository.QueryMany(ctx, r.db, q, args, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("query user activity: %w", err)
	}
	return activity, nil
}

func (r *repo) Assignments(
	ctx context.Context,
	page pagination.PageRequest,
	filters AssignmentFilters,
) (*pagination.PageResult[Assignment], error) {
	page.Normalize(r.pagination)

	if filters.Method != nil && !Method(*filters.Method).Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, *filters.Method)
	}
	if filters.TaskID != nil {
		id, err := uuid.Parse(*filters.TaskID)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTaskID, *filters.TaskID)
		}
		canonical := id.String()
		filters.TaskID = &canonical
	}

	qb := query.NewBuilder(assignmentProjection, newestFirst...)
	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count assignments: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	records, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanAssignment)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}

	result := pagination.NewPageResult(records, total, page.Page, page.PageSize)
	return &result, nil
}
