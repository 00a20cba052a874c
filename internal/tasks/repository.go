package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/docket/pkg/database"
	"github.com/JaimeStill/docket/pkg/pagination"
	"github.com/JaimeStill/docket/pkg/query"
	"github.com/JaimeStill/docket/pkg/repository"
)

type repo struct {
	db         *sql.DB
	dialect    database.Dialect
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the task system over db.
func New(
	db *sql.DB,
	dialect database.Dialect,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		dialect:    dialect,
		logger:     logger.With("system", "tasks"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Task], error) {
	page.Normalize(r.pagination)

	if filters.Status != nil {
		if _, err := parseStatus(*filters.Status); err != nil {
			return nil, err
		}
	}

	qb := query.
		NewBuilder(Projection, defaultSort).
		WhereSearch(page.Search, "RequestID")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, ScanTask)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Task, error) {
	return findTask(ctx, r.db, id)
}

func findTask(ctx context.Context, q repository.Querier, id uuid.UUID, suffix ...string) (*Task, error) {
	stmt, args := query.NewBuilder(Projection).BuildSingle("ID", id, suffix...)

	t, err := repository.QueryOne(ctx, q, stmt, args, ScanTask)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &t, nil
}

func (r *repo) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus:   make(map[Status]int, len(Statuses)),
		ByAssignee: make(map[string]int),
	}
	for _, s := range Statuses {
		stats.ByStatus[s] = 0
	}

	var byStatus, byAssignee []groupCount

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		byStatus, err = repository.QueryMany(
			gctx, r.db,
			"SELECT status, COUNT(*) FROM tasks GROUP BY status",
			nil, scanGroupCount,
		)
		if err != nil {
			return fmt.Errorf("count tasks by status: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		byAssignee, err = repository.QueryMany(
			gctx, r.db,
			"SELECT assigned_to, COUNT(*) FROM tasks WHERE assigned_to IS NOT NULL GROUP BY assigned_to",
			nil, scanGroupCount,
		)
		if err != nil {
			return fmt.Errorf("count tasks by assignee: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, c := range byStatus {
		stats.ByStatus[Status(c.key)] = c.count
		stats.Total += c.count
	}
	for _, c := range byAssignee {
		stats.ByAssignee[c.key] = c.count
	}

	return stats, nil
}

func (r *repo) Exists(ctx context.Context, requestID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM tasks WHERE request_id = $1",
		requestID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check task existence: %w", err)
	}
	return n > 0, nil
}

func (r *repo) Insert(ctx context.Context, cmd CreateCommand) (*Task, error) {
	now := time.Now().UTC()
	t := Task{
		ID:           uuid.New(),
		RequestID:    cmd.RequestID,
		JobID:        cmd.JobID,
		RowID:        cmd.RowID,
		PayloadURL:   cmd.PayloadURL,
		VendorOutput: cmd.VendorOutput,
		Confidence:   cmd.Confidence,
		Status:       Pending,
		AssigneeHint: cmd.AssigneeHint,
		Version:      1,
		Token:        GenerateConcurrencyToken(1),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var vendorOutput any
	if len(t.VendorOutput) > 0 {
		vendorOutput = string(t.VendorOutput)
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO tasks (id, request_id, job_id, row_id, payload_url, vendor_output,
			confidence, status, assignee_hint, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID,
		t.RequestID,
		t.JobID,
		t.RowID,
		t.PayloadURL,
		vendorOutput,
		t.Confidence,
		string(t.Status),
		t.AssigneeHint,
		t.Version,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("task created", "id", t.ID, "request_id", t.RequestID, "job_id", t.JobID)
	return &t, nil
}

type groupCount struct {
	key   string
	count int
}

func scanGroupCount(s repository.Scanner) (groupCount, error) {
	var c groupCount
	err := s.Scan(&c.key, &c.count)
	return c, err
}
