package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/docket/internal/tasks"
)

type pipeline struct {
	tasks  tasks.System
	source RowSource
	logger *slog.Logger
}

// New creates the ingest system over a task store and a row source.
func New(taskSys tasks.System, source RowSource, logger *slog.Logger) System {
	return &pipeline{
		tasks:  taskSys,
		source: source,
		logger: logger.With("system", "ingest"),
	}
}

func (p *pipeline) Handler() *Handler {
	return NewHandler(p, p.logger)
}

func (p *pipeline) CreateTasksFromJob(ctx context.Context, jobID string) (*Result, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, ErrInvalidJob
	}

	rows, err := p.source.GetValidRowsForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		JobID:       jobID,
		TotalRows:   len(rows),
		SkipReasons: map[string]int{},
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reason, err := p.processRow(ctx, jobID, row)
		if reason != "" {
			if err != nil {
				p.logger.Warn("row skipped", "job_id", jobID, "row_id", row.ID, "business_key", row.BusinessKey, "reason", reason, "error", err)
			}
			result.skip(reason)
			continue
		}
		result.Created++
	}

	p.logger.Info(
		"tasks created from job",
		"job_id", jobID,
		"total_rows", result.TotalRows,
		"created", result.Created,
		"skipped", result.Skipped,
	)

	return result, nil
}

// processRow returns the skip reason for a row, or "" when a task was created.
func (p *pipeline) processRow(ctx context.Context, jobID string, row Row) (string, error) {
	if row.ResourceStatus != ResourceOK {
		return ReasonAssetUnavailable, nil
	}

	key := strings.TrimSpace(row.BusinessKey)

	exists, err := p.tasks.Exists(ctx, key)
	if err != nil {
		return ReasonCreationError, fmt.Errorf("check existing task: %w", err)
	}
	if exists {
		return ReasonAlreadyExists, nil
	}

	payload, err := revalidate(row)
	if err != nil {
		return reasonFor(err), err
	}

	c, err := parseVendorOutput(payload)
	if err != nil {
		return reasonFor(err), err
	}

	cmd := tasks.CreateCommand{
		RequestID:    key,
		JobID:        jobID,
		RowID:        row.ID,
		PayloadURL:   c.payloadURL,
		VendorOutput: c.vendorOutput,
		Confidence:   c.confidence,
	}
	if hint := strings.TrimSpace(row.AssigneeHint); hint != "" {
		cmd.AssigneeHint = &hint
	}

	if _, err := p.tasks.Insert(ctx, cmd); err != nil {
		if errors.Is(err, tasks.ErrDuplicate) {
			return ReasonAlreadyExists, nil
		}
		return ReasonCreationError, err
	}

	return "", nil
}
