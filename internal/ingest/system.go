package ingest

import "context"

// System materialises tasks from import jobs.
type System interface {
	Handler() *Handler

	// CreateTasksFromJob creates one pending task per eligible row of the
	// job. Per-row failures are counted in the result, not returned.
	CreateTasksFromJob(ctx context.Context, jobID string) (*Result, error)
}
