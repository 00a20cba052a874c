package testsupport

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TaskSeed describes a task row inserted directly, bypassing the creation pipeline.
// Zero values take defaults: status pending, unassigned, version 1.
type TaskSeed struct {
	RequestID  string
	JobID      string
	Confidence *float64
	Status     string
	AssignedTo string
	CreatedAt  time.Time
}

// SeedTask inserts a task and returns its id.
func SeedTask(t testing.TB, db *sql.DB, s TaskSeed) uuid.UUID {
	t.Helper()

	if s.Status == "" {
		s.Status = "pending"
	}
	if s.JobID == "" {
		s.JobID = "job-seed"
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	var assignedTo, assignedAt any
	if s.AssignedTo != "" {
		assignedTo = s.AssignedTo
		assignedAt = s.CreatedAt
	}

	id := uuid.New()
	_, err := db.ExecContext(
		context.Background(),
		`INSERT INTO tasks (id, request_id, job_id, row_id, payload_url, confidence, status,
			assigned_to, assigned_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $10)`,
		id,
		s.RequestID,
		s.JobID,
		s.RequestID,
		"https://assets.example.com/"+s.RequestID,
		s.Confidence,
		s.Status,
		assignedTo,
		assignedAt,
		s.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed task %s: %v", s.RequestID, err)
	}
	return id
}

// SeedTasks inserts n pending tasks named <prefix>-000.. with strictly increasing
// creation times, oldest first.
func SeedTasks(t testing.TB, db *sql.DB, prefix string, n int) []uuid.UUID {
	t.Helper()

	base := time.Now().UTC().Add(-time.Hour)
	ids := make([]uuid.UUID, n)
	for i := range n {
		ids[i] = SeedTask(t, db, TaskSeed{
			RequestID: fmt.Sprintf("%s-%03d", prefix, i),
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return ids
}

// ImportRowSeed is one row of the import pipeline's output table.
type ImportRowSeed struct {
	BusinessKey    string
	ResourceStatus string
	Payload        any
	AssigneeHint   string
}

// SeedImportRows writes rows for jobID in order. Payload values that are not
// json.RawMessage are marshalled.
func SeedImportRows(t testing.TB, db *sql.DB, jobID string, rows []ImportRowSeed) {
	t.Helper()

	for i, r := range rows {
		var payload []byte
		switch p := r.Payload.(type) {
		case json.RawMessage:
			payload = p
		case string:
			payload = []byte(p)
		default:
			b, err := json.Marshal(p)
			if err != nil {
				t.Fatalf("marshal row payload: %v", err)
			}
			payload = b
		}

		var hint any
		if r.AssigneeHint != "" {
			hint = r.AssigneeHint
		}

		_, err := db.ExecContext(
			context.Background(),
			`INSERT INTO import_rows (job_id, row_number, business_key, resource_status, payload, assignee_hint)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			jobID, i+1, r.BusinessKey, r.ResourceStatus, string(payload), hint,
		)
		if err != nil {
			t.Fatalf("seed import row %d: %v", i+1, err)
		}
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
