package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/JaimeStill/docket/pkg/repository"
	"github.com/JaimeStill/docket/pkg/storage"
)

// RowSource yields the validated rows of an import job in row order.
type RowSource interface {
	GetValidRowsForJob(ctx context.Context, jobID string) ([]Row, error)
}

// DatabaseSource reads rows from the import_rows table written by the
// import pipeline.
type DatabaseSource struct {
	db repository.Querier
}

func NewDatabaseSource(db repository.Querier) *DatabaseSource {
	return &DatabaseSource{db: db}
}

func (s *DatabaseSource) GetValidRowsForJob(ctx context.Context, jobID string) ([]Row, error) {
	const q = `SELECT id, business_key, resource_status, payload, assignee_hint
		FROM import_rows
		WHERE job_id = $1
		ORDER BY row_number`

	rows, err := repository.QueryMany(ctx, s.db, q, []any{jobID}, scanRow)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSource, err)
	}
	return rows, nil
}

func scanRow(s repository.Scanner) (Row, error) {
	var (
		r       Row
		id      int64
		payload []byte
		hint    sql.NullString
	)
	if err := s.Scan(&id, &r.BusinessKey, &r.ResourceStatus, &payload, &hint); err != nil {
		return r, err
	}
	r.ID = strconv.FormatInt(id, 10)
	r.Payload = json.RawMessage(payload)
	r.AssigneeHint = hint.String
	return r, nil
}

// BlobSource reads a job document stored at <prefix><jobID>.json.
// The document has the shape {"rows": [Row, ...]}.
type BlobSource struct {
	store  storage.System
	prefix string
}

func NewBlobSource(store storage.System, prefix string) *BlobSource {
	return &BlobSource{store: store, prefix: prefix}
}

// JobKey returns the blob key holding jobID's rows.
func (s *BlobSource) JobKey(jobID string) string {
	return s.prefix + jobID + ".json"
}

func (s *BlobSource) GetValidRowsForJob(ctx context.Context, jobID string) ([]Row, error) {
	if strings.ContainsAny(jobID, "/\\") {
		return nil, ErrInvalidJob
	}

	body, err := s.store.Download(ctx, s.JobKey(jobID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrSource, err)
	}
	defer body.Close()

	var doc JobDocument
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode job document: %v", ErrSource, err)
	}
	if doc.Rows == nil {
		doc.Rows = []Row{}
	}
	return doc.Rows, nil
}

// JobDocument is the blob representation of an import job.
type JobDocument struct {
	Rows []Row `json:"rows"`
}

// StaticSource serves rows from memory, keyed by job id.
type StaticSource map[string][]Row

func (s StaticSource) GetValidRowsForJob(_ context.Context, jobID string) ([]Row, error) {
	rows, ok := s[jobID]
	if !ok {
		return []Row{}, nil
	}
	return rows, nil
}
