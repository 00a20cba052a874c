package tasks

import (
	"encoding/json"
	"net/url"

	"github.com/JaimeStill/docket/pkg/query"
	"github.com/JaimeStill/docket/pkg/repository"
)

// Projection maps Task fields to the tasks table. The assignment engine
// selects and claims through the same projection.
var Projection = query.
	NewProjectionMap("", "tasks", "t").
	Project("id", "ID").
	Project("request_id", "RequestID").
	Project("job_id", "JobID").
	Project("row_id", "RowID").
	Project("payload_url", "PayloadURL").
	Project("vendor_output", "VendorOutput").
	Project("confidence", "Confidence").
	Project("status", "Status").
	Project("assigned_to", "AssignedTo").
	Project("assigned_at", "AssignedAt").
	Project("assignee_hint", "AssigneeHint").
	Project("annotation", "Annotation").
	Project("submission_key", "SubmissionKey").
	Project("version", "Version").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for task queries.
// Nil fields are ignored; all use exact matching.
type Filters struct {
	Status     *string `json:"status,omitempty"`
	AssignedTo *string `json:"assigned_to,omitempty"`
	JobID      *string `json:"job_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("AssignedTo", f.AssignedTo).
		WhereEquals("JobID", f.JobID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if a := values.Get("assigned_to"); a != "" {
		f.AssignedTo = &a
	}

	if j := values.Get("job_id"); j != "" {
		f.JobID = &j
	}

	return f
}

// ScanTask scans a row selected through Projection.
func ScanTask(s repository.Scanner) (Task, error) {
	var (
		t            Task
		vendorOutput []byte
		annotation   []byte
	)
	err := s.Scan(
		&t.ID,
		&t.RequestID,
		&t.JobID,
		&t.RowID,
		&t.PayloadURL,
		&vendorOutput,
		&t.Confidence,
		&t.Status,
		&t.AssignedTo,
		&t.AssignedAt,
		&t.AssigneeHint,
		&annotation,
		&t.SubmissionKey,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}

	if len(vendorOutput) > 0 {
		t.VendorOutput = json.RawMessage(vendorOutput)
	}
	if len(annotation) > 0 {
		t.Annotation = json.RawMessage(annotation)
	}
	t.Token = GenerateConcurrencyToken(t.Version)

	return t, nil
}
