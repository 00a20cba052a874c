// Package ingest turns validated import rows into tasks. Each business key
// materialises at most once, so a job can be re-run safely; rows that fail a
// check are counted under a skip reason and never abort the batch.
package ingest

import (
	"encoding/json"
)

// Skip reasons reported in Result.SkipReasons.
const (
	ReasonAssetUnavailable = "asset_unavailable"
	ReasonAlreadyExists    = "already_exists"
	ReasonInvalidValue     = "invalid_value"
	ReasonInvalidPayload   = "invalid_payload"
	ReasonCreationError    = "creation_error"
)

// ResourceOK is the health-check value of a row whose asset is reachable.
const ResourceOK = "ok"

// Row is one validated row produced by the import pipeline.
type Row struct {
	ID             string          `json:"id"`
	BusinessKey    string          `json:"business_key"`
	ResourceStatus string          `json:"resource_status"`
	Payload        json.RawMessage `json:"payload"`
	AssigneeHint   string          `json:"assignee_hint,omitempty"`
}

// Result summarises one pipeline run.
type Result struct {
	JobID       string         `json:"job_id"`
	TotalRows   int            `json:"total_rows"`
	Created     int            `json:"created"`
	Skipped     int            `json:"skipped"`
	SkipReasons map[string]int `json:"skip_reasons"`
}

func (r *Result) skip(reason string) {
	r.Skipped++
	r.SkipReasons[reason]++
}

// rowPayload is the classification input carried in a row's payload.
// VendorOutput is either a JSON object or a string holding one, possibly
// wrapped in a markdown code fence.
type rowPayload struct {
	PayloadURL   string          `json:"payload_url"`
	VendorOutput json.RawMessage `json:"vendor_output"`
	Confidence   *float64        `json:"confidence"`
}
