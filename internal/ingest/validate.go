package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/JaimeStill/docket/pkg/formatting"
)

const maxBusinessKeyLen = 255

var (
	errInvalidValue   = errors.New(ReasonInvalidValue)
	errInvalidPayload = errors.New(ReasonInvalidPayload)
)

// candidate is a row that passed every check and is ready to insert.
type candidate struct {
	payloadURL   string
	vendorOutput json.RawMessage
	confidence   *float64
}

// revalidate re-checks the row fields the import pipeline already validated.
func revalidate(row Row) (rowPayload, error) {
	var p rowPayload

	key := strings.TrimSpace(row.BusinessKey)
	if key == "" {
		return p, fmt.Errorf("%w: business key is empty", errInvalidValue)
	}
	if len(key) > maxBusinessKeyLen {
		return p, fmt.Errorf("%w: business key exceeds %d characters", errInvalidValue, maxBusinessKeyLen)
	}

	if err := json.Unmarshal(row.Payload, &p); err != nil {
		return p, fmt.Errorf("%w: payload: %v", errInvalidPayload, err)
	}

	u, err := url.Parse(p.PayloadURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return p, fmt.Errorf("%w: payload_url %q is not an absolute http(s) URL", errInvalidValue, p.PayloadURL)
	}

	if p.Confidence != nil && !inUnitRange(*p.Confidence) {
		return p, fmt.Errorf("%w: confidence %v outside [0, 1]", errInvalidValue, *p.Confidence)
	}

	return p, nil
}

// parseVendorOutput normalises the vendor blob to a JSON object and pulls a
// confidence score out of it when the row did not carry one.
func parseVendorOutput(p rowPayload) (candidate, error) {
	c := candidate{
		payloadURL: p.PayloadURL,
		confidence: p.Confidence,
	}

	raw := strings.TrimSpace(string(p.VendorOutput))
	if raw == "" || raw == "null" {
		return c, fmt.Errorf("%w: vendor_output is missing", errInvalidPayload)
	}

	content := raw
	var s string
	if err := json.Unmarshal(p.VendorOutput, &s); err == nil {
		content = s
	}

	output, err := formatting.Parse[map[string]any](content)
	if err != nil {
		return c, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	if output == nil {
		return c, fmt.Errorf("%w: vendor_output is not an object", errInvalidPayload)
	}

	normalized, err := json.Marshal(output)
	if err != nil {
		return c, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	c.vendorOutput = normalized

	if c.confidence == nil {
		if v, ok := output["confidence"].(float64); ok && inUnitRange(v) {
			c.confidence = &v
		}
	}

	return c, nil
}

// reasonFor maps a validation error to its skip reason.
func reasonFor(err error) string {
	if errors.Is(err, errInvalidPayload) {
		return ReasonInvalidPayload
	}
	return ReasonInvalidValue
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
