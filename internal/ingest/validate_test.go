package ingest

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRevalidate(t *testing.T) {
	tests := []struct {
		name    string
		row     Row
		wantErr error
	}{
		{
			name: "valid",
			row:  Row{BusinessKey: "k", Payload: json.RawMessage(`{"payload_url":"https://a.example.com/x"}`)},
		},
		{
			name:    "blank key",
			row:     Row{BusinessKey: "  ", Payload: json.RawMessage(`{"payload_url":"https://a.example.com/x"}`)},
			wantErr: errInvalidValue,
		},
		{
			name:    "key too long",
			row:     Row{BusinessKey: strings.Repeat("k", 256), Payload: json.RawMessage(`{"payload_url":"https://a.example.com/x"}`)},
			wantErr: errInvalidValue,
		},
		{
			name:    "relative url",
			row:     Row{BusinessKey: "k", Payload: json.RawMessage(`{"payload_url":"/x.png"}`)},
			wantErr: errInvalidValue,
		},
		{
			name:    "negative confidence",
			row:     Row{BusinessKey: "k", Payload: json.RawMessage(`{"payload_url":"http://a.example.com/x","confidence":-0.1}`)},
			wantErr: errInvalidValue,
		},
		{
			name:    "payload not json",
			row:     Row{BusinessKey: "k", Payload: json.RawMessage(`{`)},
			wantErr: errInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := revalidate(tt.row)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseVendorOutput(t *testing.T) {
	tests := []struct {
		name           string
		vendor         string
		wantErr        bool
		wantConfidence *float64
	}{
		{name: "object", vendor: `{"label":"a","confidence":0.5}`, wantConfidence: ptr(0.5)},
		{name: "string object", vendor: `"{\"label\":\"a\"}"`},
		{name: "fenced string", vendor: "\"```json\\n{\\\"confidence\\\":0.25}\\n```\"", wantConfidence: ptr(0.25)},
		{name: "out of range confidence ignored", vendor: `{"confidence":7}`},
		{name: "missing", vendor: ``, wantErr: true},
		{name: "null", vendor: `null`, wantErr: true},
		{name: "number", vendor: `42`, wantErr: true},
		{name: "garbage string", vendor: `"nope"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseVendorOutput(rowPayload{
				PayloadURL:   "https://a.example.com/x",
				VendorOutput: json.RawMessage(tt.vendor),
			})
			if tt.wantErr {
				if !errors.Is(err, errInvalidPayload) {
					t.Fatalf("err = %v, want invalid payload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var obj map[string]any
			if err := json.Unmarshal(c.vendorOutput, &obj); err != nil {
				t.Errorf("normalised output is not an object: %v", err)
			}

			switch {
			case tt.wantConfidence == nil && c.confidence != nil:
				t.Errorf("confidence = %v, want nil", *c.confidence)
			case tt.wantConfidence != nil && (c.confidence == nil || *c.confidence != *tt.wantConfidence):
				t.Errorf("confidence = %v, want %v", c.confidence, *tt.wantConfidence)
			}
		})
	}
}

func TestReasonFor(t *testing.T) {
	if got := reasonFor(errInvalidPayload); got != ReasonInvalidPayload {
		t.Errorf("reasonFor(payload) = %s", got)
	}
	if got := reasonFor(errInvalidValue); got != ReasonInvalidValue {
		t.Errorf("reasonFor(value) = %s", got)
	}
}

func ptr[T any](v T) *T {
	return &v
}
