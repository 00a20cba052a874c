// Package handlers provides JSON response helpers shared by HTTP handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/docket/pkg/formatting"
)

// Detailer is implemented by errors that carry structured context for clients,
// such as the allowed next states of a rejected transition.
type Detailer interface {
	Details() map[string]any
}

// RespondJSON writes data as a JSON body with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError logs err and writes it as {"error": "..."}.
// Fields from an error implementing Detailer are merged into the body.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error("handler error", "status", status, "error", err)
	} else {
		logger.Warn("handler error", "status", status, "error", err)
	}

	body := map[string]any{"error": err.Error()}

	var d Detailer
	if errors.As(err, &d) {
		for k, v := range d.Details() {
			if k == "error" {
				continue
			}
			body[k] = v
		}
	}

	RespondJSON(w, status, body)
}

// RespondTooLarge writes a 413 naming the body limit when err came from an
// http.MaxBytesReader. It reports whether a response was written.
func RespondTooLarge(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return false
	}

	limit := formatting.FormatBytes(tooLarge.Limit, 0)
	logger.Warn("handler error", "status", http.StatusRequestEntityTooLarge, "limit", limit)
	RespondJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
		"error": fmt.Sprintf("request body exceeds %s", limit),
		"limit": tooLarge.Limit,
	})
	return true
}
