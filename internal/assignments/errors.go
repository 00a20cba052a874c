package assignments

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/docket/internal/audit"
	"github.com/JaimeStill/docket/internal/tasks"
)

// ErrAlreadyAssigned is returned when a claim loses to another claimer or the
// task is no longer pending.
var ErrAlreadyAssigned = errors.New("task already assigned")

// MapHTTPStatus maps assignment errors to HTTP status codes, deferring to the
// task mapping for errors raised by the task store.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrAlreadyAssigned):
		return http.StatusConflict
	case errors.Is(err, audit.ErrInvalidMethod):
		return http.StatusBadRequest
	}
	return tasks.MapHTTPStatus(err)
}
