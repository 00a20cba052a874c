package audit

import (
	"errors"
	"net/http"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrInvalidMethod = errors.New("invalid assignment method")
	ErrInvalidTaskID = errors.New("invalid task id")
)

// MapHTTPStatus maps audit errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidMethod), errors.Is(err, ErrInvalidTaskID):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
