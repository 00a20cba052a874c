package ingest

import (
	"errors"
	"net/http"
)

var (
	ErrJobNotFound = errors.New("import job not found")
	ErrInvalidJob  = errors.New("invalid job id")
	ErrSource      = errors.New("row source unavailable")
)

// MapHTTPStatus maps ingest errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidJob):
		return http.StatusBadRequest
	case errors.Is(err, ErrSource):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
