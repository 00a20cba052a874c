package ingest

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/docket/pkg/handlers"
	"github.com/JaimeStill/docket/pkg/openapi"
	"github.com/JaimeStill/docket/pkg/routes"
)

// Handler exposes the ingest pipeline over HTTP.
type Handler struct {
	sys    System
	logger *slog.Logger
}

func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "ingest"),
	}
}

// Routes returns the ingest endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/jobs",
		Tags:   []string{"Ingest"},
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{jobId}/tasks", Handler: h.CreateTasks, OpenAPI: createTasksOp},
		},
		Schemas: schemas,
	}
}

// CreateTasks runs the pipeline for the job in the path.
func (h *Handler) CreateTasks(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.CreateTasksFromJob(r.Context(), r.PathValue("jobId"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

var createTasksOp = &openapi.Operation{
	Summary:     "Create tasks from an import job",
	Description: "Idempotent: rows whose business key already has a task are skipped as already_exists.",
	Parameters: []*openapi.Parameter{
		openapi.StringPathParam("jobId", "Import job id"),
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Ingest summary", "IngestResult"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var schemas = map[string]*openapi.Schema{
	"IngestResult": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"job_id":     {Type: "string"},
			"total_rows": {Type: "integer"},
			"created":    {Type: "integer"},
			"skipped":    {Type: "integer"},
			"skip_reasons": {
				Type:                 "object",
				AdditionalProperties: &openapi.Schema{Type: "integer"},
			},
		},
	},
}
