package audit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/pkg/handlers"
	"github.com/JaimeStill/docket/pkg/openapi"
	"github.com/JaimeStill/docket/pkg/pagination"
	"github.com/JaimeStill/docket/pkg/routes"
)

var errInvalidID = errors.New("invalid task id")

// Handler serves the audit read paths.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "audit"),
		pagination: pagination,
	}
}

// Routes returns the audit endpoints. They hang off the task and user
// resources, so the group carries no prefix of its own.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Tags: []string{"Audit"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/tasks/{id}/events", Handler: h.History, OpenAPI: historyOp},
			{Method: "GET", Pattern: "/users/{userId}/activity", Handler: h.Activity, OpenAPI: activityOp},
		},
		Schemas: schemas,
	}
}

// History returns the event trail for a task, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidID)
		return
	}

	events, err := h.sys.History(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, events)
}

// Activity returns recent events performed by a user.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	activity, err := h.sys.Activity(r.Context(), r.PathValue("userId"), limit)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, activity)
}

// ListAssignments serves the paginated assignment log. The assignments
// handler mounts it next to the claim endpoints.
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := AssignmentFiltersFromQuery(r.URL.Query())

	result, err := h.sys.Assignments(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// ListAssignmentsOp documents ListAssignments.
var ListAssignmentsOp = &openapi.Operation{
	Summary: "List assignment records",
	Tags:    []string{"Assignments"},
	Parameters: []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number", false),
		openapi.QueryParam("page_size", "integer", "Results per page", false),
		openapi.QueryParam("sort", "string", "Comma-separated sort fields", false),
		openapi.QueryParam("user_id", "string", "Filter by assignee", false),
		openapi.QueryParam("method", "string", "Filter by method (equal_split, pull_queue)", false),
		openapi.QueryParam("task_id", "string", "Filter by task", false),
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Assignment page", "AssignmentPage"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var historyOp = &openapi.Operation{
	Summary: "Task audit trail",
	Parameters: []*openapi.Parameter{
		openapi.PathParam("id", "Task UUID"),
	},
	Responses: map[int]*openapi.Response{
		200: {
			Description: "Events, newest first",
			Content: map[string]*openapi.MediaType{
				"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("TaskEvent")}},
			},
		},
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var activityOp = &openapi.Operation{
	Summary: "Recent activity for a user",
	Parameters: []*openapi.Parameter{
		openapi.StringPathParam("userId", "Actor id"),
		openapi.QueryParam("limit", "integer", "Maximum events returned", false),
	},
	Responses: map[int]*openapi.Response{
		200: {
			Description: "Events, newest first",
			Content: map[string]*openapi.MediaType{
				"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("TaskEvent")}},
			},
		},
	},
}

var schemas = map[string]*openapi.Schema{
	"TaskEvent": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":         {Type: "integer"},
			"task_id":    {Type: "string", Format: "uuid"},
			"request_id": {Type: "string", Description: "Present on activity results"},
			"event_type": {Type: "string", Enum: []any{"started", "draft_saved", "completed", "skipped_to_queue", "failed", "updated"}},
			"actor":      {Type: "string"},
			"old_status": {Type: "string"},
			"new_status": {Type: "string"},
			"payload":    {Type: "object"},
			"context":    {Type: "object"},
			"created_at": {Type: "string", Format: "date-time"},
		},
	},
	"Assignment": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":             {Type: "integer"},
			"task_id":        {Type: "string", Format: "uuid"},
			"user_id":        {Type: "string"},
			"method":         {Type: "string", Enum: []any{"equal_split", "pull_queue"}},
			"priority_score": {Type: "number"},
			"created_at":     {Type: "string", Format: "date-time"},
		},
	},
	"AssignmentPage": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        {Type: "array", Items: openapi.SchemaRef("Assignment")},
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
		},
	},
}
