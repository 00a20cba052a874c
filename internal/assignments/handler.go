package assignments

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/internal/audit"
	"github.com/JaimeStill/docket/internal/tasks"
	"github.com/JaimeStill/docket/pkg/handlers"
	"github.com/JaimeStill/docket/pkg/openapi"
	"github.com/JaimeStill/docket/pkg/routes"
)

// Handler provides HTTP endpoints for the assignment engine. The assignment
// log itself is served by the audit handler mounted under the same prefix.
type Handler struct {
	sys    System
	log    *audit.Handler
	logger *slog.Logger
}

func NewHandler(sys System, log *audit.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		log:    log,
		logger: logger.With("handler", "assignments"),
	}
}

// Routes returns the route group definition for assignment endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/assignments",
		Tags:   []string{"Assignments"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.log.ListAssignments, OpenAPI: audit.ListAssignmentsOp},
			{Method: "POST", Pattern: "/equal-split", Handler: h.EqualSplit, OpenAPI: equalSplitOp},
			{Method: "POST", Pattern: "/next", Handler: h.ClaimNext, OpenAPI: claimNextOp},
			{Method: "POST", Pattern: "/claim", Handler: h.Claim, OpenAPI: claimOp},
		},
		Schemas: schemas,
	}
}

// EqualSplit distributes the unassigned queue across the listed users.
func (h *Handler) EqualSplit(w http.ResponseWriter, r *http.Request) {
	var cmd EqualSplitCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	result, err := h.sys.EqualSplit(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// ClaimNext dequeues one task for the caller. An empty queue yields {"task": null}.
func (h *Handler) ClaimNext(w http.ResponseWriter, r *http.Request) {
	var cmd ClaimCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	t, err := h.sys.ClaimNext(r.Context(), cmd.UserID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, ClaimResult{Task: t})
}

// Claim assigns a specific pending task to the caller.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var cmd ClaimTaskCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	id, err := uuid.Parse(cmd.TaskID)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, &tasks.ValidationError{Field: "task_id", Reason: "must be a UUID"})
		return
	}

	t, err := h.sys.Claim(r.Context(), id, cmd.UserID, audit.MethodPullQueue, nil)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	if handlers.RespondTooLarge(w, h.logger, err) {
		return false
	}

	handlers.RespondError(w, h.logger, http.StatusBadRequest, &tasks.ValidationError{Field: "body", Reason: "malformed JSON"})
	return false
}

var equalSplitOp = &openapi.Operation{
	Summary:     "Distribute unassigned tasks across users",
	Description: "Walks the user list once, giving each user up to quota_per_user of the oldest unassigned pending tasks.",
	RequestBody: openapi.RequestBodyJSON("EqualSplitCommand", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Per-user counts", "EqualSplitResult"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var claimNextOp = &openapi.Operation{
	Summary:     "Claim the next task",
	Description: "Highest confidence first, then oldest. Returns {\"task\": null} when nothing is available.",
	RequestBody: openapi.RequestBodyJSON("ClaimCommand", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Claimed task or null", "ClaimResult"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var claimOp = &openapi.Operation{
	Summary:     "Claim a specific task",
	RequestBody: openapi.RequestBodyJSON("ClaimTaskCommand", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Claimed task", "Task"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
		409: openapi.ResponseRef("Conflict"),
	},
}

var schemas = map[string]*openapi.Schema{
	"EqualSplitCommand": {
		Type:     "object",
		Required: []string{"user_ids"},
		Properties: map[string]*openapi.Schema{
			"user_ids":       {Type: "array", Items: &openapi.Schema{Type: "string"}},
			"quota_per_user": {Type: "integer", Description: "Defaults to ceil(unassigned / users)"},
		},
	},
	"EqualSplitResult": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"total_tasks": {Type: "integer"},
			"assignments": {
				Type: "array",
				Items: &openapi.Schema{
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"user_id": {Type: "string"},
						"count":   {Type: "integer"},
					},
				},
			},
		},
	},
	"ClaimCommand": {
		Type:       "object",
		Required:   []string{"user_id"},
		Properties: map[string]*openapi.Schema{"user_id": {Type: "string"}},
	},
	"ClaimTaskCommand": {
		Type:     "object",
		Required: []string{"task_id", "user_id"},
		Properties: map[string]*openapi.Schema{
			"task_id": {Type: "string", Format: "uuid"},
			"user_id": {Type: "string"},
		},
	},
	"ClaimResult": {
		Type:       "object",
		Properties: map[string]*openapi.Schema{"task": openapi.SchemaRef("Task")},
	},
}
