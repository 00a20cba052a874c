package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/pkg/handlers"
	"github.com/JaimeStill/docket/pkg/middleware"
	"github.com/JaimeStill/docket/pkg/pagination"
	"github.com/JaimeStill/docket/pkg/routes"
)

// Handler provides HTTP endpoints for task operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "tasks"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for task endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/tasks",
		Tags:   []string{"Tasks"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: listOp},
			{Method: "GET", Pattern: "/stats", Handler: h.Stats, OpenAPI: statsOp},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: findOp},
			{Method: "POST", Pattern: "/{id}/start", Handler: h.Start, OpenAPI: startOp},
			{Method: "PUT", Pattern: "/{id}/draft", Handler: h.SaveDraft, OpenAPI: draftOp},
			{Method: "POST", Pattern: "/{id}/submit", Handler: h.Submit, OpenAPI: submitOp},
			{Method: "POST", Pattern: "/{id}/skip", Handler: h.Skip, OpenAPI: skipOp},
			{Method: "POST", Pattern: "/{id}/abandon", Handler: h.Abandon, OpenAPI: abandonOp},
		},
		Schemas: schemas,
	}
}

// List returns a paginated list of tasks with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single task by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	t, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

// Stats returns task counts by status and by assignee.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sys.Stats(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.sys.Start)
}

func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.sys.SaveDraft)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.sys.Submit)
}

func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.sys.Skip)
}

// Abandon moves a task into the skipped or failed bucket.
func (h *Handler) Abandon(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd AbandonCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	client := middleware.ClientFromContext(r.Context())
	cmd.IP, cmd.UserAgent = client.IP, client.UserAgent
	if cmd.Token == "" {
		cmd.Token = r.Header.Get("If-Match")
	}

	t, err := h.sys.Abandon(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

type actionFunc func(ctx context.Context, id uuid.UUID, cmd ActionCommand) (*Task, error)

// action decodes an annotator command and fills in what travels outside the
// body: the caller's address, If-Match, and Idempotency-Key.
func (h *Handler) action(w http.ResponseWriter, r *http.Request, fn actionFunc) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd ActionCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	client := middleware.ClientFromContext(r.Context())
	cmd.IP, cmd.UserAgent = client.IP, client.UserAgent

	if cmd.Token == "" {
		cmd.Token = r.Header.Get("If-Match")
	}
	if cmd.IdempotencyKey == "" {
		cmd.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	t, err := fn(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("ETag", `"`+t.Token+`"`)
	handlers.RespondJSON(w, http.StatusOK, t)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, &ValidationError{Field: "id", Reason: "must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body into v. An empty body leaves v zero.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	if handlers.RespondTooLarge(w, h.logger, err) {
		return false
	}

	handlers.RespondError(w, h.logger, http.StatusBadRequest, &ValidationError{Field: "body", Reason: "malformed JSON"})
	return false
}
