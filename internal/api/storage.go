package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/docket/internal/ingest"
	"github.com/JaimeStill/docket/pkg/handlers"
	"github.com/JaimeStill/docket/pkg/openapi"
	"github.com/JaimeStill/docket/pkg/routes"
	"github.com/JaimeStill/docket/pkg/storage"
)

var errInvalidDocument = errors.New("invalid job document")

// jobDocumentHandler stages import job documents in blob storage for the
// blob row source.
type jobDocumentHandler struct {
	store  storage.System
	source *ingest.BlobSource
	logger *slog.Logger
}

func newJobDocumentHandler(
	store storage.System,
	prefix string,
	logger *slog.Logger,
) *jobDocumentHandler {
	return &jobDocumentHandler{
		store:  store,
		source: ingest.NewBlobSource(store, prefix),
		logger: logger.With("handler", "job-documents"),
	}
}

func (h *jobDocumentHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/jobs",
		Tags:   []string{"Ingest"},
		Routes: []routes.Route{
			{Method: "PUT", Pattern: "/{jobId}/document", Handler: h.upload, OpenAPI: uploadDocumentOp},
			{Method: "GET", Pattern: "/{jobId}/document", Handler: h.status, OpenAPI: documentStatusOp},
		},
		Schemas: map[string]*openapi.Schema{
			"JobDocumentStatus": {
				Type: "object",
				Properties: map[string]*openapi.Schema{
					"job_id": {Type: "string"},
					"key":    {Type: "string"},
					"exists": {Type: "boolean"},
					"rows":   {Type: "integer", Description: "Rows in an uploaded document"},
				},
			},
		},
	}
}

type documentStatus struct {
	JobID  string `json:"job_id"`
	Key    string `json:"key"`
	Exists bool   `json:"exists"`
	Rows   int    `json:"rows,omitempty"`
}

func (h *jobDocumentHandler) upload(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		if !handlers.RespondTooLarge(w, h.logger, err) {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		}
		return
	}

	var doc ingest.JobDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %v", errInvalidDocument, err))
		return
	}

	key := h.source.JobKey(jobID)
	if err := h.store.Upload(r.Context(), key, bytes.NewReader(body), "application/json"); err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	h.logger.Info("job document staged", "job_id", jobID, "key", key, "rows", len(doc.Rows))

	handlers.RespondJSON(w, http.StatusCreated, documentStatus{
		JobID:  jobID,
		Key:    key,
		Exists: true,
		Rows:   len(doc.Rows),
	})
}

func (h *jobDocumentHandler) status(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	key := h.source.JobKey(jobID)

	exists, err := h.store.Exists(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, documentStatus{
		JobID:  jobID,
		Key:    key,
		Exists: exists,
	})
}

var uploadDocumentOp = &openapi.Operation{
	Summary:     "Stage an import job document",
	Description: "Stores {\"rows\": [...]} for the blob row source.",
	Parameters: []*openapi.Parameter{
		openapi.StringPathParam("jobId", "Import job id"),
	},
	RequestBody: &openapi.RequestBody{
		Required: true,
		Content: map[string]*openapi.MediaType{
			"application/json": {Schema: &openapi.Schema{Type: "object"}},
		},
	},
	Responses: map[int]*openapi.Response{
		201: openapi.ResponseJSON("Document stored", "JobDocumentStatus"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var documentStatusOp = &openapi.Operation{
	Summary: "Check whether an import job document is staged",
	Parameters: []*openapi.Parameter{
		openapi.StringPathParam("jobId", "Import job id"),
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Document status", "JobDocumentStatus"),
	},
}
