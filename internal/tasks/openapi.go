package tasks

import "github.com/JaimeStill/docket/pkg/openapi"

var (
	tokenHeader = openapi.HeaderParam("If-Match", "Concurrency token; the body token field takes precedence")
	taskID      = openapi.PathParam("id", "Task UUID")
)

var transitionResponses = map[int]*openapi.Response{
	200: openapi.ResponseJSON("Task after the transition", "Task"),
	400: openapi.ResponseRef("BadRequest"),
	403: openapi.ResponseRef("Forbidden"),
	404: openapi.ResponseRef("NotFound"),
	409: openapi.ResponseRef("Conflict"),
	412: openapi.ResponseRef("PreconditionFailed"),
}

var listOp = &openapi.Operation{
	Summary: "List tasks",
	Parameters: []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number", false),
		openapi.QueryParam("page_size", "integer", "Results per page", false),
		openapi.QueryParam("search", "string", "Substring of request_id", false),
		openapi.QueryParam("sort", "string", "Comma-separated sort fields", false),
		openapi.QueryParam("status", "string", "Filter by status", false),
		openapi.QueryParam("assigned_to", "string", "Filter by assignee", false),
		openapi.QueryParam("job_id", "string", "Filter by import job", false),
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Task page", "TaskPage"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var statsOp = &openapi.Operation{
	Summary: "Task counts by status and assignee",
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Counts", "TaskStats"),
	},
}

var findOp = &openapi.Operation{
	Summary:    "Find a task",
	Parameters: []*openapi.Parameter{taskID},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Task", "Task"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var startOp = &openapi.Operation{
	Summary:     "Start a claimed task",
	Description: "pending -> in_progress. The caller must hold the assignment.",
	Parameters:  []*openapi.Parameter{taskID, tokenHeader},
	RequestBody: openapi.RequestBodyJSON("ActionCommand", true),
	Responses:   transitionResponses,
}

var draftOp = &openapi.Operation{
	Summary:     "Save a draft annotation",
	Description: "in_progress -> in_progress. Payload must be a JSON object.",
	Parameters:  []*openapi.Parameter{taskID, tokenHeader},
	RequestBody: openapi.RequestBodyJSON("ActionCommand", true),
	Responses:   transitionResponses,
}

var submitOp = &openapi.Operation{
	Summary:     "Submit the final annotation",
	Description: "in_progress -> completed. Resubmitting with the same idempotency key returns the completed task unchanged.",
	Parameters: []*openapi.Parameter{
		taskID,
		tokenHeader,
		openapi.HeaderParam("Idempotency-Key", "Submission key; the body field takes precedence"),
	},
	RequestBody: openapi.RequestBodyJSON("ActionCommand", true),
	Responses:   transitionResponses,
}

var skipOp = &openapi.Operation{
	Summary:     "Return a task to the queue",
	Description: "in_progress -> pending. Releases the assignment.",
	Parameters:  []*openapi.Parameter{taskID, tokenHeader},
	RequestBody: openapi.RequestBodyJSON("ActionCommand", true),
	Responses:   transitionResponses,
}

var abandonOp = &openapi.Operation{
	Summary:     "Abandon a task",
	Description: "Administrative move of a pending or in_progress task into skipped or failed.",
	Parameters:  []*openapi.Parameter{taskID, tokenHeader},
	RequestBody: openapi.RequestBodyJSON("AbandonCommand", true),
	Responses:   transitionResponses,
}

var statusEnum = []any{"pending", "in_progress", "completed", "failed", "skipped"}

var schemas = map[string]*openapi.Schema{
	"Task": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":            {Type: "string", Format: "uuid"},
			"request_id":    {Type: "string"},
			"job_id":        {Type: "string"},
			"row_id":        {Type: "string"},
			"payload_url":   {Type: "string", Format: "uri"},
			"vendor_output": {Type: "object"},
			"confidence":    {Type: "number"},
			"status":        {Type: "string", Enum: statusEnum},
			"assigned_to":   {Type: "string"},
			"assigned_at":   {Type: "string", Format: "date-time"},
			"assignee_hint": {Type: "string"},
			"annotation":    {Type: "object"},
			"version":       {Type: "integer"},
			"token":         {Type: "string", Description: "Concurrency token to echo on the next mutation", Example: "v3"},
			"created_at":    {Type: "string", Format: "date-time"},
			"updated_at":    {Type: "string", Format: "date-time"},
		},
	},
	"TaskPage": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        {Type: "array", Items: openapi.SchemaRef("Task")},
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
		},
	},
	"TaskStats": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"total":       {Type: "integer"},
			"by_status":   {Type: "object", Description: "Count per status", AdditionalProperties: &openapi.Schema{Type: "integer"}},
			"by_assignee": {Type: "object", Description: "Count of held tasks per user", AdditionalProperties: &openapi.Schema{Type: "integer"}},
		},
	},
	"ActionCommand": {
		Type:     "object",
		Required: []string{"user_id"},
		Properties: map[string]*openapi.Schema{
			"user_id":         {Type: "string"},
			"token":           {Type: "string"},
			"payload":         {Type: "object"},
			"idempotency_key": {Type: "string"},
			"reason_code":     {Type: "string"},
		},
	},
	"AbandonCommand": {
		Type:     "object",
		Required: []string{"actor", "status"},
		Properties: map[string]*openapi.Schema{
			"actor":  {Type: "string"},
			"status": {Type: "string", Enum: []any{"skipped", "failed"}},
			"reason": {Type: "string"},
			"token":  {Type: "string"},
		},
	},
}
