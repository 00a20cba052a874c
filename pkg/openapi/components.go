package openapi

import "maps"

func errorResponse(description string, details map[string]*Schema) *Response {
	props := map[string]*Schema{
		"error": {Type: "string", Description: "Error message"},
	}
	maps.Copy(props, details)

	return &Response{
		Description: description,
		Content: map[string]*MediaType{
			"application/json": {
				Schema: &Schema{Type: "object", Properties: props},
			},
		},
	}
}

// NewComponents creates Components with shared schemas and error responses.
// Error responses carry the structured details the task errors expose
// alongside the "error" message.
func NewComponents() *Components {
	statusList := &Schema{Type: "array", Items: &Schema{Type: "string"}}

	return &Components{
		Schemas: map[string]*Schema{
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: status,-created_at"},
				},
			},
		},
		Responses: map[string]*Response{
			"BadRequest": errorResponse("Invalid request", map[string]*Schema{
				"field":  {Type: "string", Description: "Offending field"},
				"reason": {Type: "string", Description: "Validation failure"},
			}),
			"Forbidden": errorResponse("Actor may not mutate this task", nil),
			"NotFound":  errorResponse("Resource not found", nil),
			"Conflict": errorResponse("Illegal state transition or task already assigned", map[string]*Schema{
				"from":           {Type: "string", Description: "Requested source status"},
				"to":             {Type: "string", Description: "Requested target status"},
				"current_status": {Type: "string", Description: "Status the task is actually in"},
				"allowed":        statusList,
			}),
			"PreconditionFailed": errorResponse("Stale concurrency token", map[string]*Schema{
				"expected": {Type: "string", Description: "Token supplied by the caller"},
				"actual":   {Type: "string", Description: "Current token of the task"},
			}),
		},
	}
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// AddResponses merges the given responses into the component responses.
func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}
