package swaggerkit

import "strings"

const (
	oasVersion = "3.0.3"
	basePath   = "/api/v1"
	errorRef   = "#/components/schemas/ErrorResponse"
)

// defaultErrors are added to every operation that does not document its own
var defaultErrors = map[string]struct {
	description string
	example     map[string]any
}{
	"400": {"Bad Request", map[string]any{
		"status_code": 400, "status": "Bad Request", "code": 8,
		"error": "subjectId is required", "field": "subjectId",
	}},
	"500": {"Internal Server Error", map[string]any{
		"status_code": 500, "status": "Internal Server Error", "code": 14,
		"kind": "ExternalTransientError", "error": "crm unavailable",
	}},
}

// Normalize pins the document to OAS 3.0.3, the newest the UI renders,
// and fills in the shared error envelope
func Normalize(spec map[string]any) {
	delete(spec, "swagger")
	if v, _ := spec["openapi"].(string); !strings.HasPrefix(v, "3.0") {
		spec["openapi"] = oasVersion
	}
	if _, ok := spec["servers"]; !ok {
		spec["servers"] = []any{map[string]any{"url": basePath}}
	}

	schemas := child(child(spec, "components"), "schemas")
	if _, ok := schemas["ErrorResponse"]; !ok {
		schemas["ErrorResponse"] = errorSchema()
	}

	paths, _ := spec["paths"].(map[string]any)
	for _, p := range paths {
		ops, _ := p.(map[string]any)
		for _, op := range ops {
			o, ok := op.(map[string]any)
			if !ok {
				continue
			}
			resps := child(o, "responses")
			for status, d := range defaultErrors {
				if _, ok := resps[status]; ok {
					continue
				}
				resps[status] = map[string]any{
					"description": d.description,
					"content": map[string]any{"application/json": map[string]any{
						"schema":  map[string]any{"$ref": errorRef},
						"example": d.example,
					}},
				}
			}
		}
	}
}

func errorSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type":        "object",
		"description": "Error envelope",
		"properties": map[string]any{
			"status_code": map[string]any{"type": "integer"},
			"status":      str,
			"code":        map[string]any{"type": "integer"},
			"kind":        str,
			"error":       str,
			"field":       str,
			"request_id":  str,
		},
		"required": []any{"status_code", "status"},
	}
}

// child returns m[key] as a map, creating it when missing or mistyped
func child(m map[string]any, key string) map[string]any {
	c, ok := m[key].(map[string]any)
	if !ok {
		c = map[string]any{}
		m[key] = c
	}
	return c
}
