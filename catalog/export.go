package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/manishiitg/apimcp/tools"
)

// Export generates an OpenAPI 3.0 YAML document describing the catalog
// itself: one POST /tools/{name} endpoint per tool whose request body is the
// tool's input schema.
func Export(descs []*tools.Descriptor, title, baseURL string) ([]byte, error) {
	spec := buildBaseSpec(
		fmt.Sprintf("%s Tools API", title),
		fmt.Sprintf("Tools generated from the %s API catalog", title),
		baseURL,
	)

	paths := make(map[string]interface{})
	schemas := make(map[string]interface{})

	for _, d := range descs {
		schemaName := schemaNameFromTool(d.Name)
		schemas[schemaName] = toOpenAPISchema(d.InputSchema())

		op := buildOperation(d.Description, d.Name, schemaName)
		if d.Category != "" {
			op["tags"] = []string{d.Category}
		}
		paths["/tools/"+d.Name] = map[string]interface{}{"post": op}
	}

	spec["paths"] = paths
	components := spec["components"].(map[string]interface{})
	components["schemas"] = schemas

	return yaml.Marshal(spec)
}

// toOpenAPISchema converts a tool input JSON Schema to an OpenAPI 3.0
// schema: unions with null become nullable, and the root is always an object.
func toOpenAPISchema(raw json.RawMessage) map[string]interface{} {
	var schema map[string]interface{}
	if err := json.Unmarshal(raw, &schema); err != nil || schema == nil {
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}
	delete(schema, "$schema")
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	return rewriteNullable(schema).(map[string]interface{})
}

func rewriteNullable(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			t[k] = rewriteNullable(child)
		}
		variants, ok := t["anyOf"].([]interface{})
		if !ok {
			return t
		}
		var kept []interface{}
		nullable := false
		for _, variant := range variants {
			if m, ok := variant.(map[string]interface{}); ok && m["type"] == "null" {
				nullable = true
				continue
			}
			kept = append(kept, variant)
		}
		if !nullable {
			return t
		}
		if len(kept) == 1 {
			merged, _ := kept[0].(map[string]interface{})
			if merged == nil {
				merged = map[string]interface{}{}
			}
			for k, child := range t {
				if k != "anyOf" {
					merged[k] = child
				}
			}
			merged["nullable"] = true
			return merged
		}
		t["anyOf"] = kept
		t["nullable"] = true
		return t
	case []interface{}:
		for i, child := range t {
			t[i] = rewriteNullable(child)
		}
		return t
	default:
		return v
	}
}

// buildBaseSpec creates the document skeleton. Callers authenticate with
// a product API key in a header, a query parameter or a bearer token.
func buildBaseSpec(title, description, baseURL string) map[string]interface{} {
	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       title,
			"description": description,
			"version":     "1.0",
		},
		"servers": []map[string]interface{}{
			{"url": baseURL},
		},
		"security": []map[string]interface{}{
			{"apiKeyHeader": []string{}},
			{"apiKeyQuery": []string{}},
			{"bearerAuth": []string{}},
		},
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"apiKeyHeader": map[string]interface{}{"type": "apiKey", "in": "header", "name": "x-api-key"},
				"apiKeyQuery":  map[string]interface{}{"type": "apiKey", "in": "query", "name": "apikey"},
				"bearerAuth":   map[string]interface{}{"type": "http", "scheme": "bearer"},
			},
			"responses": map[string]interface{}{
				"ToolResponse": jsonResponse("Tool execution result", map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"isError": map[string]interface{}{"type": "boolean"},
						"content": map[string]interface{}{
							"type":  "array",
							"items": map[string]interface{}{"type": "object"},
						},
						"structuredContent": map[string]interface{}{"type": "object"},
					},
				}),
				"ToolError": jsonResponse("The call was rejected or could not reach the target", map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"code":    map[string]interface{}{"type": "integer"},
								"message": map[string]interface{}{"type": "string"},
								"data":    map[string]interface{}{},
							},
						},
					},
				}),
			},
		},
	}
}

func jsonResponse(description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

// buildOperation creates an OpenAPI path operation for a tool endpoint.
func buildOperation(description, operationID, schemaName string) map[string]interface{} {
	op := map[string]interface{}{
		"operationId": operationID,
		"requestBody": map[string]interface{}{
			"required": true,
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]interface{}{
						"$ref": fmt.Sprintf("#/components/schemas/%s", schemaName),
					},
				},
			},
		},
		"responses": map[string]interface{}{
			"200":     map[string]interface{}{"$ref": "#/components/responses/ToolResponse"},
			"default": map[string]interface{}{"$ref": "#/components/responses/ToolError"},
		},
	}

	// Keep the summary to the first line, capped at 120 characters
	if description != "" {
		summary := description
		if idx := strings.Index(summary, "\n"); idx > 0 {
			summary = summary[:idx]
		}
		if len(summary) > 120 {
			summary = summary[:117] + "..."
		}
		op["summary"] = summary
	}

	return op
}
