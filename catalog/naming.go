package catalog

import (
	"strings"
)

// MethodPrefix starts every generated tool name
const MethodPrefix = "api_"

// MethodID derives the tool name of an operation from its operationId, or
// from verb and path when the operation has none.
// Example: getUserById -> api_getUserById, get /users/{id} -> api_get__users_id
func MethodID(operationID, verb, path string) string {
	base := operationID
	if base == "" {
		base = verb + "_" + path
	}
	return MethodPrefix + sanitizeIdentifier(base)
}

// CategoryFor is the category shared by all tools of one product
func CategoryFor(product string) string {
	return MethodPrefix + product
}

// sanitizeIdentifier collapses every run of characters other than letters,
// digits and underscores into a single underscore, then trims underscores
// from both ends.
func sanitizeIdentifier(name string) string {
	var result strings.Builder
	pending := false
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			if pending {
				result.WriteRune('_')
				pending = false
			}
			result.WriteRune(r)
			continue
		}
		pending = true
	}
	return strings.Trim(result.String(), "_")
}

// schemaNameFromTool converts a tool name to a PascalCase schema name.
// Example: "api_get_document" -> "ApiGetDocumentRequest"
func schemaNameFromTool(toolName string) string {
	parts := strings.Split(strings.ReplaceAll(toolName, "-", "_"), "_")
	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]) + part[1:])
		}
	}
	return result.String() + "Request"
}
