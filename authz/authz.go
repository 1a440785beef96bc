// Package authz decides which MCP methods and tools a caller may use.
//
// A caller's allow-list is a string: "*" allows every tool, anything else
// is a comma-separated list of tool names. An empty string allows nothing
// beyond the public methods.
package authz

import (
	"strings"

	"github.com/manishiitg/apimcp/jsonrpc"
)

// Wildcard allows every tool
const Wildcard = "*"

// FilterHeader narrows a tools/list answer further, per request
const FilterHeader = "x-mcp-tools-filter"

const (
	MethodToolsList = "tools/list"
	MethodToolsCall = "tools/call"
)

// publicMethods never need an allow-list
var publicMethods = map[string]bool{
	"initialize":                true,
	"notifications/initialized": true,
	"ping":                      true,
	"resources/list":            true,
	"resources/templates/list":  true,
	"prompts/list":              true,
}

// IsPublic reports whether method bypasses authorization
func IsPublic(method string) bool {
	return publicMethods[method]
}

// AllowList is a parsed allow-list string
type AllowList struct {
	all   bool
	names map[string]bool
	order []string
}

// ParseAllowList parses "*" or "a, b, c". Blank entries are dropped.
func ParseAllowList(s string) *AllowList {
	s = strings.TrimSpace(s)
	if s == Wildcard {
		return &AllowList{all: true}
	}
	a := &AllowList{names: map[string]bool{}}
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" || a.names[name] {
			continue
		}
		a.names[name] = true
		a.order = append(a.order, name)
	}
	return a
}

// All reports a wildcard list
func (a *AllowList) All() bool {
	return a != nil && a.all
}

// Empty reports a list that allows nothing
func (a *AllowList) Empty() bool {
	return a == nil || (!a.all && len(a.names) == 0)
}

// Allows reports whether the tool is on the list
func (a *AllowList) Allows(tool string) bool {
	if a == nil {
		return false
	}
	return a.all || a.names[tool]
}

// Names lists the allowed tools in the order they were written
func (a *AllowList) Names() []string {
	if a == nil {
		return nil
	}
	return a.order
}

// Authorize checks one request. allowed is the caller's raw allow-list
// string. tools/list always passes; its answer is narrowed with
// FilterTools afterwards. tool is only consulted for tools/call.
func Authorize(method, tool, allowed string) error {
	if IsPublic(method) || method == MethodToolsList {
		return nil
	}
	list := ParseAllowList(allowed)
	if list.Empty() {
		return jsonrpc.Unauthorized("Unauthorized: no MCP tools are configured for this caller")
	}
	if method == MethodToolsCall && !list.Allows(tool) {
		return jsonrpc.Unauthorized("Unauthorized: tool '%s' is not allowed for this caller", tool)
	}
	return nil
}

// FilterTools keeps the items whose name is allowed, preserving order
func FilterTools[T any](items []T, name func(T) string, allowed *AllowList) []T {
	if allowed.All() {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if allowed.Allows(name(item)) {
			out = append(out, item)
		}
	}
	return out
}

// HeaderFilter parses the optional per-request filter header. It returns
// nil when the header is absent, meaning no extra narrowing.
func HeaderFilter(value string) *AllowList {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return ParseAllowList(value)
}
