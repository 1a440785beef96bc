// Package tools defines the tool descriptors served over MCP and the
// registry that holds them.
//
// A descriptor is produced either by the OpenAPI catalog builder or from a
// static tool map, and is immutable once built: refreshing the catalog
// builds a new Registry instead of editing the old one.
package tools

import (
	"encoding/json"

	"github.com/manishiitg/apimcp/oas"
)

// ExecutionKind discriminates ExecutionDetails
type ExecutionKind int

const (
	// ExecREST issues an HTTP call against TargetServer
	ExecREST ExecutionKind = iota
	// ExecDirectReturn answers with DirectValue and makes no network call
	ExecDirectReturn
)

// Location is where a parameter travels in the REST call
type Location string

const (
	InPath   Location = "path"
	InQuery  Location = "query"
	InHeader Location = "header"
)

// DefaultBodyParam is the argument name carrying the request body
const DefaultBodyParam = "body"

// UserAuthorizationParam lets callers supply their own bearer token for
// tools protected by OpenID Connect.
const UserAuthorizationParam = "X-User-Authorization"

// Param describes one non-body parameter
type Param struct {
	Name     string
	In       Location
	Required bool
	Shape    *oas.Shape
}

// Security is the security requirement a tool inherits from its document
type Security struct {
	Type             string // "openIdConnect" is the only one acted upon
	OpenIDConnectURL string
}

// IsOpenIDConnect reports whether a caller-supplied token may be used
func (s *Security) IsOpenIDConnect() bool {
	return s != nil && s.Type == "openIdConnect"
}

// Execution holds everything needed to issue the call. Kind selects which
// fields are meaningful.
type Execution struct {
	Kind        ExecutionKind
	DirectValue string

	TargetServer string
	Method       string
	PathTemplate string
	Params       []Param

	// StrictPathParams rejects placeholders not listed in Params
	StrictPathParams bool

	BodyParam    string
	HasBody      bool
	BodyRequired bool
	ContentType  string
	Accept       string

	// RequestSchema is the body schema used for XML transcoding; its refs
	// resolve against SchemaDoc.
	RequestSchema *oas.Object
	SchemaDoc     *oas.Object

	// Headers are fixed headers sent with every call
	Headers  map[string]string
	Security *Security
}

// ParamsIn returns the parameters at one location, in declared order
func (e *Execution) ParamsIn(loc Location) []Param {
	var out []Param
	for _, p := range e.Params {
		if p.In == loc {
			out = append(out, p)
		}
	}
	return out
}

// BodyKey is the argument name holding the body
func (e *Execution) BodyKey() string {
	if e.BodyParam == "" {
		return DefaultBodyParam
	}
	return e.BodyParam
}

// Descriptor is one callable tool
type Descriptor struct {
	Name        string
	DisplayName string
	Description string
	Category    string
	Product     string
	SpecPath    string

	// Input is the object shape of the tool's arguments
	Input     *oas.Shape
	Execution Execution
}

// InputSchema renders Input as a JSON Schema object for tools/list
func (d *Descriptor) InputSchema() json.RawMessage {
	input := d.Input
	if input == nil {
		input = &oas.Shape{Kind: oas.KindObject}
	}
	raw, err := json.Marshal(input.JSONSchema())
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return raw
}

// Listing is the tools/list entry for a descriptor
type Listing struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Listing returns the wire form of the descriptor
func (d *Descriptor) Listing() Listing {
	title := d.DisplayName
	if title == d.Name {
		title = ""
	}
	return Listing{
		Name:        d.Name,
		Title:       title,
		Description: d.Description,
		InputSchema: d.InputSchema(),
	}
}
