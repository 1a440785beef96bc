// Package jsonrpc decodes and encodes JSON-RPC 2.0 envelopes.
//
// Decode classifies a message as a request, a success response or an error
// response and keeps the raw id, params and result bytes so re-encoding
// reproduces them exactly.
package jsonrpc

import (
	"bytes"
	"encoding/json"

	"github.com/manishiitg/apimcp/flatten"
)

// Version is the only protocol version accepted
const Version = "2.0"

// Kind classifies a decoded envelope
type Kind int

const (
	KindRequest Kind = iota + 1
	KindResult
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResult:
		return "result"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Envelope is a parsed JSON-RPC 2.0 message. Absent members have nil raw
// values; a member explicitly set to null holds the literal "null".
type Envelope struct {
	Version string
	ID      json.RawMessage
	Method  string
	Params  json.RawMessage
	Result  json.RawMessage
	Error   *Error

	kind      Kind
	hasMethod bool
}

// Kind reports whether the envelope is a request, result or error
func (e *Envelope) Kind() Kind {
	return e.kind
}

// HasID reports whether the message carried an id member
func (e *Envelope) HasID() bool {
	return len(e.ID) > 0
}

// IsNotification reports a request sent without an id
func (e *Envelope) IsNotification() bool {
	return e.kind == KindRequest && !e.HasID()
}

// DecodeParams unmarshals params into v. Absent params leave v untouched.
func (e *Envelope) DecodeParams(v interface{}) error {
	if len(e.Params) == 0 || string(e.Params) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Params, v); err != nil {
		return InvalidParams("invalid params: %v", err)
	}
	return nil
}

type wireEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  *string         `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Decode parses and validates a JSON-RPC 2.0 message.
//
// Text that is not valid JSON fails with a ParseError. Valid JSON that is
// not an object fails with InvalidRequest, as does an object whose jsonrpc
// member is not "2.0" or which has no string method, error object or
// result member.
func Decode(data []byte) (*Envelope, error) {
	if !json.Valid(data) {
		return nil, ParseError("Parse error: invalid JSON")
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil || members == nil {
		return nil, InvalidRequest("Invalid Request: message must be a JSON object")
	}

	env := &Envelope{}

	if raw, ok := members["jsonrpc"]; ok {
		if err := json.Unmarshal(raw, &env.Version); err != nil {
			return nil, InvalidRequest("Invalid Request: jsonrpc must be a string")
		}
	}
	if env.Version != Version {
		return nil, InvalidRequest("Invalid Request: jsonrpc must be exactly \"2.0\"")
	}

	if raw, ok := members["id"]; ok {
		env.ID = raw
	}
	if raw, ok := members["method"]; ok {
		if err := json.Unmarshal(raw, &env.Method); err == nil {
			env.hasMethod = true
		}
	}
	if raw, ok := members["params"]; ok {
		env.Params = raw
	}
	if raw, ok := members["result"]; ok {
		env.Result = raw
	}
	if raw, ok := members["error"]; ok && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		var rpcErr Error
		if err := json.Unmarshal(raw, &rpcErr); err != nil {
			return nil, InvalidRequest("Invalid Request: malformed error object")
		}
		env.Error = &rpcErr
	}

	switch {
	case env.hasMethod:
		env.kind = KindRequest
	case env.Error != nil:
		env.kind = KindError
	case env.Result != nil:
		env.kind = KindResult
	default:
		return nil, InvalidRequest("Invalid Request: must contain method, result or error")
	}
	return env, nil
}

// Encode re-serializes the envelope, keeping every member it was decoded with
func (e *Envelope) Encode() ([]byte, error) {
	w := wireEnvelope{
		JSONRPC: Version,
		ID:      e.ID,
		Params:  e.Params,
		Result:  e.Result,
		Error:   e.Error,
	}
	if e.hasMethod || e.Method != "" {
		method := e.Method
		w.Method = &method
	}
	return json.Marshal(w)
}

// EncodeResult produces {"jsonrpc":"2.0","id":...,"result":...}. The id
// member is written only when id is non-empty.
func EncodeResult(id json.RawMessage, result interface{}) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{JSONRPC: Version, ID: id, Result: raw})
}

// EncodeError produces {"jsonrpc":"2.0","id":...,"error":{code,message}}
func EncodeError(id json.RawMessage, rpcErr *Error) ([]byte, error) {
	return json.Marshal(wireEnvelope{JSONRPC: Version, ID: id, Error: rpcErr})
}

// SideTable flattens the whole envelope into dotted key/value pairs under
// prefix (e.g. mcp.params.arguments.id) for hosts that expose request
// attributes to a policy layer.
func (e *Envelope) SideTable(prefix string) []flatten.Pair {
	data, err := e.Encode()
	if err != nil {
		return nil
	}
	var tree interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil
	}
	return flatten.Pairs(prefix, tree, flatten.ArrayIndex)
}

// ToolCallParams is the params object of a tools/call request
type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}
