// Package gateway serves MCP over plain HTTP POST for API-key callers.
//
// Each request runs decode, authorize and dispatch to completion: JSON-RPC
// at the base path, and a REST shortcut at {base}/tools/{name} that takes
// the tool arguments as the request body.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/manishiitg/apimcp/authz"
	"github.com/manishiitg/apimcp/executor"
	"github.com/manishiitg/apimcp/jsonrpc"
	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
	"github.com/manishiitg/apimcp/tools"
)

// DefaultProtocolVersion is answered when the client does not ask for one
const DefaultProtocolVersion = "2025-06-18"

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-Id"

// ToolExecutor runs one tool call
type ToolExecutor interface {
	Execute(ctx context.Context, d *tools.Descriptor, args map[string]interface{}) (*executor.Result, error)
}

// Options configure a Handler
type Options struct {
	BasePath string
	Name     string
	Version  string

	// Timeout bounds each tools/call, on top of the client's own timeout
	Timeout      time.Duration
	MaxBodyBytes int64
}

// Handler is the gateway's http.Handler
type Handler struct {
	registry atomic.Pointer[tools.Registry]
	exec     ToolExecutor
	keys     *KeyStore
	logger   loggerv2.Logger
	opts     Options
}

// NewHandler creates the gateway handler
func NewHandler(registry *tools.Registry, exec ToolExecutor, keys *KeyStore, logger loggerv2.Logger, opts Options) *Handler {
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	opts.BasePath = "/" + strings.Trim(opts.BasePath, "/")
	if opts.Name == "" {
		opts.Name = "apimcp-gateway"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4 << 20
	}
	h := &Handler{exec: exec, keys: keys, logger: logger, opts: opts}
	h.registry.Store(registry)
	return h
}

// SetRegistry swaps the served catalog. In-flight requests keep the one
// they started with.
func (h *Handler) SetRegistry(r *tools.Registry) {
	h.registry.Store(r)
}

// Registry returns the served catalog
func (h *Handler) Registry() *tools.Registry {
	return h.registry.Load()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	requestID := uuid.NewString()
	w.Header().Set(RequestIDHeader, requestID)
	logger := h.logger.With(loggerv2.String("request_id", requestID))

	path := strings.TrimSuffix(r.URL.Path, "/")
	base := strings.TrimSuffix(h.opts.BasePath, "/")
	switch {
	case path == base:
		h.serveRPC(w, r, logger)
	case strings.HasPrefix(path, base+"/tools/"):
		name := strings.TrimPrefix(path, base+"/tools/")
		if name == "" || strings.Contains(name, "/") {
			http.NotFound(w, r)
			return
		}
		h.servePerTool(w, r, name, logger)
	default:
		http.NotFound(w, r)
	}
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+APIKeyHeader+", "+authz.FilterHeader)
}

// serveRPC handles one JSON-RPC message
func (h *Handler) serveRPC(w http.ResponseWriter, r *http.Request, logger loggerv2.Logger) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		writeRPCError(w, nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidRequest, Message: "Invalid Request: use POST"}, http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		writeRPCError(w, nil, jsonrpc.ParseError("Parse error: %v", err), 0)
		return
	}
	env, err := jsonrpc.Decode(body)
	if err != nil {
		logger.Warn("Rejected JSON-RPC message", loggerv2.Error(err))
		writeRPCError(w, nil, jsonrpc.AsError(err), 0)
		return
	}
	if env.Kind() != jsonrpc.KindRequest {
		writeRPCError(w, env.ID, jsonrpc.InvalidRequest("Invalid Request: expected a request, got a %s", env.Kind()), 0)
		return
	}

	logger = logger.With(loggerv2.String("method", env.Method))
	logger.Debug("MCP request", loggerv2.Any("mcp", sideTable(env)))

	result, rpcErr := h.dispatch(r, env, logger)
	if rpcErr != nil {
		logger.Warn("MCP request failed",
			loggerv2.Int("code", rpcErr.Code),
			loggerv2.String("message", rpcErr.Message))
		writeRPCError(w, env.ID, rpcErr, 0)
		return
	}
	if env.IsNotification() || strings.HasPrefix(env.Method, "notifications/") {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	data, err := jsonrpc.EncodeResult(env.ID, result)
	if err != nil {
		writeRPCError(w, env.ID, jsonrpc.InternalError("Internal error: %v", err), 0)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// sideTable flattens the envelope into a map for debug logging
func sideTable(env *jsonrpc.Envelope) map[string]interface{} {
	pairs := env.SideTable("mcp")
	out := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		out[p.Key] = p.Value
	}
	return out
}

// caller resolves the product of the request. Public methods need none.
func (h *Handler) caller(r *http.Request) (*Product, *jsonrpc.Error) {
	key := APIKeyFromRequest(r)
	if key == "" {
		return nil, jsonrpc.Unauthenticated("Unauthenticated: missing API key")
	}
	product, ok := h.keys.Lookup(key)
	if !ok {
		h.logger.Warn("Rejected unknown API key", loggerv2.Secret("api_key", key), loggerv2.String("remote", r.RemoteAddr))
		return nil, jsonrpc.Unauthenticated("Unauthenticated: invalid API key")
	}
	return product, nil
}

func (h *Handler) dispatch(r *http.Request, env *jsonrpc.Envelope, logger loggerv2.Logger) (interface{}, *jsonrpc.Error) {
	method := env.Method
	if strings.HasPrefix(method, "notifications/") {
		return nil, nil
	}

	var product *Product
	if !authz.IsPublic(method) {
		var rpcErr *jsonrpc.Error
		if product, rpcErr = h.caller(r); rpcErr != nil {
			return nil, rpcErr
		}
		logger = logger.With(loggerv2.String("product", product.Name))
	}

	var call jsonrpc.ToolCallParams
	if method == authz.MethodToolsCall {
		if err := env.DecodeParams(&call); err != nil {
			return nil, jsonrpc.AsError(err)
		}
		if call.Name == "" {
			return nil, jsonrpc.InvalidParams("Invalid params: missing tool name")
		}
	}

	allowed := ""
	if product != nil {
		allowed = product.AllowedTools
	}
	if err := authz.Authorize(method, call.Name, allowed); err != nil {
		return nil, jsonrpc.AsError(err)
	}

	switch method {
	case "initialize":
		return h.initialize(env), nil
	case "ping":
		return map[string]interface{}{}, nil
	case "resources/list":
		return map[string]interface{}{"resources": []interface{}{}}, nil
	case "resources/templates/list":
		return map[string]interface{}{"resourceTemplates": []interface{}{}}, nil
	case "prompts/list":
		return map[string]interface{}{"prompts": []interface{}{}}, nil
	case authz.MethodToolsList:
		return map[string]interface{}{"tools": h.listTools(r, allowed)}, nil
	case authz.MethodToolsCall:
		result, err := h.callTool(r.Context(), call.Name, call.Arguments, logger)
		if err != nil {
			return nil, jsonrpc.AsError(err)
		}
		return result, nil
	}
	return nil, jsonrpc.MethodNotFound("Method not found: %s", method)
}

func (h *Handler) initialize(env *jsonrpc.Envelope) map[string]interface{} {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	_ = env.DecodeParams(&params)
	version := params.ProtocolVersion
	if version == "" {
		version = DefaultProtocolVersion
	}
	return map[string]interface{}{
		"protocolVersion": version,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{"listChanged": false},
		},
		"serverInfo": map[string]interface{}{
			"name":    h.opts.Name,
			"version": h.opts.Version,
		},
	}
}

// listTools applies the caller's allow-list, then the optional filter header
func (h *Handler) listTools(r *http.Request, allowed string) []tools.Listing {
	name := func(d *tools.Descriptor) string { return d.Name }
	descs := authz.FilterTools(h.Registry().List(), name, authz.ParseAllowList(allowed))
	if filter := authz.HeaderFilter(r.Header.Get(authz.FilterHeader)); filter != nil {
		descs = authz.FilterTools(descs, name, filter)
	}
	out := make([]tools.Listing, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.Listing())
	}
	return out
}

func (h *Handler) callTool(ctx context.Context, name string, args map[string]interface{}, logger loggerv2.Logger) (*executor.Result, error) {
	d, ok := h.Registry().Get(name)
	if !ok {
		return nil, jsonrpc.MethodNotFound("Tool '%s' not found", name)
	}
	if h.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.Timeout)
		defer cancel()
	}
	logger.Info("Calling tool", loggerv2.String("tool", name), loggerv2.String("category", d.Category))
	return h.exec.Execute(ctx, d, args)
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, rpcErr *jsonrpc.Error, status int) {
	if status == 0 {
		status = rpcErr.HTTPStatus()
	}
	data, err := jsonrpc.EncodeError(id, rpcErr)
	if err != nil {
		http.Error(w, rpcErr.Message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
