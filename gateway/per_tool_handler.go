package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/manishiitg/apimcp/authz"
	"github.com/manishiitg/apimcp/jsonrpc"
	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
)

// perToolError is the body of a failed per-tool request
type perToolError struct {
	Error *jsonrpc.Error `json:"error"`
}

// servePerTool handles POST {base}/tools/{name}. The body is the tool's
// arguments object and the answer is the bare tool result, matching the
// catalog export.
func (h *Handler) servePerTool(w http.ResponseWriter, r *http.Request, name string, logger loggerv2.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		writePerToolError(w, &jsonrpc.Error{Code: jsonrpc.CodeInvalidRequest, Message: "use POST"}, http.StatusMethodNotAllowed)
		return
	}
	logger = logger.With(loggerv2.String("tool", name))

	product, rpcErr := h.caller(r)
	if rpcErr != nil {
		writePerToolError(w, rpcErr, 0)
		return
	}
	if err := authz.Authorize(authz.MethodToolsCall, name, product.AllowedTools); err != nil {
		writePerToolError(w, jsonrpc.AsError(err), 0)
		return
	}

	// Parse request body as tool arguments
	var args map[string]interface{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err := dec.Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("Failed to decode per-tool request body", loggerv2.Error(err))
		writePerToolError(w, jsonrpc.InvalidParams("Invalid request body: %v", err), 0)
		return
	}
	if args == nil {
		args = make(map[string]interface{})
	}

	logger.Info("Per-tool request", loggerv2.String("product", product.Name))
	result, err := h.callTool(r.Context(), name, args, logger)
	if err != nil {
		writePerToolError(w, jsonrpc.AsError(err), 0)
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

func writePerToolError(w http.ResponseWriter, rpcErr *jsonrpc.Error, status int) {
	if status == 0 {
		status = rpcErr.HTTPStatus()
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(perToolError{Error: rpcErr})
}
