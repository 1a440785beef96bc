// Package executor turns a tool call into a REST request and the REST
// response back into a tool result.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/manishiitg/apimcp/jsonrpc"
	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
	"github.com/manishiitg/apimcp/oas"
	"github.com/manishiitg/apimcp/tools"
)

// DefaultTimeout bounds each outbound call when no client is supplied
const DefaultTimeout = 30 * time.Second

// AuthSource provides the authentication headers of outbound calls
type AuthSource interface {
	AuthHeaders(ctx context.Context) (map[string]string, error)
}

// invalidator is implemented by auth sources that cache credentials
type invalidator interface {
	Invalidate()
}

// StaticAuth is a fixed set of authentication headers
type StaticAuth map[string]string

func (s StaticAuth) AuthHeaders(ctx context.Context) (map[string]string, error) {
	return s, nil
}

// Executor issues tool calls against their REST targets
type Executor struct {
	httpClient *http.Client
	auth       AuthSource
	logger     loggerv2.Logger

	// maxBody caps how much of a response is read
	maxBody int64
}

// New creates an Executor. auth may be nil for unauthenticated targets.
func New(httpClient *http.Client, auth AuthSource, logger loggerv2.Logger) *Executor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	return &Executor{httpClient: httpClient, auth: auth, logger: logger, maxBody: 32 << 20}
}

// Execute runs one tool call. JSON-RPC failures (bad arguments, broken tool
// configuration) are returned as *jsonrpc.Error before any request is
// sent. An upstream answer, even an error status, becomes a Result; only a
// call that got no response at all returns a plain error.
func (e *Executor) Execute(ctx context.Context, d *tools.Descriptor, args map[string]interface{}) (*Result, error) {
	exec := &d.Execution
	logger := e.logger.With(loggerv2.String("tool", d.Name))

	if exec.Kind == tools.ExecDirectReturn {
		logger.Debug("Direct return tool, answering with its fixed value")
		return TextResult(exec.DirectValue, false), nil
	}
	if err := checkTarget(d); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := e.validateArgs(d, args, logger); err != nil {
		return nil, err
	}

	target, err := BuildURL(exec, args)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	var contentType string
	if exec.HasBody && exec.Method != http.MethodGet {
		if v, ok := args[exec.BodyKey()]; ok && v != nil && v != "" {
			data, ct, err := encodeBody(exec, v)
			if err != nil {
				return nil, err
			}
			body, contentType = bytes.NewReader(data), ct
		} else if exec.BodyRequired {
			logger.Warn("Required request body is missing, the API might reject the call")
		}
	}

	req, err := http.NewRequestWithContext(ctx, exec.Method, target, body)
	if err != nil {
		return nil, jsonrpc.InternalError("Tool '%s' has an invalid target: %v", d.Name, err)
	}
	for k, v := range exec.Headers {
		req.Header.Set(k, v)
	}
	for _, p := range exec.ParamsIn(tools.InHeader) {
		if v, ok := args[p.Name]; ok && v != nil && v != "" {
			req.Header.Set(p.Name, scalarString(v))
		}
	}
	accept := exec.Accept
	if accept == "" {
		accept = MediaJSON
	}
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	usedManaged, err := e.applyAuth(ctx, req, exec, args)
	if err != nil {
		return nil, err
	}

	logger.Info("Executing tool", loggerv2.String("method", exec.Method), loggerv2.String("url", target))
	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		logger.Error("Tool call got no response", err)
		return nil, fmt.Errorf("call %s %s: %w", exec.Method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response of %s %s: %w", exec.Method, target, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && usedManaged {
		if inv, ok := e.auth.(invalidator); ok {
			logger.Warn("Target answered 401, invalidating cached credentials")
			inv.Invalidate()
		}
	}

	result := NormalizeResponse(resp.StatusCode, resp.Header.Get("Content-Type"), data)
	fields := []loggerv2.Field{
		loggerv2.Int("status", resp.StatusCode),
		loggerv2.Duration("duration", time.Since(start)),
	}
	if result.IsError {
		logger.Warn("Tool call returned an error status", fields...)
	} else {
		logger.Info("Tool executed successfully", fields...)
	}
	return result, nil
}

func checkTarget(d *tools.Descriptor) error {
	exec := &d.Execution
	switch {
	case exec.TargetServer == "":
		return jsonrpc.InternalError("Target server URL is missing for tool '%s'.", d.Name)
	case exec.Method == "":
		return jsonrpc.InternalError("HTTP method is missing for tool '%s'.", d.Name)
	case exec.PathTemplate == "":
		return jsonrpc.InternalError("API path is missing for tool '%s'.", d.Name)
	}
	return nil
}

// validateArgs rejects arguments that contradict the tool's input shape.
// Advisory findings are only logged.
func (e *Executor) validateArgs(d *tools.Descriptor, args map[string]interface{}, logger loggerv2.Logger) error {
	if d.Input == nil {
		return nil
	}
	input := d.Input
	if _, ok := args[d.Execution.BodyKey()].(string); ok && d.Execution.HasBody {
		// string bodies are sent verbatim whatever the body schema says
		input = withAnyProperty(input, d.Execution.BodyKey())
	}
	issues := input.Validate(args)
	var fatal []string
	for _, issue := range issues {
		if issue.Fatal {
			fatal = append(fatal, issue.String())
			continue
		}
		logger.Warn("Argument check", loggerv2.String("issue", issue.String()))
	}
	if len(fatal) > 0 {
		return jsonrpc.InvalidParams("Invalid arguments for tool '%s': %s", d.Name, strings.Join(fatal, "; "))
	}
	return nil
}

// withAnyProperty copies s with the named property accepting any value
func withAnyProperty(s *oas.Shape, name string) *oas.Shape {
	out := *s
	out.Properties = make([]oas.Property, len(s.Properties))
	copy(out.Properties, s.Properties)
	for i := range out.Properties {
		if out.Properties[i].Name == name {
			out.Properties[i].Shape = oas.Any()
		}
	}
	return &out
}

// applyAuth sets authentication headers last so declared headers cannot
// shadow them. A caller token wins for OpenID Connect tools. It reports
// whether the headers came from the executor's own auth source.
func (e *Executor) applyAuth(ctx context.Context, req *http.Request, exec *tools.Execution, args map[string]interface{}) (bool, error) {
	if exec.Security.IsOpenIDConnect() {
		if v, ok := args[tools.UserAuthorizationParam].(string); ok && strings.TrimSpace(v) != "" {
			token := strings.TrimSpace(v)
			if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = "Bearer " + token
			}
			req.Header.Set("Authorization", token)
			return false, nil
		}
	}
	if e.auth == nil {
		return false, nil
	}
	headers, err := e.auth.AuthHeaders(ctx)
	if err != nil {
		return false, fmt.Errorf("authenticate outbound call: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return true, nil
}
