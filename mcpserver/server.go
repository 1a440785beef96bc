// Package mcpserver exposes the tool catalog as a standalone MCP server over
// stdio or SSE.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/manishiitg/apimcp/authz"
	"github.com/manishiitg/apimcp/executor"
	"github.com/manishiitg/apimcp/jsonrpc"
	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
	"github.com/manishiitg/apimcp/tools"
)

// ToolExecutor runs one tool call
type ToolExecutor interface {
	Execute(ctx context.Context, d *tools.Descriptor, args map[string]interface{}) (*executor.Result, error)
}

// Loader produces the catalog's descriptors. It is called at startup and on
// every refresh.
type Loader func(ctx context.Context) ([]*tools.Descriptor, error)

// Config configures a Server
type Config struct {
	Name    string
	Version string

	// AllowedTools is "*" or a comma-separated list of tools to register
	AllowedTools string
	Logger       loggerv2.Logger
}

// Server registers catalog tools with an mcp-go server
type Server struct {
	mcp     *server.MCPServer
	exec    ToolExecutor
	load    Loader
	allowed *authz.AllowList
	logger  loggerv2.Logger

	// mu serializes refreshes; registry is the catalog currently registered
	mu       sync.Mutex
	registry *tools.Registry
}

// New creates a Server. Call Refresh to register the first catalog.
func New(exec ToolExecutor, load Loader, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	if cfg.Name == "" {
		cfg.Name = "apimcp"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.AllowedTools == "" {
		cfg.AllowedTools = authz.Wildcard
	}
	return &Server{
		mcp: server.NewMCPServer(cfg.Name, cfg.Version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
		exec:    exec,
		load:    load,
		allowed: authz.ParseAllowList(cfg.AllowedTools),
		logger:  logger,
	}
}

// MCPServer returns the underlying mcp-go server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Registry returns the catalog currently registered
func (s *Server) Registry() *tools.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry
}

// Refresh loads the catalog and swaps the registered tools. On failure the
// previous tools stay registered.
func (s *Server) Refresh(ctx context.Context) error {
	descs, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	registry := tools.NewRegistry(descs, s.logger)

	name := func(d *tools.Descriptor) string { return d.Name }
	exposed := authz.FilterTools(registry.List(), name, s.allowed)

	serverTools := make([]server.ServerTool, 0, len(exposed))
	for _, d := range exposed {
		serverTools = append(serverTools, server.ServerTool{Tool: toMCPTool(d), Handler: s.handler(d)})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old := s.registry; old != nil && old.Len() > 0 {
		s.mcp.DeleteTools(old.Names()...)
	}
	if len(serverTools) > 0 {
		s.mcp.AddTools(serverTools...)
	}
	s.registry = tools.NewRegistry(exposed, s.logger)

	s.logger.Info("Tool catalog registered",
		loggerv2.Int("tools", len(exposed)),
		loggerv2.Int("filtered_out", registry.Len()-len(exposed)))
	return nil
}

func toMCPTool(d *tools.Descriptor) mcp.Tool {
	tool := mcp.NewToolWithRawSchema(d.Name, d.Description, d.InputSchema())
	if d.DisplayName != "" && d.DisplayName != d.Name {
		mcp.WithTitleAnnotation(d.DisplayName)(&tool)
	}
	return tool
}

func (s *Server) handler(d *tools.Descriptor) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := s.exec.Execute(ctx, d, req.GetArguments())
		if err != nil {
			// mcp-go answers every handler error with -32603, so the
			// executor's own code travels in the message text
			rpcErr := jsonrpc.AsError(err)
			s.logger.Error("Tool call failed", err,
				loggerv2.String("tool", d.Name),
				loggerv2.Int("rpc_code", rpcErr.Code))
			return nil, rpcErr
		}
		s.logger.Debug("Tool call finished",
			loggerv2.String("tool", d.Name),
			loggerv2.Bool("is_error", result.IsError),
			loggerv2.Duration("duration", time.Since(start)))
		return ToCallToolResult(result), nil
	}
}

// ToCallToolResult converts an executor result into mcp-go's result type
func ToCallToolResult(r *executor.Result) *mcp.CallToolResult {
	out := &mcp.CallToolResult{IsError: r.IsError}
	for _, c := range r.Content {
		switch c.Type {
		case executor.ContentImage:
			out.Content = append(out.Content, mcp.NewImageContent(c.Data, c.MIMEType))
		case executor.ContentAudio:
			out.Content = append(out.Content, mcp.NewAudioContent(c.Data, c.MIMEType))
		case executor.ContentResource:
			if c.Resource == nil {
				continue
			}
			out.Content = append(out.Content, mcp.NewEmbeddedResource(mcp.BlobResourceContents{
				URI:      c.Resource.URI,
				MIMEType: c.Resource.MIMEType,
				Blob:     c.Resource.Blob,
			}))
		default:
			out.Content = append(out.Content, mcp.NewTextContent(c.Text))
		}
	}
	if r.StructuredContent != nil {
		out.StructuredContent = r.StructuredContent
	}
	return out
}

// ServeStdio serves MCP over in and out until ctx ends or in closes. Log
// output must not go to out.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(loggerv2.ToStdLogger(s.logger, "mcp-stdio: "))
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// SSEHandler returns the SSE transport mounted under basePath. baseURL is
// the externally visible origin used in the endpoint event.
func (s *Server) SSEHandler(baseURL, basePath string) *server.SSEServer {
	opts := []server.SSEOption{server.WithKeepAlive(true)}
	if basePath = strings.Trim(basePath, "/"); basePath != "" {
		opts = append(opts, server.WithStaticBasePath("/"+basePath))
	}
	if baseURL != "" {
		opts = append(opts, server.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
	}
	return server.NewSSEServer(s.mcp, opts...)
}

// ServeSSE listens on addr until ctx ends, then closes the open sessions
// and shuts down gracefully
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL, basePath string) error {
	sse := s.SSEHandler(baseURL, basePath)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("MCP SSE server listening",
			loggerv2.String("addr", addr),
			loggerv2.String("base_path", basePath))
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sse.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown SSE server: %w", err)
	}
	return nil
}
