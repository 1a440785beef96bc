package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/manishiitg/apimcp/config"
	"github.com/manishiitg/apimcp/executor"
	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
	"github.com/manishiitg/apimcp/mcpserver"
)

var publicURL string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the standalone MCP server over stdio or SSE",
	Long: `Fetch every product's OpenAPI documents, register one MCP tool per
operation and serve them over stdio (default) or SSE.

Configuration comes from flags, the environment and the --env-file:
  MCP_BASE_URL, MCP_CLIENT_ID, MCP_CLIENT_SECRET, MCP_CACHE_TTL,
  MCP_MODE, PORT, BASE_PATH, MCP_HTTP_TIMEOUT, MCP_ALLOWED_TOOLS,
  MCP_SPEC_DIR

Send SIGHUP to refetch the specs and swap the registered tools.`,
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String(config.KeyMode, "", "transport: STDIO or SSE (MCP_MODE)")
	flags.String(config.KeyPort, "", "SSE listen port (PORT)")
	flags.String(config.KeyBasePath, "", "SSE base path (BASE_PATH)")
	flags.String(config.KeyAllowedTools, "", `"*" or a comma-separated list of tools to register (MCP_ALLOWED_TOOLS)`)
	flags.StringVar(&publicURL, "public-url", "", "externally visible origin announced in the SSE endpoint event")

	for _, key := range []string{config.KeyMode, config.KeyPort, config.KeyBasePath, config.KeyAllowedTools} {
		bindFlag(flags.Lookup(key))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := newLogger(config.LoggingConfig{})
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: settings.HTTPTimeout}
	src := newSource(settings, httpClient, logger)

	srv := mcpserver.New(executor.New(httpClient, src.auth, logger), src.loader(logger), mcpserver.Config{
		Name:         "apimcp",
		Version:      version,
		AllowedTools: settings.AllowedTools,
		Logger:       logger,
	})
	if err := srv.Refresh(ctx); err != nil {
		return err
	}
	go reloadOnHangup(ctx, logger, srv.Refresh)

	logger.Info("Starting MCP server",
		loggerv2.String("mode", settings.Mode),
		loggerv2.String("version", version))

	if settings.Mode == config.ModeSSE {
		return srv.ServeSSE(ctx, settings.ListenAddr(), publicURL, settings.BasePath)
	}
	return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
}
