package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/manishiitg/apimcp/config"
	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "apimcp",
	Short: "Expose REST APIs described by OpenAPI as MCP tools",
	Long: `apimcp turns OpenAPI operations and static tool maps into MCP tools and
forwards each tool call to its REST target.

Examples:
  # Standalone MCP server over stdio, specs from the listing service
  MCP_CLIENT_ID=... MCP_CLIENT_SECRET=... apimcp serve

  # Standalone server over SSE, specs from a local directory
  apimcp serve --mode SSE --port 3000 --spec-dir ./specs

  # HTTP gateway for API-key callers
  apimcp gateway --config gateway.yaml

  # Inspect the catalog
  apimcp catalog --spec-dir ./specs --lint`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFile)
	},
}

var (
	envFile   string
	logOutput string
)

func init() {
	if err := config.SetDefaults(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&logOutput, "log-output", "stderr", "log destination: stderr, stdout or a file path")
	flags.String(config.KeyLogLevel, "info", "log level (debug, info, warn, error)")
	flags.String(config.KeyLogFormat, "text", "log format (text, json)")

	// Spec source flags are shared by serve and catalog
	flags.String(config.KeyBaseURL, "", "spec listing service and token endpoint base URL (MCP_BASE_URL)")
	flags.String(config.KeySpecDir, "", "read specs from this directory instead of the listing service (MCP_SPEC_DIR)")
	flags.String(config.KeyCacheTTL, "", "spec cache TTL in milliseconds, 0 disables (MCP_CACHE_TTL)")
	flags.String(config.KeyHTTPTimeout, "", "timeout of outbound HTTP calls (MCP_HTTP_TIMEOUT)")

	for _, key := range []string{
		config.KeyLogLevel, config.KeyLogFormat,
		config.KeyBaseURL, config.KeySpecDir, config.KeyCacheTTL, config.KeyHTTPTimeout,
	} {
		bindFlag(flags.Lookup(key))
	}

	rootCmd.AddCommand(serveCmd, gatewayCmd, catalogCmd)
}

// newLogger builds the process logger. Empty fields of override fall back
// to the bound log flags.
func newLogger(override config.LoggingConfig) (loggerv2.Logger, error) {
	cfg := loggerv2.Config{
		Level:  viper.GetString(config.KeyLogLevel),
		Format: viper.GetString(config.KeyLogFormat),
		Output: logOutput,
	}
	if override.Level != "" {
		cfg.Level = override.Level
	}
	if override.Format != "" {
		cfg.Format = override.Format
	}
	if override.Output != "" && !rootCmd.PersistentFlags().Changed("log-output") {
		cfg.Output = override.Output
	}
	return loggerv2.New(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
