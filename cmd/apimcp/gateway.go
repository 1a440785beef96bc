package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/manishiitg/apimcp/catalog"
	"github.com/manishiitg/apimcp/config"
	"github.com/manishiitg/apimcp/executor"
	"github.com/manishiitg/apimcp/gateway"
	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
	"github.com/manishiitg/apimcp/oauth"
	"github.com/manishiitg/apimcp/specsource"
	"github.com/manishiitg/apimcp/tools"
)

var gatewayConfigPath string

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the HTTP JSON-RPC gateway for API-key callers",
	Long: `Serve MCP JSON-RPC over HTTP POST for callers identified by API key.
Each product's key carries the list of tools it may see and call.

Tools come from the static map in the config file and, when specDir is set,
from the OpenAPI documents under it. Send SIGHUP to re-read both.`,
	RunE: runGateway,
}

func init() {
	gatewayCmd.Flags().StringVarP(&gatewayConfigPath, "config", "c", "gateway.yaml", "gateway configuration file")
}

// gatewayCatalog builds the gateway's tools from the config file at path.
// Static tools come first so they win name collisions.
func gatewayCatalog(ctx context.Context, path string, logger loggerv2.Logger) (*tools.Registry, error) {
	cfg, err := config.LoadGateway(path)
	if err != nil {
		return nil, err
	}
	descs, err := cfg.StaticTools(logger)
	if err != nil {
		return nil, err
	}
	if cfg.SpecDir != "" {
		fetcher := specsource.NewFetcher(specsource.Dir{Root: cfg.SpecDir}, specsource.NewCache(0), logger)
		specs, err := fetcher.FetchAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", cfg.SpecDir, err)
		}
		descs = append(descs, catalog.NewBuilder(logger).Build(specs)...)
	}
	return tools.NewRegistry(descs, logger), nil
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadGateway(gatewayConfigPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := gatewayCatalog(ctx, gatewayConfigPath, logger)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: cfg.Server.HTTPTimeout}
	var auth executor.AuthSource
	if cfg.OAuth != nil {
		auth = oauth.NewManager(cfg.OAuth, httpClient, logger)
	}

	handler := gateway.NewHandler(registry, executor.New(httpClient, auth, logger), gateway.NewKeyStore(cfg.Products), logger, gateway.Options{
		BasePath: cfg.Server.BasePath,
		Version:  version,
		Timeout:  cfg.Server.HTTPTimeout,
	})
	go reloadOnHangup(ctx, logger, func(ctx context.Context) error {
		registry, err := gatewayCatalog(ctx, gatewayConfigPath, logger)
		if err != nil {
			return err
		}
		handler.SetRegistry(registry)
		logger.Info("Gateway catalog reloaded", loggerv2.Int("tools", registry.Len()))
		return nil
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          loggerv2.ToStdLogger(logger, "http: "),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Gateway listening",
			loggerv2.String("addr", cfg.Server.Addr),
			loggerv2.String("base_path", cfg.Server.BasePath),
			loggerv2.Int("tools", registry.Len()),
			loggerv2.Int("products", len(cfg.Products)))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", err)
		return err
	}
	logger.Info("Gateway stopped")
	return nil
}
