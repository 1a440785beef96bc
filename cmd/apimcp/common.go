package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/manishiitg/apimcp/catalog"
	"github.com/manishiitg/apimcp/config"
	"github.com/manishiitg/apimcp/executor"
	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
	"github.com/manishiitg/apimcp/oauth"
	"github.com/manishiitg/apimcp/specsource"
	"github.com/manishiitg/apimcp/tools"
)

func bindFlag(flag *pflag.Flag) {
	if err := viper.BindPFlag(flag.Name, flag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: bind flag %s: %v\n", flag.Name, err)
		os.Exit(1)
	}
}

// source is where the standalone server reads specs from and how it
// authenticates against the listing service and the REST targets
type source struct {
	fetcher *specsource.Fetcher
	auth    executor.AuthSource
}

func newSource(settings *config.Settings, httpClient *http.Client, logger loggerv2.Logger) *source {
	src := &source{}
	var lister specsource.Lister
	if settings.ClientID != "" && settings.ClientSecret != "" {
		tokens := oauth.NewManager(settings.OAuth(), httpClient, logger)
		src.auth = tokens
		lister = specsource.NewClient(settings.BaseURL, httpClient, tokens, logger)
	}
	if settings.SpecDir != "" {
		lister = specsource.Dir{Root: settings.SpecDir}
		logger.Info("Reading specs from directory", loggerv2.String("dir", settings.SpecDir))
	}
	src.fetcher = specsource.NewFetcher(lister, specsource.NewCache(settings.CacheTTL), logger)
	return src
}

// loader builds the catalog from every spec the source lists
func (s *source) loader(logger loggerv2.Logger) func(ctx context.Context) ([]*tools.Descriptor, error) {
	builder := catalog.NewBuilder(logger)
	return func(ctx context.Context) ([]*tools.Descriptor, error) {
		specs, err := s.fetcher.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		return builder.Build(specs), nil
	}
}

// reloadOnHangup calls reload on every SIGHUP until ctx ends
func reloadOnHangup(ctx context.Context, logger loggerv2.Logger, reload func(context.Context) error) {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hangup:
			logger.Info("SIGHUP received, reloading tool catalog")
			if err := reload(ctx); err != nil {
				logger.Error("Catalog reload failed, keeping current tools", err)
			}
		}
	}
}
