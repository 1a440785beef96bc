package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/manishiitg/apimcp/catalog"
	"github.com/manishiitg/apimcp/config"
	"github.com/manishiitg/apimcp/tools"
)

var (
	lintSpecs   bool
	exportPath  string
	exportTitle string
	exportURL   string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List, lint or export the tool catalog",
	Long: `Fetch the specs the standalone server would serve and print the tools
they produce.

Examples:
  apimcp catalog --spec-dir ./specs
  apimcp catalog --spec-dir ./specs --lint
  apimcp catalog --spec-dir ./specs --export tools.yaml --server-url http://localhost:8080/mcp`,
	RunE: runCatalog,
}

func init() {
	flags := catalogCmd.Flags()
	flags.BoolVar(&lintSpecs, "lint", false, "validate every spec with a strict OpenAPI 3 loader")
	flags.StringVar(&exportPath, "export", "", `write an OpenAPI document of the per-tool endpoints to this file ("-" for stdout)`)
	flags.StringVar(&exportTitle, "title", "apimcp", "title of the exported document")
	flags.StringVar(&exportURL, "server-url", "http://localhost:8080/mcp", "server URL of the exported document")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := newLogger(config.LoggingConfig{})
	if err != nil {
		return err
	}
	defer logger.Close()

	httpClient := &http.Client{Timeout: settings.HTTPTimeout}
	src := newSource(settings, httpClient, logger)
	out := cmd.OutOrStdout()

	if lintSpecs {
		specs, err := src.fetcher.FetchAll(cmd.Context())
		if err != nil {
			return err
		}
		findings := catalog.Lint(cmd.Context(), specs)
		for _, f := range findings {
			fmt.Fprintln(out, f.String())
		}
		if len(findings) > 0 {
			return fmt.Errorf("%d of %d specs failed lint", len(findings), len(specs))
		}
		fmt.Fprintf(out, "%d specs passed lint\n", len(specs))
		return nil
	}

	descs, err := src.loader(logger)(cmd.Context())
	if err != nil {
		return err
	}
	registry := tools.NewRegistry(descs, logger)

	if exportPath != "" {
		data, err := catalog.Export(registry.List(), exportTitle, exportURL)
		if err != nil {
			return fmt.Errorf("export catalog: %w", err)
		}
		if exportPath == "-" {
			_, err = out.Write(data)
			return err
		}
		if err := os.WriteFile(exportPath, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %d tools to %s\n", registry.Len(), exportPath)
		return nil
	}

	return printCatalog(out, registry.List())
}

func printCatalog(w io.Writer, descs []*tools.Descriptor) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tCATEGORY\tMETHOD\tTARGET")
	for _, d := range descs {
		method, target := d.Execution.Method, d.Execution.TargetServer+d.Execution.PathTemplate
		if d.Execution.Kind == tools.ExecDirectReturn {
			method, target = "-", "(direct return)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.Category, method, target)
	}
	return tw.Flush()
}
