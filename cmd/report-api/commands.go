package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"siete/report-portal/report-portal-backend/internal/app"
	"siete/report-portal/report-portal-backend/internal/config"
	"siete/report-portal/report-portal-backend/internal/reports"
	"siete/report-portal/report-portal-backend/internal/reports/cleanup"
	"siete/report-portal/report-portal-backend/internal/reports/jasper"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "report-api",
		Short:         "HTTP gateway that renders JasperReports templates to PDF",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.json", "Optional JSON configuration file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newTemplatesCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	return cmd
}

// load reads and validates the configuration and builds the logger.
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the temp file reaper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := commandContext(cmd)
			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return application.Run(ctx)
		},
	}
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that the report engine is installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			status := jasper.NewChecker(cfg.Reports.StarterPath, 0, logger).Check(commandContext(cmd))
			if err := printJSON(cmd, status); err != nil {
				return err
			}
			if !status.Installed {
				return fmt.Errorf("report engine %s is not available", cfg.Reports.StarterPath)
			}
			return nil
		},
	}
}

func newTemplatesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the compiled templates in the template directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			templates, err := reports.NewCatalog(cfg.Reports.TemplateDir, logger).List()
			if err != nil {
				return err
			}
			return printJSON(cmd, reports.TemplateListResponse{Reports: templates, Total: len(templates)})
		},
	}
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete stale artifacts from the temp directory once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if maxAge <= 0 {
				maxAge = cfg.Reports.MaxAge
			}
			reaper := cleanup.NewReaper(cleanup.Config{
				Dir:      cfg.Reports.TempDir,
				Interval: cfg.Reports.CleanupInterval,
				MaxAge:   maxAge,
			}, logger)
			return printJSON(cmd, reaper.Sweep(time.Now()))
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Override the configured maximum artifact age")
	return cmd
}
