package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/config"
	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/pipeline"
	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/pixel"
	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	DryRun          bool
	SkipDedup       bool
	IncludePayloads bool
	PixelURL        string
	ScriptID        string
	DBDriver        string
	DBDSN           string
	Database        string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <events-file>",
		Short: "Send a conversion batch through the pixel pipeline",
		Long: `Send a batch of conversion events through the pixel pipeline.

Events are validated, checked against the conversion store in one
batched lookup, and every new or changed conversion is forwarded to
the tracking pixel in input order. Outcomes are persisted and the full
run report is printed to stdout. Use "-" to read events from stdin.

Example:
  pixel-sender run ./events.json
  pixel-sender run --dry-run ./events.json
  cat events.json | pixel-sender run -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "classify only, send and write nothing")
	cmd.Flags().BoolVar(&opts.SkipDedup, "skip-dedup", false, "skip the store lookup and treat every event as new")
	cmd.Flags().BoolVar(&opts.IncludePayloads, "include-payloads", false, "include pixel payloads in failed send details")
	cmd.Flags().StringVar(&opts.PixelURL, "pixel-url", "", "pixel endpoint URL (overrides config)")
	cmd.Flags().StringVar(&opts.ScriptID, "script-id", "", "script id reported to the pixel (overrides config)")
	cmd.Flags().StringVar(&opts.DBDriver, "db-driver", "", "record store driver: mysql, pgx or sqlite3 (overrides config)")
	cmd.Flags().StringVar(&opts.DBDSN, "db-dsn", "", "record store DSN (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "database", "", "database name reported in results (overrides config)")

	return cmd
}

func runBatch(opts *RunOptions, eventsPath string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	applyRunOverrides(cfg, opts, cmd)

	events, err := LoadEvents(eventsPath, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load events", err)
	}
	slog.Info("events loaded", "path", eventsPath, "count", len(events))

	pcfg := pipeline.Config{
		ScriptID:        cfg.Pixel.ScriptID,
		Database:        cfg.Database.Name,
		DryRun:          cfg.Defaults.DryRun,
		SkipDedup:       cfg.Defaults.SkipDedup,
		IncludePayloads: cfg.Defaults.IncludePayloads,
	}

	var (
		src    pipeline.RecordSource
		sender pipeline.Sender
		writer pipeline.RecordWriter
	)

	// The store serves the lookup and the writes; a dry run that also
	// skips dedup needs neither.
	if !pcfg.SkipDedup || !pcfg.DryRun {
		if cfg.Database.DSN == "" {
			return NewExitError(ExitCommandError,
				"database DSN is required (set --db-dsn or PIXELSENDER_DATABASE__DSN)")
		}
		st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open record store", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing record store", "error", closeErr)
			}
		}()
		src = st
		writer = st
	}

	if !pcfg.DryRun {
		if cfg.Pixel.URL == "" {
			return NewExitError(ExitCommandError,
				"pixel URL is required for live runs (set --pixel-url or PIXELSENDER_PIXEL__URL)")
		}
		client, err := pixel.NewClient(cfg.Pixel.URL, pixel.WithTimeout(cfg.Pixel.Timeout))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid pixel endpoint", err)
		}
		sender = client
	}

	p, err := pipeline.New(pcfg, src, sender, writer)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to assemble pipeline", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, runErr := p.Run(ctx, events)
	if err := writeResult(cmd.OutOrStdout(), opts.Format, res); err != nil {
		return WrapExitError(ExitCommandError, "failed to render result", err)
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "run failed", runErr)
	}
	return nil
}

// applyRunOverrides folds explicit command-line flags over the loaded
// config. Boolean flags participate only when the caller actually set
// them, so config and environment keep their values otherwise.
func applyRunOverrides(cfg *config.Config, opts *RunOptions, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		cfg.Defaults.DryRun = opts.DryRun
	}
	if flags.Changed("skip-dedup") {
		cfg.Defaults.SkipDedup = opts.SkipDedup
	}
	if flags.Changed("include-payloads") {
		cfg.Defaults.IncludePayloads = opts.IncludePayloads
	}
	if opts.PixelURL != "" {
		cfg.Pixel.URL = opts.PixelURL
	}
	if opts.ScriptID != "" {
		cfg.Pixel.ScriptID = opts.ScriptID
	}
	if opts.DBDriver != "" {
		cfg.Database.Driver = opts.DBDriver
	}
	if opts.DBDSN != "" {
		cfg.Database.DSN = opts.DBDSN
	}
	if opts.Database != "" {
		cfg.Database.Name = opts.Database
	}
}
