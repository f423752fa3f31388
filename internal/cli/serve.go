package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/metrics"
	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/pipeline"
	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/pixel"
	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/server"
	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/store"
)

var registerMetricsOnce sync.Once

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pixel pipeline over HTTP",
		Long: `Start the HTTP server exposing the pipeline.

POST /v1/runs executes a batch and returns the run report, GET /healthz
probes the record store, and GET /metrics exposes Prometheus metrics.
The server keeps one store connection pool and one pixel client for all
runs; requests may override the dry-run, skip-dedup and payload flags
per call.

Example:
  pixel-sender serve
  pixel-sender serve --addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServer(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Serve.Addr = opts.Addr
	}

	if cfg.Database.DSN == "" {
		return NewExitError(ExitCommandError,
			"database DSN is required (set PIXELSENDER_DATABASE__DSN or config)")
	}
	if cfg.Pixel.URL == "" {
		return NewExitError(ExitCommandError,
			"pixel URL is required (set PIXELSENDER_PIXEL__URL or config)")
	}

	// Serve mode logs JSON for aggregation; the CLI default is text.
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("opening record store", "driver", cfg.Database.Driver)
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open record store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing record store", "error", closeErr)
		}
	}()

	client, err := pixel.NewClient(cfg.Pixel.URL, pixel.WithTimeout(cfg.Pixel.Timeout))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid pixel endpoint", err)
	}

	registerMetricsOnce.Do(metrics.Register)

	base := pipeline.Config{
		ScriptID:        cfg.Pixel.ScriptID,
		Database:        cfg.Database.Name,
		DryRun:          cfg.Defaults.DryRun,
		SkipDedup:       cfg.Defaults.SkipDedup,
		IncludePayloads: cfg.Defaults.IncludePayloads,
	}
	srv := server.New(cfg.Serve.Addr, slog.Default(), base, server.Capabilities{
		Source: st,
		Sender: client,
		Writer: st,
	}, st)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
