package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/store"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	DBDriver string
	DBDSN    string
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create the conversion store schema",
		Long: `Open the record store, create the conversions table if it does not
exist, and report how many conversions the pixel source has recorded.

Example:
  pixel-sender schema --db-driver sqlite3 --db-dsn ./conversions.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBDriver, "db-driver", "", "record store driver: mysql, pgx or sqlite3 (overrides config)")
	cmd.Flags().StringVar(&opts.DBDSN, "db-dsn", "", "record store DSN (overrides config)")

	return cmd
}

func runSchema(opts *SchemaOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.DBDriver != "" {
		cfg.Database.Driver = opts.DBDriver
	}
	if opts.DBDSN != "" {
		cfg.Database.DSN = opts.DBDSN
	}
	if cfg.Database.DSN == "" {
		return NewExitError(ExitCommandError,
			"database DSN is required (set --db-dsn or PIXELSENDER_DATABASE__DSN)")
	}

	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create schema", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing record store", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	count, err := st.CountConversions(ctx, event.SourceTag)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count conversions", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (%s). %d conversions recorded by %s.\n",
		st.Driver(), count, event.SourceTag)
	return nil
}
