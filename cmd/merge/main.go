// Command merge appends the terminal position of every simulation output file
// to the input table as "Initial Latitude" and "Initial Longitude" columns.
// Paths come from MERGE_INPUT, MERGE_OUTPUT and DRIFT_OUTPUT_DIR.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/drift-batch/internal/adapter/netcdf"
	"github.com/couchcryptid/drift-batch/internal/adapter/table"
	"github.com/couchcryptid/drift-batch/internal/config"
	"github.com/couchcryptid/drift-batch/internal/merge"
	"github.com/couchcryptid/drift-batch/internal/observability"
)

func main() {
	cmd := &cobra.Command{
		Use:           "merge",
		Short:         "Merge terminal particle positions into the input table",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("merge failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)

	m := merge.New(table.NewStore(), netcdf.NewReader(), logger, observability.NewMetrics(), merge.Options{
		OutputDir:        cfg.OutputDir,
		Join:             cfg.MergeJoin,
		SkipFill:         cfg.MergeSkipFill,
		IdentifierColumn: cfg.Settings.Columns.Identifier,
		Columns:          cfg.Settings.Merge,
	})
	_, err = m.Merge(ctx, cfg.MergeInput, cfg.MergeOutput)
	return err
}
