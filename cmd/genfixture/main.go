// Command genfixture writes a synthetic simulation output directory for an
// input table. Each row gets a straight-line trajectory file named exactly as
// the real engine would name it, so the merge stage can run offline.
//
// Usage:
//
//	genfixture --particles 10 testdata/tags.csv
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/drift-batch/internal/adapter/synthetic"
	"github.com/couchcryptid/drift-batch/internal/adapter/table"
	"github.com/couchcryptid/drift-batch/internal/batch"
	"github.com/couchcryptid/drift-batch/internal/config"
	"github.com/couchcryptid/drift-batch/internal/observability"
)

func main() {
	var (
		outputDir string
		factory   synthetic.Factory
	)
	cmd := &cobra.Command{
		Use:           "genfixture <input-table>",
		Short:         "Write synthetic drift output files for every row of a table",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], outputDir, &factory)
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory (default DRIFT_OUTPUT_DIR)")
	cmd.Flags().IntVar(&factory.Particles, "particles", 10, "particles per file, 0 keeps the seeded number")
	cmd.Flags().Float64Var(&factory.Velocity.DLatPerHour, "dlat", 0.002, "latitude drift in degrees per hour")
	cmd.Flags().Float64Var(&factory.Velocity.DLonPerHour, "dlon", -0.003, "longitude drift in degrees per hour")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("genfixture failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, input, outputDir string, factory *synthetic.Factory) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}
	logger := observability.NewLogger(cfg)

	runner := batch.New(table.NewStore(), factory, nil, nil, logger, observability.NewUnregisteredMetrics(), batch.Options{
		OutputDir: outputDir,
		Settings:  cfg.Settings,
		Workers:   cfg.Workers,
	})
	summary, err := runner.Run(ctx, input)
	if err != nil {
		return err
	}
	logger.Info("fixtures written", "files", len(summary.Results), "output_dir", outputDir)
	return nil
}
