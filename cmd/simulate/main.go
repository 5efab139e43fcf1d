// Command simulate runs one backward drift simulation per row of an input
// table and writes tracking_output_tag_ID_<id>.nc files to DRIFT_OUTPUT_DIR.
//
// Usage:
//
//	simulate LocationDateForBruce.xlsx
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/drift-batch/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/drift-batch/internal/adapter/kafka"
	"github.com/couchcryptid/drift-batch/internal/adapter/opendrift"
	"github.com/couchcryptid/drift-batch/internal/adapter/table"
	"github.com/couchcryptid/drift-batch/internal/adapter/thredds"
	"github.com/couchcryptid/drift-batch/internal/batch"
	"github.com/couchcryptid/drift-batch/internal/config"
	"github.com/couchcryptid/drift-batch/internal/observability"
)

func main() {
	cmd := &cobra.Command{
		Use:           "simulate <input-table>",
		Short:         "Run a backward drift simulation for every row of a table",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0])
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("simulate failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, input string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var sink batch.ResultSink
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sink = writer
		logger.Info("publishing run results", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	var prober batch.SourceProber
	if cfg.ProbeSource {
		prober = thredds.NewClient(cfg.ProbeTimeout, metrics, logger)
	}

	runner := batch.New(
		table.NewStore(),
		opendrift.NewFactory(cfg.Python, logger),
		sink,
		prober,
		logger,
		metrics,
		batch.Options{
			OutputDir:       cfg.OutputDir,
			Settings:        cfg.Settings,
			Workers:         cfg.Workers,
			ContinueOnError: cfg.ContinueOnError,
			RunTimeout:      cfg.RunTimeout,
		},
	)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, runner, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	summary, err := runner.Run(ctx, input)
	if err != nil {
		return err
	}
	logger.Info("simulation batch complete", "batch_id", summary.BatchID, "runs", len(summary.Results))
	return nil
}
