// Package batch runs one drift simulation per input table row.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/drift-batch/internal/config"
	"github.com/couchcryptid/drift-batch/internal/domain"
	"github.com/couchcryptid/drift-batch/internal/observability"
)

// TableReader loads the input table.
type TableReader interface {
	Read(path string) (*domain.Table, error)
}

// ResultSink receives the outcome of every run.
type ResultSink interface {
	Publish(ctx context.Context, result domain.RunResult) error
}

// SourceProber checks that the forcing data source is reachable.
type SourceProber interface {
	Probe(ctx context.Context, source string) error
}

// Options tune how a batch executes.
type Options struct {
	OutputDir string
	Settings  config.Settings
	// Workers is the number of concurrent runs. 1 runs rows strictly in order.
	Workers int
	// ContinueOnError isolates failures: remaining rows still run and all
	// failures are returned together at the end.
	ContinueOnError bool
	// RunTimeout bounds each engine run. Zero means no limit.
	RunTimeout time.Duration
}

// Summary describes a finished batch.
type Summary struct {
	BatchID string
	// Results holds one entry per row that ran, in table order.
	Results []domain.RunResult
}

// Failed returns the results of runs that did not complete.
func (s Summary) Failed() []domain.RunResult {
	var out []domain.RunResult
	for _, r := range s.Results {
		if !r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

// Runner orchestrates the read-plan-simulate loop.
type Runner struct {
	tables  TableReader
	engines domain.EngineFactory
	sink    ResultSink
	prober  SourceProber
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	newID   func() string

	ready    atomic.Bool
	mu       sync.Mutex
	progress domain.Progress
}

// New creates a Runner. sink and prober may be nil.
func New(tables TableReader, engines domain.EngineFactory, sink ResultSink, prober SourceProber,
	logger *slog.Logger, metrics *observability.Metrics, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{
		tables:  tables,
		engines: engines,
		sink:    sink,
		prober:  prober,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		newID:   uuid.NewString,
	}
}

// CheckReadiness returns nil once at least one run has written its output.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no simulation run has completed yet")
	}
	return nil
}

// Progress returns a snapshot of the current batch.
func (r *Runner) Progress() domain.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Run reads the input table at path and simulates every row. Input parsing
// failures abort before any engine starts.
func (r *Runner) Run(ctx context.Context, path string) (Summary, error) {
	table, err := r.tables.Read(path)
	if err != nil {
		return Summary{}, fmt.Errorf("read input table: %w", err)
	}
	records, err := table.Records(r.opts.Settings.Columns, r.opts.Settings.TimeLayout)
	if err != nil {
		return Summary{}, err
	}

	outDir, err := filepath.Abs(r.opts.OutputDir)
	if err != nil {
		return Summary{}, fmt.Errorf("resolve output directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output directory: %w", err)
	}

	if r.prober != nil {
		if err := r.prober.Probe(ctx, r.opts.Settings.Engine.ReaderURL); err != nil {
			return Summary{}, err
		}
	}

	jobs := Plan(records, outDir, r.opts.Settings)
	summary := Summary{BatchID: r.newID()}

	r.mu.Lock()
	r.progress = domain.Progress{BatchID: summary.BatchID, Total: len(jobs)}
	r.mu.Unlock()

	r.logger.Info("batch started",
		"batch_id", summary.BatchID,
		"rows", len(jobs),
		"output_dir", outDir,
		"workers", r.opts.Workers,
		"continue_on_error", r.opts.ContinueOnError,
	)
	r.metrics.BatchRunning.Set(1)
	defer r.metrics.BatchRunning.Set(0)

	start := domain.Now()
	results := make([]domain.RunResult, len(jobs))
	ran := make([]bool, len(jobs))
	err = r.execute(ctx, summary.BatchID, jobs, results, ran)
	// Rows skipped after a halt or cancellation are left out.
	for i, res := range results {
		if ran[i] {
			summary.Results = append(summary.Results, res)
		}
	}

	failed := len(summary.Failed())
	r.logger.Info("batch finished",
		"batch_id", summary.BatchID,
		"rows", len(jobs),
		"ran", len(summary.Results),
		"failed", failed,
		"elapsed", domain.Since(start),
	)
	return summary, err
}

// execute runs jobs, storing each outcome in results and marking its slot in
// ran. Slots of rows that never started stay unmarked.
func (r *Runner) execute(ctx context.Context, batchID string, jobs []Job, results []domain.RunResult, ran []bool) error {
	if r.opts.Workers == 1 {
		var errs []error
		for i, job := range jobs {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			var err error
			results[i], err = r.runOne(ctx, batchID, job)
			ran[i] = true
			if err != nil {
				if !r.opts.ContinueOnError {
					return err
				}
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	var (
		mu   sync.Mutex
		errs []error
	)
	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			var err error
			results[i], err = r.runOne(gctx, batchID, job)
			ran[i] = true
			if err == nil {
				return nil
			}
			if !r.opts.ContinueOnError {
				return err
			}
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// runOne constructs a fresh engine for job, runs it, and records the outcome.
// A failed run returns a *domain.SimulationError alongside its result.
func (r *Runner) runOne(ctx context.Context, batchID string, job Job) (domain.RunResult, error) {
	res := domain.RunResult{
		BatchID:      batchID,
		Row:          job.Record.Index,
		Identifier:   job.Record.Identifier,
		OutputFile:   job.Params.OutputFile,
		DurationDays: job.DurationDays,
		StartedAt:    domain.Now(),
	}
	logger := r.logger.With("row", job.Record.Index, "identifier", job.Record.Identifier)

	r.track(func(p *domain.Progress) { p.Running++ })
	r.metrics.RunsStarted.Inc()
	r.metrics.RunsInFlight.Inc()
	logger.Info("simulation started",
		"start_time", job.Seed.Time,
		"lat", job.Seed.Lat,
		"lon", job.Seed.Lon,
		"duration_days", job.DurationDays,
		"outfile", job.Params.OutputFile,
	)

	err := r.simulate(ctx, job)

	r.metrics.RunsInFlight.Dec()
	res.FinishedAt = domain.Now()
	res.Elapsed = res.FinishedAt.Sub(res.StartedAt)
	r.metrics.RunDuration.Observe(res.Elapsed.Seconds())

	if err != nil {
		res.Error = err.Error()
		r.metrics.RunFailures.Inc()
		r.track(func(p *domain.Progress) { p.Running--; p.Failed++ })
		logger.Error("simulation failed", "error", err, "elapsed", res.Elapsed)
	} else {
		r.metrics.RunsCompleted.Inc()
		r.ready.Store(true)
		r.track(func(p *domain.Progress) { p.Running--; p.Completed++ })
		logger.Info("simulation finished", "elapsed", res.Elapsed)
	}

	r.publish(ctx, logger, res)
	if err != nil {
		return res, &domain.SimulationError{Row: job.Record.Index, Identifier: job.Record.Identifier, Err: err}
	}
	return res, nil
}

func (r *Runner) simulate(ctx context.Context, job Job) error {
	engine, err := r.engines.NewEngine(job.LogLevel)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	if err := engine.AddReader(job.Reader); err != nil {
		return fmt.Errorf("add reader: %w", err)
	}
	for _, o := range job.Options {
		if err := engine.SetConfig(o.Key, o.Value); err != nil {
			return fmt.Errorf("set config %s: %w", o.Key, err)
		}
	}
	if err := engine.Seed(job.Seed); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	if r.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.RunTimeout)
		defer cancel()
	}
	return engine.Run(ctx, job.Params)
}

// publish hands the result to the sink. Sink failures never fail the run.
func (r *Runner) publish(ctx context.Context, logger *slog.Logger, res domain.RunResult) {
	if r.sink == nil {
		return
	}
	// A cancelled batch still reports the runs it finished.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.sink.Publish(pubCtx, res); err != nil {
		logger.Warn("publish run result failed", "error", err)
	}
}

func (r *Runner) track(update func(*domain.Progress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(&r.progress)
}
