// Package opendrift drives the OpenDrift particle tracking model as an
// external process. Each Engine accumulates the configuration calls of one
// simulation and hands them to a Python bridge script as a JSON job.
package opendrift

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/couchcryptid/drift-batch/internal/domain"
)

//go:embed bridge.py
var bridgeScript string

// CommandFunc builds the process for one run. It matches exec.CommandContext.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Factory creates Engines that run through the given Python interpreter.
// It implements domain.EngineFactory.
type Factory struct {
	python  string
	logger  *slog.Logger
	command CommandFunc
}

// NewFactory creates an engine factory. python is the interpreter with
// OpenDrift installed, e.g. "python3".
func NewFactory(python string, logger *slog.Logger) *Factory {
	return &Factory{
		python:  python,
		logger:  logger,
		command: exec.CommandContext,
	}
}

// NewEngine returns a fresh, unconfigured engine.
func (f *Factory) NewEngine(loglevel int) (domain.Engine, error) {
	if f.python == "" {
		return nil, errors.New("opendrift: no python interpreter configured")
	}
	return &Engine{
		python:  f.python,
		logger:  f.logger,
		command: f.command,
		job:     job{LogLevel: loglevel, Readers: []string{}, Config: [][2]any{}},
	}, nil
}

// Engine is a single OpenDrift simulation. It implements domain.Engine.
type Engine struct {
	python  string
	logger  *slog.Logger
	command CommandFunc
	job     job
	ran     bool
}

type job struct {
	LogLevel int      `json:"loglevel"`
	Readers  []string `json:"readers"`
	Config   [][2]any `json:"config"`
	Seeds    []seed   `json:"seeds"`
	Run      *run     `json:"run"`
}

type seed struct {
	Lon    float64 `json:"lon"`
	Lat    float64 `json:"lat"`
	Time   string  `json:"time"`
	Radius float64 `json:"radius"`
	Number int     `json:"number"`
}

type run struct {
	OutFile               string  `json:"outfile"`
	DurationSeconds       float64 `json:"duration_seconds"`
	TimeStepSeconds       float64 `json:"time_step_seconds"`
	TimeStepOutputSeconds float64 `json:"time_step_output_seconds"`
	// Classic asks the bridge to rewrite the output as netCDF classic.
	Classic bool `json:"classic"`
}

var errAlreadyRun = errors.New("opendrift: engine has already run")

func (e *Engine) AddReader(source string) error {
	if e.ran {
		return errAlreadyRun
	}
	if source == "" {
		return errors.New("opendrift: empty reader source")
	}
	e.job.Readers = append(e.job.Readers, source)
	return nil
}

func (e *Engine) SetConfig(key string, value any) error {
	if e.ran {
		return errAlreadyRun
	}
	if key == "" {
		return errors.New("opendrift: empty config key")
	}
	if _, err := json.Marshal(value); err != nil {
		return fmt.Errorf("opendrift: config %s: %w", key, err)
	}
	e.job.Config = append(e.job.Config, [2]any{key, value})
	return nil
}

func (e *Engine) Seed(s domain.Seed) error {
	if e.ran {
		return errAlreadyRun
	}
	if s.Number <= 0 {
		return fmt.Errorf("opendrift: seed number must be positive, got %d", s.Number)
	}
	e.job.Seeds = append(e.job.Seeds, seed{
		Lon:    s.Lon,
		Lat:    s.Lat,
		Time:   s.Time.UTC().Format(domain.StartTimeLayout),
		Radius: s.RadiusMeters,
		Number: s.Number,
	})
	return nil
}

// Run executes the bridge and blocks until it exits. Cancelling ctx kills
// the process.
func (e *Engine) Run(ctx context.Context, p domain.RunParams) error {
	if e.ran {
		return errAlreadyRun
	}
	e.ran = true
	if len(e.job.Seeds) == 0 {
		return errors.New("opendrift: no particles seeded")
	}
	if p.OutputFile == "" {
		return errors.New("opendrift: no output file")
	}
	e.job.Run = &run{
		OutFile:               p.OutputFile,
		DurationSeconds:       p.Duration.Seconds(),
		TimeStepSeconds:       p.TimeStep.Seconds(),
		TimeStepOutputSeconds: p.OutputTimeStep.Seconds(),
		Classic:               true,
	}

	payload, err := json.Marshal(e.job)
	if err != nil {
		return fmt.Errorf("opendrift: encode job: %w", err)
	}

	stderr := newTailBuffer(4096)
	cmd := e.command(ctx, e.python, "-c", bridgeScript)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &logWriter{logger: e.logger, outfile: p.OutputFile}
	cmd.Stderr = stderr

	e.logger.Debug("starting opendrift", "python", e.python, "outfile", p.OutputFile)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("opendrift: %w", ctx.Err())
		}
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			return fmt.Errorf("opendrift: %w: %s", err, tail)
		}
		return fmt.Errorf("opendrift: %w", err)
	}
	return nil
}
