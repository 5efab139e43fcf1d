package domain

import (
	"context"
	"time"
)

// Seed describes a cloud of virtual particles released around a point.
type Seed struct {
	Lon          float64
	Lat          float64
	Time         time.Time
	RadiusMeters float64
	Number       int
}

// RunParams are the arguments of a single engine run.
type RunParams struct {
	Duration       time.Duration
	OutputFile     string
	TimeStep       time.Duration
	OutputTimeStep time.Duration
}

// Engine is the external drift simulation engine. An Engine is configured
// by the calls below, in order, and then run exactly once.
type Engine interface {
	// AddReader attaches a forcing data source, typically an OPeNDAP URL.
	AddReader(source string) error

	// SetConfig sets one named engine option, e.g. "general:coastline_action".
	SetConfig(key string, value any) error

	// Seed releases a particle cloud.
	Seed(s Seed) error

	// Run integrates the particles and writes the output file. It blocks
	// until the engine finishes or ctx is done.
	Run(ctx context.Context, p RunParams) error
}

// EngineFactory constructs a fresh Engine with the given log verbosity.
// Engines are never shared between runs.
type EngineFactory interface {
	NewEngine(loglevel int) (Engine, error)
}

// EngineFactoryFunc adapts a function to EngineFactory.
type EngineFactoryFunc func(loglevel int) (Engine, error)

func (f EngineFactoryFunc) NewEngine(loglevel int) (Engine, error) { return f(loglevel) }
