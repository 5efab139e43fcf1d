// Package synthetic is an offline stand-in for the drift engine. It writes
// straight-line trajectories so the merge stage can be exercised without
// ocean forcing data.
package synthetic

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/drift-batch/internal/adapter/netcdf"
	"github.com/couchcryptid/drift-batch/internal/domain"
)

// Velocity is the constant drift applied to every particle, in degrees per
// hour of simulated time.
type Velocity struct {
	DLatPerHour float64
	DLonPerHour float64
}

// Factory builds synthetic engines.
type Factory struct {
	// Particles caps the number of particles written per file. Zero keeps
	// the seeded number.
	Particles int
	Velocity  Velocity
}

// NewEngine ignores loglevel.
func (f *Factory) NewEngine(_ int) (domain.Engine, error) {
	return &Engine{particles: f.Particles, velocity: f.Velocity}, nil
}

// Engine records its configuration and writes a trajectory grid on Run.
type Engine struct {
	particles int
	velocity  Velocity

	readers []string
	config  map[string]any
	seed    *domain.Seed
	ran     bool
}

func (e *Engine) AddReader(source string) error {
	e.readers = append(e.readers, source)
	return nil
}

func (e *Engine) SetConfig(key string, value any) error {
	if e.config == nil {
		e.config = make(map[string]any)
	}
	e.config[key] = value
	return nil
}

func (e *Engine) Seed(s domain.Seed) error {
	if s.Number <= 0 {
		return fmt.Errorf("seed needs at least one particle, got %d", s.Number)
	}
	e.seed = &s
	return nil
}

// Run writes one output step per OutputTimeStep across Duration. Particles
// are spread evenly on a circle of the seed radius and each moves with the
// factory velocity, reversed when the calculation step is negative.
func (e *Engine) Run(ctx context.Context, p domain.RunParams) error {
	if e.ran {
		return errors.New("engine already ran")
	}
	e.ran = true
	if e.seed == nil {
		return errors.New("run before seed")
	}
	if p.OutputTimeStep <= 0 {
		return fmt.Errorf("output timestep must be positive, got %s", p.OutputTimeStep)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	particles := e.seed.Number
	if e.particles > 0 && e.particles < particles {
		particles = e.particles
	}
	steps := int(p.Duration/p.OutputTimeStep) + 1
	hoursPerStep := p.OutputTimeStep.Hours()
	sign := 1.0
	if p.TimeStep < 0 {
		sign = -1
	}

	// Radius in degrees of latitude; 111.32 km per degree.
	radius := e.seed.RadiusMeters / 111320
	g := netcdf.Grid{
		Particles: particles,
		Steps:     steps,
		Lon:       make([]float32, particles*steps),
		Lat:       make([]float32, particles*steps),
	}
	for i := range particles {
		theta := 2 * math.Pi * float64(i) / float64(particles)
		lat0 := e.seed.Lat + radius*math.Sin(theta)
		lon0 := e.seed.Lon + radius*math.Cos(theta)
		for s := range steps {
			h := sign * hoursPerStep * float64(s)
			g.Lat[i*steps+s] = float32(lat0 + e.velocity.DLatPerHour*h)
			g.Lon[i*steps+s] = float32(lon0 + e.velocity.DLonPerHour*h)
		}
	}
	return netcdf.Write(p.OutputFile, g)
}
