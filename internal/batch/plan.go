package batch

import (
	"path/filepath"
	"sort"

	"github.com/couchcryptid/drift-batch/internal/config"
	"github.com/couchcryptid/drift-batch/internal/domain"
)

// Job is one fully resolved simulation: every engine call argument is fixed
// before the engine is constructed.
type Job struct {
	Record       domain.Record
	DurationDays int
	Reader       string
	Options      []Option
	Seed         domain.Seed
	Params       domain.RunParams
	LogLevel     int
}

// Option is a single engine configuration setting.
type Option struct {
	Key   string
	Value any
}

// Plan resolves one Job per record. Records must be in table order; the
// duration policy sees the table length as len(records).
func Plan(records []domain.Record, outputDir string, s config.Settings) []Job {
	opts := sortedOptions(s.Engine.Options)
	jobs := make([]Job, len(records))
	for i, rec := range records {
		days := s.Durations.DaysFor(i, len(records), rec.Identifier)
		jobs[i] = Job{
			Record:       rec,
			DurationDays: days,
			Reader:       s.Engine.ReaderURL,
			Options:      opts,
			LogLevel:     s.Engine.LogLevel,
			Seed: domain.Seed{
				Lon:          rec.Longitude,
				Lat:          rec.Latitude,
				Time:         rec.StartTime,
				RadiusMeters: s.Seed.RadiusMeters,
				Number:       s.Seed.Number,
			},
			Params: domain.RunParams{
				Duration:       domain.Days(days),
				OutputFile:     filepath.Join(outputDir, domain.OutputFileName(rec.Identifier)),
				TimeStep:       s.Timesteps.Calc(),
				OutputTimeStep: s.Timesteps.Save(),
			},
		}
	}
	return jobs
}

// sortedOptions orders engine options by key so every run applies them identically.
func sortedOptions(m map[string]any) []Option {
	out := make([]Option, 0, len(m))
	for k, v := range m {
		out = append(out, Option{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
