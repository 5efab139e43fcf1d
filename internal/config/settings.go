package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/drift-batch/internal/domain"
)

// DefaultReaderURL is the UCSC THREDDS aggregation of the CCSRA 2016a
// physical ROMS reanalysis on z-levels.
const DefaultReaderURL = "https://oceanmodeling.ucsc.edu/thredds/dodsC/ccsra_2016a_phys_agg_zlevs/fmrc/CCSRA_2016a_Phys_ROMS_z-level_(depth)_Aggregation_best.ncd"

// Settings is the declared simulation and merge policy. Defaults come from
// DefaultSettings; a YAML file may override any subset of fields.
type Settings struct {
	Columns    domain.ColumnMap      `yaml:"columns"`
	TimeLayout string                `yaml:"time_layout"`
	Durations  domain.DurationPolicy `yaml:"durations"`
	Timesteps  domain.Timesteps      `yaml:"timesteps"`
	Seed       SeedSettings          `yaml:"seed"`
	Engine     EngineSettings        `yaml:"engine"`
	Merge      MergeSettings         `yaml:"merge"`
}

// SeedSettings controls the particle cloud released for every record.
type SeedSettings struct {
	Number       int     `yaml:"number"`
	RadiusMeters float64 `yaml:"radius_meters"`
}

// EngineSettings configures each engine instance.
type EngineSettings struct {
	LogLevel  int            `yaml:"loglevel"`
	ReaderURL string         `yaml:"reader_url"`
	Options   map[string]any `yaml:"options"`
}

// MergeSettings names and places the coordinate columns added by the merger.
type MergeSettings struct {
	LatitudeColumn  string `yaml:"latitude_column"`
	LatitudeIndex   int    `yaml:"latitude_index"`
	LongitudeColumn string `yaml:"longitude_column"`
	LongitudeIndex  int    `yaml:"longitude_index"`
}

// DefaultSettings returns the policy used when no settings file is given.
func DefaultSettings() Settings {
	return Settings{
		Columns: domain.ColumnMap{
			Identifier: "TagID",
			StartTime:  "Date To Start Backtracking",
			Latitude:   "Latitude",
			Longitude:  "Longitude",
		},
		TimeLayout: domain.StartTimeLayout,
		Durations: domain.DurationPolicy{
			DefaultDays:  21,
			FinalRowDays: 300,
		},
		Timesteps: domain.Timesteps{
			CalcMinutes: 60,
			SaveMinutes: 60,
			Backward:    true,
		},
		Seed: SeedSettings{
			Number:       5000,
			RadiusMeters: 1000,
		},
		Engine: EngineSettings{
			LogLevel:  20,
			ReaderURL: DefaultReaderURL,
			// "previous" moves stranded particles back to their last wet position.
			Options: map[string]any{"general:coastline_action": "previous"},
		},
		Merge: MergeSettings{
			LatitudeColumn:  "Initial Latitude",
			LatitudeIndex:   4,
			LongitudeColumn: "Initial Longitude",
			LongitudeIndex:  5,
		},
	}
}

// LoadSettings returns DefaultSettings overlaid with the YAML file at path.
// An empty path returns the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read DRIFT_SETTINGS_FILE: %w", err)
	}
	if err := s.decode(data); err != nil {
		return Settings{}, fmt.Errorf("parse DRIFT_SETTINGS_FILE %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid DRIFT_SETTINGS_FILE %s: %w", path, err)
	}
	return s, nil
}

func (s *Settings) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the settings for values no run could use.
func (s Settings) Validate() error {
	c := s.Columns
	if c.Identifier == "" || c.StartTime == "" || c.Latitude == "" || c.Longitude == "" {
		return errors.New("all four input columns must be named")
	}
	if err := s.Durations.Validate(); err != nil {
		return err
	}
	if err := s.Timesteps.Validate(); err != nil {
		return err
	}
	if s.Seed.Number <= 0 {
		return fmt.Errorf("seed number must be positive, got %d", s.Seed.Number)
	}
	if s.Seed.RadiusMeters < 0 {
		return fmt.Errorf("seed radius must not be negative, got %g", s.Seed.RadiusMeters)
	}
	if s.Engine.ReaderURL == "" {
		return errors.New("engine reader_url is required")
	}
	m := s.Merge
	if m.LatitudeColumn == "" || m.LongitudeColumn == "" {
		return errors.New("merge column names are required")
	}
	if m.LatitudeColumn == m.LongitudeColumn {
		return errors.New("merge column names must differ")
	}
	if m.LatitudeIndex < 0 || m.LongitudeIndex < 0 {
		return errors.New("merge column indexes must not be negative")
	}
	return nil
}
