package domain

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// DurationPolicy declares how long each record is tracked, in days.
type DurationPolicy struct {
	DefaultDays int `yaml:"default_days"`
	// FinalRowDays applies to the last row of the table. Zero disables the rule.
	FinalRowDays int `yaml:"final_row_days"`
	// Overrides maps identifiers to a duration and wins over both rules above.
	Overrides map[string]int `yaml:"overrides"`
}

// DaysFor returns the run length in days for the record at index in a table
// of total rows.
func (p DurationPolicy) DaysFor(index, total int, identifier string) int {
	if d, ok := p.Overrides[identifier]; ok {
		return d
	}
	if p.FinalRowDays > 0 && index == total-1 {
		return p.FinalRowDays
	}
	return p.DefaultDays
}

// Validate reports non-positive durations.
func (p DurationPolicy) Validate() error {
	if p.DefaultDays <= 0 {
		return fmt.Errorf("default duration must be positive, got %d days", p.DefaultDays)
	}
	if p.FinalRowDays < 0 {
		return fmt.Errorf("final row duration must not be negative, got %d days", p.FinalRowDays)
	}
	for id, d := range p.Overrides {
		if d <= 0 {
			return fmt.Errorf("duration override for %s must be positive, got %d days", id, d)
		}
	}
	return nil
}

// Timesteps holds the calculation and output intervals in minutes.
type Timesteps struct {
	CalcMinutes int  `yaml:"calc_minutes"`
	SaveMinutes int  `yaml:"save_minutes"`
	Backward    bool `yaml:"backward"`
}

// Calc returns the calculation step. It is negative for backward runs.
func (t Timesteps) Calc() time.Duration {
	d := time.Duration(t.CalcMinutes) * time.Minute
	if t.Backward {
		return -d
	}
	return d
}

// Save returns the output step, always positive.
func (t Timesteps) Save() time.Duration {
	return time.Duration(t.SaveMinutes) * time.Minute
}

// Validate reports non-positive step lengths.
func (t Timesteps) Validate() error {
	if t.CalcMinutes <= 0 {
		return fmt.Errorf("calculation timestep must be positive, got %d minutes", t.CalcMinutes)
	}
	if t.SaveMinutes <= 0 {
		return fmt.Errorf("output timestep must be positive, got %d minutes", t.SaveMinutes)
	}
	return nil
}

// Days converts a whole number of days to a duration.
func Days(n int) time.Duration {
	return time.Duration(n) * day
}
