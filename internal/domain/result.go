package domain

import "time"

// RunResult is the outcome of one record's simulation.
type RunResult struct {
	BatchID      string        `json:"batch_id"`
	Row          int           `json:"row"`
	Identifier   string        `json:"identifier"`
	OutputFile   string        `json:"output_file"`
	DurationDays int           `json:"duration_days"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Elapsed      time.Duration `json:"elapsed_ns"`
	Error        string        `json:"error,omitempty"`
}

// Succeeded reports whether the run finished without error.
func (r RunResult) Succeeded() bool { return r.Error == "" }

// Progress summarizes a batch in flight.
type Progress struct {
	BatchID   string `json:"batch_id"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Running   int    `json:"running"`
}
