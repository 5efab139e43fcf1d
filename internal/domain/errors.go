package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyTrajectory is returned when a coordinate array holds no usable values.
var ErrEmptyTrajectory = errors.New("empty trajectory")

// ParseError reports a malformed input table cell. Row is the 0-based data
// row, or -1 when the problem is with the table layout itself.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("parse input table: column %q: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("parse input table: row %d, column %q, value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SimulationError reports a failed engine run for one record.
type SimulationError struct {
	Row        int
	Identifier string
	Err        error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulate row %d (identifier %s): %v", e.Row, e.Identifier, e.Err)
}

func (e *SimulationError) Unwrap() error { return e.Err }

// MismatchError reports that output files cannot be paired with table rows.
type MismatchError struct {
	Rows  int
	Files int
	// Missing lists identifiers with a table row but no output file.
	Missing []string
	// Unexpected lists identifiers with an output file but no table row.
	Unexpected []string
	// Duplicates lists identifiers that appear on more than one table row.
	Duplicates []string
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "output files do not match input table: %d rows, %d files", e.Rows, e.Files)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing output for %s", strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		fmt.Fprintf(&b, "; no table row for %s", strings.Join(e.Unexpected, ", "))
	}
	if len(e.Duplicates) > 0 {
		fmt.Fprintf(&b, "; duplicate table rows for %s", strings.Join(e.Duplicates, ", "))
	}
	return b.String()
}
