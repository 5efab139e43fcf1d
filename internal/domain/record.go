package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	// StartTimeLayout is the textual start time format used by input tables.
	StartTimeLayout = "2006-01-02 15:04:05"

	outputFilePrefix = "tracking_output_tag_ID_"
	outputFileSuffix = ".nc"
)

// OutputFileGlob matches every file written by a simulation batch.
const OutputFileGlob = outputFilePrefix + "*" + outputFileSuffix

// Record is one row of the input table: a tagged organism and where and when
// to start tracking it backwards from.
type Record struct {
	Index      int
	Identifier string
	StartTime  time.Time
	Latitude   float64
	Longitude  float64
}

// ColumnMap names the input table columns holding each record field.
type ColumnMap struct {
	Identifier string `yaml:"identifier"`
	StartTime  string `yaml:"start_time"`
	Latitude   string `yaml:"latitude"`
	Longitude  string `yaml:"longitude"`
}

// OutputFileName returns the deterministic output file name for an identifier.
func OutputFileName(identifier string) string {
	return outputFilePrefix + identifier + outputFileSuffix
}

// IdentifierFromFileName extracts the identifier from an output file name or
// path. The second return value is false if the name does not follow the
// output naming convention.
func IdentifierFromFileName(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, outputFilePrefix) || !strings.HasSuffix(base, outputFileSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(base, outputFilePrefix), outputFileSuffix)
	if id == "" {
		return "", false
	}
	return id, true
}

// ParseStartTime parses a start time using layout, falling back to an Excel
// date serial when the value is numeric. Times are UTC.
func ParseStartTime(raw, layout string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if layout == "" {
		layout = StartTimeLayout
	}
	t, err := time.ParseInLocation(layout, raw, time.UTC)
	if err == nil {
		return t, nil
	}
	serial, serr := strconv.ParseFloat(raw, 64)
	if serr != nil || serial <= 0 {
		return time.Time{}, err
	}
	st, serr := excelize.ExcelDateToTime(serial, false)
	if serr != nil {
		return time.Time{}, err
	}
	// Serials carry sub-second float noise; the text format has second precision.
	return st.UTC().Round(time.Second), nil
}

// Records extracts one Record per table row using the given column mapping.
// Every failure is a *ParseError carrying the row and column.
func (t *Table) Records(cols ColumnMap, layout string) ([]Record, error) {
	idCol, err := t.requireColumn(cols.Identifier)
	if err != nil {
		return nil, err
	}
	timeCol, err := t.requireColumn(cols.StartTime)
	if err != nil {
		return nil, err
	}
	latCol, err := t.requireColumn(cols.Latitude)
	if err != nil {
		return nil, err
	}
	lonCol, err := t.requireColumn(cols.Longitude)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(t.Rows))
	seen := make(map[string]int, len(t.Rows))
	for i, row := range t.Rows {
		id := strings.TrimSpace(row[idCol])
		if id == "" {
			return nil, &ParseError{Row: i, Column: cols.Identifier, Err: fmt.Errorf("empty identifier")}
		}
		// The identifier becomes part of an output file name.
		if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
			return nil, &ParseError{Row: i, Column: cols.Identifier, Value: id,
				Err: fmt.Errorf("identifier must not contain path separators or \"..\"")}
		}
		if prev, ok := seen[id]; ok {
			return nil, &ParseError{Row: i, Column: cols.Identifier, Value: id,
				Err: fmt.Errorf("duplicate identifier (first seen in row %d)", prev)}
		}
		seen[id] = i

		start, err := ParseStartTime(row[timeCol], layout)
		if err != nil {
			return nil, &ParseError{Row: i, Column: cols.StartTime, Value: row[timeCol], Err: err}
		}
		lat, err := parseCoordinate(row[latCol], -90, 90)
		if err != nil {
			return nil, &ParseError{Row: i, Column: cols.Latitude, Value: row[latCol], Err: err}
		}
		lon, err := parseCoordinate(row[lonCol], -360, 360)
		if err != nil {
			return nil, &ParseError{Row: i, Column: cols.Longitude, Value: row[lonCol], Err: err}
		}

		records = append(records, Record{
			Index:      i,
			Identifier: id,
			StartTime:  start,
			Latitude:   lat,
			Longitude:  lon,
		})
	}
	return records, nil
}

func (t *Table) requireColumn(name string) (int, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return -1, &ParseError{Row: -1, Column: name, Err: fmt.Errorf("column not found")}
	}
	return idx, nil
}

func parseCoordinate(s string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("coordinate %g outside [%g, %g]", v, lo, hi)
	}
	return v, nil
}
