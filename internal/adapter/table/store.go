// Package table reads and writes input and output tables as Excel workbooks
// or CSV files, chosen by file extension.
package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/drift-batch/internal/domain"
)

// Store loads and saves tables.
// It implements batch.TableReader and merge.TableStore.
type Store struct {
	// Sheet is the worksheet written to new workbooks and read from existing
	// ones. Empty means the first sheet on read and "Sheet1" on write.
	Sheet string
}

// NewStore creates a Store that uses each workbook's first sheet.
func NewStore() *Store { return &Store{} }

type format int

const (
	formatXLSX format = iota
	formatCSV
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return formatXLSX, nil
	case ".csv":
		return formatCSV, nil
	default:
		return 0, fmt.Errorf("unsupported table format %q (want .xlsx or .csv)", filepath.Ext(path))
	}
}

// Read loads the table at path. The first row is the header.
func (s *Store) Read(path string) (*domain.Table, error) {
	fmtKind, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	switch fmtKind {
	case formatCSV:
		rows, err = readCSV(path)
	default:
		rows, err = s.readXLSX(path)
	}
	if err != nil {
		return nil, err
	}
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return nil, &domain.ParseError{Row: -1, Column: "", Err: fmt.Errorf("table %s has no header row", path)}
	}
	return domain.NewTable(rows[0], rows[1:]), nil
}

// Write saves t to path, replacing any existing file.
func (s *Store) Write(path string, t *domain.Table) error {
	fmtKind, err := formatOf(path)
	if err != nil {
		return err
	}
	if fmtKind == formatCSV {
		return writeCSV(path, t)
	}
	return s.writeXLSX(path, t)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	return rows, nil
}

func writeCSV(path string, t *domain.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		f.Close()
		return fmt.Errorf("write csv rows: %w", err)
	}
	return f.Close()
}

func (s *Store) readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}
	if err := normalizeDates(f, sheet, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) writeXLSX(path string, t *domain.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if s.Sheet != "" && s.Sheet != sheet {
		if err := f.SetSheetName(sheet, s.Sheet); err != nil {
			return fmt.Errorf("name sheet: %w", err)
		}
		sheet = s.Sheet
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for r, row := range t.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// cellValue stores canonical numbers as numeric cells and everything else,
// including zero-padded identifiers, as text.
func cellValue(v string) any {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || strconv.FormatFloat(n, 'f', -1, 64) != v {
		return v
	}
	return n
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
