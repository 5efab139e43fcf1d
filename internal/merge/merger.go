// Package merge joins terminal particle positions from simulation output
// files back onto the input table.
package merge

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/drift-batch/internal/config"
	"github.com/couchcryptid/drift-batch/internal/domain"
	"github.com/couchcryptid/drift-batch/internal/observability"
)

// TableStore reads the input table and writes the merged one.
type TableStore interface {
	Read(path string) (*domain.Table, error)
	Write(path string, t *domain.Table) error
}

// TrajectoryReader loads the coordinate arrays of one output file.
type TrajectoryReader interface {
	ReadTrajectory(path string) (domain.Trajectory, error)
}

// Options tune how rows are paired with output files.
type Options struct {
	OutputDir string
	Join      domain.JoinMode
	// SkipFill ignores trailing elements equal to the arrays' _FillValue.
	SkipFill bool
	// IdentifierColumn names the table column used by identifier and
	// sorted-position joins.
	IdentifierColumn string
	Columns          config.MergeSettings
}

// Merger implements the result merge stage.
type Merger struct {
	tables       TableStore
	trajectories TrajectoryReader
	logger       *slog.Logger
	metrics      *observability.Metrics
	opts         Options
}

// New creates a Merger. An empty join mode means JoinByIdentifier.
func New(tables TableStore, trajectories TrajectoryReader, logger *slog.Logger,
	metrics *observability.Metrics, opts Options) *Merger {
	if opts.Join == "" {
		opts.Join = domain.JoinByIdentifier
	}
	return &Merger{
		tables:       tables,
		trajectories: trajectories,
		logger:       logger,
		metrics:      metrics,
		opts:         opts,
	}
}

// Join reports the join mode in effect after defaulting.
func (m *Merger) Join() domain.JoinMode { return m.opts.Join }

// Merge reads the table at inputPath, pairs every row with an output file,
// and writes the table with the terminal latitude and longitude columns
// inserted to outputPath. The input file is never modified.
func (m *Merger) Merge(ctx context.Context, inputPath, outputPath string) (*domain.Table, error) {
	tbl, files, err := m.load(inputPath)
	if err != nil {
		return nil, err
	}
	paths, err := m.pair(tbl, files)
	if err != nil {
		return nil, err
	}

	lats := make([]string, len(paths))
	lons := make([]string, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pos, err := m.terminal(path)
		if err != nil {
			return nil, err
		}
		lats[i] = pos.FormatLat()
		lons[i] = pos.FormatLon()
	}

	out := tbl.Clone()
	c := m.opts.Columns
	if err := out.InsertColumn(c.LatitudeIndex, c.LatitudeColumn, lats); err != nil {
		return nil, err
	}
	if err := out.InsertColumn(c.LongitudeIndex, c.LongitudeColumn, lons); err != nil {
		return nil, err
	}
	if err := m.tables.Write(outputPath, out); err != nil {
		return nil, fmt.Errorf("write merged table: %w", err)
	}

	m.metrics.RowsMerged.Add(float64(out.Len()))
	m.logger.Info("merge finished",
		"input", inputPath,
		"output", outputPath,
		"rows", out.Len(),
		"join", m.opts.Join,
	)
	return out, nil
}

// Validate checks that every row has a readable, non-empty output file under
// the configured join mode. It writes nothing. All problems found are
// returned together.
func (m *Merger) Validate(ctx context.Context, inputPath string) error {
	tbl, files, err := m.load(inputPath)
	if err != nil {
		return err
	}
	paths, err := m.pair(tbl, files)
	if err != nil {
		return err
	}

	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if _, err := m.terminal(path); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		m.logger.Info("output directory valid", "input", inputPath, "files", len(paths))
	}
	return errors.Join(errs...)
}

func (m *Merger) load(inputPath string) (*domain.Table, []string, error) {
	tbl, err := m.tables.Read(inputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read input table: %w", err)
	}
	files, err := ListOutputs(m.opts.OutputDir)
	if err != nil {
		return nil, nil, err
	}
	m.logger.Debug("merge inputs loaded", "rows", tbl.Len(), "files", len(files))
	return tbl, files, nil
}

// pair returns the output file path for each table row. For sorted-position
// joins the table is reordered in place first.
func (m *Merger) pair(tbl *domain.Table, files []string) ([]string, error) {
	var (
		paths []string
		err   error
	)
	switch m.opts.Join {
	case domain.JoinBySortedPosition:
		sorted, serr := tbl.SortedBy(m.opts.IdentifierColumn)
		if serr != nil {
			return nil, serr
		}
		*tbl = *sorted
		paths, err = PairByPosition(tbl, SortByIdentifier(files))
	case domain.JoinByPosition:
		paths, err = PairByPosition(tbl, files)
	default:
		paths, err = PairByIdentifier(tbl, m.opts.IdentifierColumn, files)
	}

	var mismatch *domain.MismatchError
	if errors.As(err, &mismatch) {
		m.metrics.MergeMismatches.Inc()
	}
	return paths, err
}

func (m *Merger) terminal(path string) (domain.Position, error) {
	tr, err := m.trajectories.ReadTrajectory(path)
	if err != nil {
		m.metrics.FilesRead.WithLabelValues("error").Inc()
		return domain.Position{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	pos, err := tr.Terminal(m.opts.SkipFill)
	if err != nil {
		m.metrics.FilesRead.WithLabelValues("error").Inc()
		return domain.Position{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	m.metrics.FilesRead.WithLabelValues("success").Inc()
	return pos, nil
}

// ListOutputs returns the simulation output files in dir in lexicographic order.
func ListOutputs(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, domain.OutputFileGlob))
	if err != nil {
		return nil, fmt.Errorf("list output files: %w", err)
	}
	slices.Sort(files)
	return files, nil
}

// SortByIdentifier orders output files by the identifier embedded in their
// names, using the same string comparison as Table.SortedBy. Sorting by the
// full file name differs whenever an identifier is a prefix of another
// ("A1" and "A1-b") because the extension takes part in the comparison.
func SortByIdentifier(files []string) []string {
	out := slices.Clone(files)
	slices.SortStableFunc(out, func(a, b string) int {
		return cmp.Compare(fileIdentifier(a), fileIdentifier(b))
	})
	return out
}

func fileIdentifier(path string) string {
	if id, ok := domain.IdentifierFromFileName(path); ok {
		return id
	}
	return filepath.Base(path)
}

// PairByPosition pairs the i-th row with the i-th file.
func PairByPosition(tbl *domain.Table, files []string) ([]string, error) {
	if tbl.Len() != len(files) {
		return nil, &domain.MismatchError{Rows: tbl.Len(), Files: len(files)}
	}
	return slices.Clone(files), nil
}

// PairByIdentifier pairs every row with the file named after the row's
// identifier. Every row must have exactly one file and every file a row.
func PairByIdentifier(tbl *domain.Table, idColumn string, files []string) ([]string, error) {
	ids, err := tbl.Column(idColumn)
	if err != nil {
		return nil, &domain.ParseError{Row: -1, Column: idColumn, Err: errors.New("column not found")}
	}

	byID := make(map[string]string, len(files))
	mismatch := &domain.MismatchError{Rows: tbl.Len(), Files: len(files)}
	for _, f := range files {
		id, ok := domain.IdentifierFromFileName(f)
		if !ok {
			mismatch.Unexpected = append(mismatch.Unexpected, filepath.Base(f))
			continue
		}
		byID[id] = f
	}

	paths := make([]string, len(ids))
	seen := make(map[string]bool, len(ids))
	for i, raw := range ids {
		id := strings.TrimSpace(raw)
		if seen[id] {
			mismatch.Duplicates = append(mismatch.Duplicates, id)
			continue
		}
		seen[id] = true
		f, ok := byID[id]
		if !ok {
			mismatch.Missing = append(mismatch.Missing, id)
			continue
		}
		paths[i] = f
	}
	for id := range byID {
		if !seen[id] {
			mismatch.Unexpected = append(mismatch.Unexpected, id)
		}
	}

	if len(mismatch.Missing) > 0 || len(mismatch.Unexpected) > 0 || len(mismatch.Duplicates) > 0 {
		slices.Sort(mismatch.Unexpected)
		return nil, mismatch
	}
	return paths, nil
}
