package merge_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/drift-batch/internal/adapter/netcdf"
	"github.com/couchcryptid/drift-batch/internal/adapter/table"
	"github.com/couchcryptid/drift-batch/internal/config"
	"github.com/couchcryptid/drift-batch/internal/domain"
	"github.com/couchcryptid/drift-batch/internal/merge"
	"github.com/couchcryptid/drift-batch/internal/observability"
)

var inputColumns = []string{"TagID", "Species", "Date To Start Backtracking", "Latitude", "Longitude", "Notes"}

type fixture struct {
	dir    string
	outDir string
	input  string
}

func newFixture(t *testing.T, ext string, rows [][]string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{dir: dir, outDir: filepath.Join(dir, "z_output"), input: filepath.Join(dir, "tags"+ext)}
	require.NoError(t, os.MkdirAll(f.outDir, 0o755))
	require.NoError(t, table.NewStore().Write(f.input, domain.NewTable(inputColumns, rows)))
	return f
}

// track writes an output file for id whose last position is (lastLat, lastLon).
func (f fixture) track(t *testing.T, id string, lon, lat []float32) {
	t.Helper()
	require.NoError(t, netcdf.Write(filepath.Join(f.outDir, domain.OutputFileName(id)), netcdf.Grid{
		Particles: 1,
		Steps:     len(lon),
		Lon:       lon,
		Lat:       lat,
	}))
}

func threeTags() [][]string {
	return [][]string{
		{"A1", "shark", "2019-07-14 08:30:00", "36.6", "-121.9", "first"},
		{"A2", "turtle", "2019-07-15 08:30:00", "35.2", "-121", ""},
		{"A3", "seal", "2019-07-16 08:30:00", "34", "-120.5", "last"},
	}
}

func (f fixture) writeThreeTracks(t *testing.T) {
	t.Helper()
	f.track(t, "A1", []float32{1, 2}, []float32{3, 4})
	f.track(t, "A2", []float32{10, 20}, []float32{30, 40})
	f.track(t, "A3", []float32{5, 6.5}, []float32{7, 8.25})
}

func newMerger(f fixture, join domain.JoinMode, m *observability.Metrics) *merge.Merger {
	return merge.New(table.NewStore(), netcdf.NewReader(), slog.Default(), m, merge.Options{
		OutputDir:        f.outDir,
		Join:             join,
		IdentifierColumn: "TagID",
		Columns:          config.DefaultSettings().Merge,
	})
}

func readTable(t *testing.T, path string) *domain.Table {
	t.Helper()
	tbl, err := table.NewStore().Read(path)
	require.NoError(t, err)
	return tbl
}

func column(t *testing.T, tbl *domain.Table, name string) []string {
	t.Helper()
	v, err := tbl.Column(name)
	require.NoError(t, err)
	return v
}

func TestMerge_ByIdentifier(t *testing.T) {
	f := newFixture(t, ".csv", threeTags())
	f.writeThreeTracks(t)
	m := observability.NewUnregisteredMetrics()
	out := filepath.Join(f.dir, "merged.csv")

	_, err := newMerger(f, domain.JoinByIdentifier, m).Merge(context.Background(), f.input, out)
	require.NoError(t, err)

	got := readTable(t, out)
	assert.Equal(t, []string{
		"TagID", "Species", "Date To Start Backtracking", "Latitude",
		"Initial Latitude", "Initial Longitude", "Longitude", "Notes",
	}, got.Columns)
	assert.Equal(t, []string{"A2", "turtle", "2019-07-15 08:30:00", "35.2", "40", "20", "-121", ""}, got.Rows[1])
	assert.Equal(t, []string{"4", "40", "8.25"}, column(t, got, "Initial Latitude"))
	assert.Equal(t, []string{"2", "20", "6.5"}, column(t, got, "Initial Longitude"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsMerged))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FilesRead.WithLabelValues("success")))
	assert.Equal(t, domain.NewTable(inputColumns, threeTags()), readTable(t, f.input), "input is untouched")
}

func TestMerge_ByIdentifierIgnoresRowOrder(t *testing.T) {
	rows := threeTags()
	rows[0], rows[2] = rows[2], rows[0]
	f := newFixture(t, ".csv", rows)
	f.writeThreeTracks(t)
	out := filepath.Join(f.dir, "merged.csv")

	_, err := newMerger(f, domain.JoinByIdentifier, observability.NewUnregisteredMetrics()).
		Merge(context.Background(), f.input, out)
	require.NoError(t, err)

	got := readTable(t, out)
	assert.Equal(t, []string{"A3", "A2", "A1"}, column(t, got, "TagID"))
	assert.Equal(t, []string{"8.25", "40", "4"}, column(t, got, "Initial Latitude"))
}

func TestMerge_FileCountMismatch(t *testing.T) {
	for _, join := range []domain.JoinMode{domain.JoinByIdentifier, domain.JoinByPosition, domain.JoinBySortedPosition} {
		t.Run(string(join), func(t *testing.T) {
			f := newFixture(t, ".csv", threeTags())
			f.track(t, "A1", []float32{1, 2}, []float32{3, 4})
			f.track(t, "A2", []float32{10, 20}, []float32{30, 40})
			m := observability.NewUnregisteredMetrics()
			out := filepath.Join(f.dir, "merged.csv")

			_, err := newMerger(f, join, m).Merge(context.Background(), f.input, out)

			var mismatch *domain.MismatchError
			require.ErrorAs(t, err, &mismatch)
			assert.Equal(t, 3, mismatch.Rows)
			assert.Equal(t, 2, mismatch.Files)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.MergeMismatches))
			assert.NoFileExists(t, out)
		})
	}
}

func TestMerge_IdentifierMismatchLists(t *testing.T) {
	f := newFixture(t, ".csv", threeTags())
	f.track(t, "A1", []float32{1}, []float32{1})
	f.track(t, "A2", []float32{1}, []float32{1})
	f.track(t, "B9", []float32{1}, []float32{1})

	_, err := newMerger(f, domain.JoinByIdentifier, observability.NewUnregisteredMetrics()).
		Merge(context.Background(), f.input, filepath.Join(f.dir, "merged.csv"))

	var mismatch *domain.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"A3"}, mismatch.Missing)
	assert.Equal(t, []string{"B9"}, mismatch.Unexpected)
	assert.Equal(t, 3, mismatch.Files)
}

func TestPairByIdentifier_Duplicates(t *testing.T) {
	tbl := domain.NewTable([]string{"TagID"}, [][]string{{"A1"}, {"A1"}})
	files := []string{"/o/tracking_output_tag_ID_A1.nc", "/o/tracking_output_tag_ID_A2.nc"}

	_, err := merge.PairByIdentifier(tbl, "TagID", files)

	var mismatch *domain.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"A1"}, mismatch.Duplicates)
	assert.Equal(t, []string{"A2"}, mismatch.Unexpected)
}

func TestPairByIdentifier_MissingColumn(t *testing.T) {
	tbl := domain.NewTable([]string{"Tag"}, [][]string{{"A1"}})

	_, err := merge.PairByIdentifier(tbl, "TagID", nil)

	var perr *domain.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "TagID", perr.Column)
}

func TestPairByPosition(t *testing.T) {
	tbl := domain.NewTable([]string{"TagID"}, [][]string{{"x"}, {"y"}})
	files := []string{"a.nc", "b.nc"}

	got, err := merge.PairByPosition(tbl, files)
	require.NoError(t, err)
	assert.Equal(t, files, got)

	_, err = merge.PairByPosition(tbl, files[:1])
	require.Error(t, err)
}

func TestMerge_PositionUsesTableOrder(t *testing.T) {
	rows := threeTags()
	rows[0], rows[1] = rows[1], rows[0] // on disk: A2, A1, A3
	f := newFixture(t, ".csv", rows)
	f.writeThreeTracks(t)
	out := filepath.Join(f.dir, "merged.csv")

	_, err := newMerger(f, domain.JoinByPosition, observability.NewUnregisteredMetrics()).
		Merge(context.Background(), f.input, out)
	require.NoError(t, err)

	got := readTable(t, out)
	assert.Equal(t, []string{"A2", "A1", "A3"}, column(t, got, "TagID"))
	// Row order is not reconciled with sorted file order.
	assert.Equal(t, []string{"4", "40", "8.25"}, column(t, got, "Initial Latitude"))
}

func TestMerge_SortedPositionReordersTable(t *testing.T) {
	rows := threeTags()
	rows[0], rows[1] = rows[1], rows[0]
	f := newFixture(t, ".csv", rows)
	f.writeThreeTracks(t)
	out := filepath.Join(f.dir, "merged.csv")

	_, err := newMerger(f, domain.JoinBySortedPosition, observability.NewUnregisteredMetrics()).
		Merge(context.Background(), f.input, out)
	require.NoError(t, err)

	got := readTable(t, out)
	assert.Equal(t, []string{"A1", "A2", "A3"}, column(t, got, "TagID"))
	assert.Equal(t, []string{"4", "40", "8.25"}, column(t, got, "Initial Latitude"))
	assert.Equal(t, []string{"2", "20", "6.5"}, column(t, got, "Initial Longitude"))
}

func TestMerge_SortedPositionPrefixIdentifiers(t *testing.T) {
	rows := [][]string{
		{"A1-b", "shark", "2019-07-14 08:30:00", "36.6", "-121.9", ""},
		{"A1", "turtle", "2019-07-15 08:30:00", "35.2", "-121", ""},
	}
	f := newFixture(t, ".csv", rows)
	f.track(t, "A1", []float32{1}, []float32{11})
	f.track(t, "A1-b", []float32{2}, []float32{22})
	out := filepath.Join(f.dir, "merged.csv")

	_, err := newMerger(f, domain.JoinBySortedPosition, observability.NewUnregisteredMetrics()).
		Merge(context.Background(), f.input, out)
	require.NoError(t, err)

	got := readTable(t, out)
	assert.Equal(t, []string{"A1", "A1-b"}, column(t, got, "TagID"))
	assert.Equal(t, []string{"11", "22"}, column(t, got, "Initial Latitude"))
}

func TestSortByIdentifier(t *testing.T) {
	files := []string{
		"/o/tracking_output_tag_ID_A1-b.nc",
		"/o/tracking_output_tag_ID_A1.nc",
		"/o/tracking_output_tag_ID_10.nc",
		"/o/tracking_output_tag_ID_9.nc",
	}
	got := merge.SortByIdentifier(files)
	assert.Equal(t, []string{
		"/o/tracking_output_tag_ID_10.nc",
		"/o/tracking_output_tag_ID_9.nc",
		"/o/tracking_output_tag_ID_A1.nc",
		"/o/tracking_output_tag_ID_A1-b.nc",
	}, got)
	assert.Equal(t, "/o/tracking_output_tag_ID_A1-b.nc", files[0], "input is not reordered")
}

func TestMerge_IsIdempotent(t *testing.T) {
	for _, ext := range []string{".csv", ".xlsx"} {
		t.Run(ext, func(t *testing.T) {
			f := newFixture(t, ext, threeTags())
			f.writeThreeTracks(t)
			out := filepath.Join(f.dir, "merged"+ext)
			mg := newMerger(f, domain.JoinByIdentifier, observability.NewUnregisteredMetrics())

			_, err := mg.Merge(context.Background(), f.input, out)
			require.NoError(t, err)
			first, err := os.ReadFile(out)
			require.NoError(t, err)

			_, err = mg.Merge(context.Background(), f.input, out)
			require.NoError(t, err)
			second, err := os.ReadFile(out)
			require.NoError(t, err)

			assert.Equal(t, first, second)
		})
	}
}

func TestMerge_XLSX(t *testing.T) {
	f := newFixture(t, ".xlsx", threeTags())
	f.writeThreeTracks(t)
	out := filepath.Join(f.dir, "LocationDataInitialFinal.xlsx")

	merged, err := newMerger(f, domain.JoinByIdentifier, observability.NewUnregisteredMetrics()).
		Merge(context.Background(), f.input, out)
	require.NoError(t, err)

	assert.Equal(t, merged, readTable(t, out))
}

func TestMerge_SkipFill(t *testing.T) {
	fill := float32(9.96921e36)
	f := newFixture(t, ".csv", threeTags()[:1])
	require.NoError(t, netcdf.Write(filepath.Join(f.outDir, domain.OutputFileName("A1")), netcdf.Grid{
		Particles: 1,
		Steps:     3,
		Lon:       []float32{10, 20, fill},
		Lat:       []float32{30, 40, fill},
		Fill:      &fill,
	}))
	out := filepath.Join(f.dir, "merged.csv")

	mg := merge.New(table.NewStore(), netcdf.NewReader(), slog.Default(), observability.NewUnregisteredMetrics(), merge.Options{
		OutputDir:        f.outDir,
		SkipFill:         true,
		IdentifierColumn: "TagID",
		Columns:          config.DefaultSettings().Merge,
	})
	_, err := mg.Merge(context.Background(), f.input, out)
	require.NoError(t, err)

	got := readTable(t, out)
	assert.Equal(t, []string{"40"}, column(t, got, "Initial Latitude"))
	assert.Equal(t, []string{"20"}, column(t, got, "Initial Longitude"))
}

func TestMerge_UnreadableOutputFile(t *testing.T) {
	f := newFixture(t, ".csv", threeTags())
	f.writeThreeTracks(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.outDir, domain.OutputFileName("A2")), []byte("not netcdf"), 0o644))
	m := observability.NewUnregisteredMetrics()
	out := filepath.Join(f.dir, "merged.csv")

	_, err := newMerger(f, domain.JoinByIdentifier, m).Merge(context.Background(), f.input, out)
	require.ErrorContains(t, err, "tracking_output_tag_ID_A2.nc")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesRead.WithLabelValues("error")))
	assert.NoFileExists(t, out)
}

func TestMerge_AlreadyMergedTable(t *testing.T) {
	f := newFixture(t, ".csv", threeTags())
	f.writeThreeTracks(t)
	mg := newMerger(f, domain.JoinByIdentifier, observability.NewUnregisteredMetrics())
	once := filepath.Join(f.dir, "once.csv")

	_, err := mg.Merge(context.Background(), f.input, once)
	require.NoError(t, err)

	_, err = mg.Merge(context.Background(), once, filepath.Join(f.dir, "twice.csv"))
	require.ErrorContains(t, err, "column already exists")
}

func TestMerge_CancelledContext(t *testing.T) {
	f := newFixture(t, ".csv", threeTags())
	f.writeThreeTracks(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newMerger(f, domain.JoinByIdentifier, observability.NewUnregisteredMetrics()).
		Merge(ctx, f.input, filepath.Join(f.dir, "merged.csv"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	f := newFixture(t, ".csv", threeTags())
	f.writeThreeTracks(t)
	mg := newMerger(f, domain.JoinByIdentifier, observability.NewUnregisteredMetrics())

	require.NoError(t, mg.Validate(context.Background(), f.input))

	require.NoError(t, os.WriteFile(filepath.Join(f.outDir, domain.OutputFileName("A1")), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.outDir, domain.OutputFileName("A3")), []byte("junk"), 0o644))

	err := mg.Validate(context.Background(), f.input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracking_output_tag_ID_A1.nc")
	assert.Contains(t, err.Error(), "tracking_output_tag_ID_A3.nc")

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "validate writes nothing")
}

func TestListOutputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"tracking_output_tag_ID_B.nc",
		"tracking_output_tag_ID_A.nc",
		"tracking_output_tag_ID_10.nc",
		"notes.txt",
		"other.nc",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	got, err := merge.ListOutputs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "tracking_output_tag_ID_10.nc"),
		filepath.Join(dir, "tracking_output_tag_ID_A.nc"),
		filepath.Join(dir, "tracking_output_tag_ID_B.nc"),
	}, got)

	empty, err := merge.ListOutputs(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}
