// Package netcdf reads and writes drift trajectory files in netCDF classic
// format.
package netcdf

import (
	"fmt"
	"os"
	"slices"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/drift-batch/internal/domain"
)

const (
	lonVar = "lon"
	latVar = "lat"
)

// Reader loads trajectories from output files.
// It implements merge.TrajectoryReader.
type Reader struct{}

// NewReader creates a trajectory file reader.
func NewReader() *Reader { return &Reader{} }

// ReadTrajectory opens path and returns its flattened lon and lat arrays.
func (*Reader) ReadTrajectory(path string) (domain.Trajectory, error) {
	ff, err := os.Open(path)
	if err != nil {
		return domain.Trajectory{}, fmt.Errorf("open trajectory: %w", err)
	}
	defer ff.Close()

	f, err := cdf.Open(readOnly{ff})
	if err != nil {
		return domain.Trajectory{}, fmt.Errorf("decode netcdf %s: %w", path, err)
	}

	lon, lonBits, err := readFloats(f, lonVar)
	if err != nil {
		return domain.Trajectory{}, fmt.Errorf("%s: %w", path, err)
	}
	lat, latBits, err := readFloats(f, latVar)
	if err != nil {
		return domain.Trajectory{}, fmt.Errorf("%s: %w", path, err)
	}

	bits := 64
	if lonBits == 32 && latBits == 32 {
		bits = 32
	}
	return domain.Trajectory{
		Lon:     lon,
		Lat:     lat,
		LonFill: fillValue(f, lonVar),
		LatFill: fillValue(f, latVar),
		BitSize: bits,
	}, nil
}

// readFloats reads every element of variable v in storage order.
func readFloats(f *cdf.File, v string) ([]float64, int, error) {
	if !slices.Contains(f.Header.Variables(), v) {
		return nil, 0, fmt.Errorf("variable %q not found", v)
	}
	n := 1
	for _, l := range f.Header.Lengths(v) {
		n *= l
	}
	if n == 0 {
		return nil, 0, nil
	}

	r := f.Reader(v, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, 0, fmt.Errorf("read variable %q: %w", v, err)
	}

	switch data := buf.(type) {
	case []float32:
		out := make([]float64, len(data))
		for i, x := range data {
			out[i] = float64(x)
		}
		return out, 32, nil
	case []float64:
		return data, 64, nil
	case []int32:
		return widen(data), 64, nil
	case []int16:
		return widen(data), 64, nil
	case []int8:
		return widen(data), 64, nil
	default:
		return nil, 0, fmt.Errorf("variable %q has unsupported type %T", v, buf)
	}
}

func widen[T int8 | int16 | int32](in []T) []float64 {
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = float64(x)
	}
	return out
}

// fillValue returns the variable's _FillValue attribute as float64, if any.
func fillValue(f *cdf.File, v string) *float64 {
	var fv float64
	switch a := f.Header.GetAttribute(v, "_FillValue").(type) {
	case []float32:
		if len(a) == 0 {
			return nil
		}
		fv = float64(a[0])
	case []float64:
		if len(a) == 0 {
			return nil
		}
		fv = a[0]
	default:
		return nil
	}
	return &fv
}

// readOnly satisfies cdf.ReaderWriterAt for files opened read-only.
type readOnly struct {
	*os.File
}

func (readOnly) WriteAt([]byte, int64) (int, error) {
	return 0, fmt.Errorf("netcdf: file opened read-only")
}
