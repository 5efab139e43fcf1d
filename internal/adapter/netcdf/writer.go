package netcdf

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
)

// Grid is a block of particle positions shaped (trajectory, time), stored
// row-major: element [p*Steps+s] is particle p at output step s.
type Grid struct {
	Particles int
	Steps     int
	Lon       []float32
	Lat       []float32
	// Fill, when set, is declared as the _FillValue of both arrays.
	Fill *float32
}

// Write creates a netCDF file at path holding the grid's lon and lat arrays
// with the same variable names and layout the drift engine uses.
func Write(path string, g Grid) error {
	n := g.Particles * g.Steps
	if g.Particles <= 0 || g.Steps <= 0 {
		return fmt.Errorf("netcdf: grid must have at least one particle and step, got %dx%d", g.Particles, g.Steps)
	}
	if len(g.Lon) != n || len(g.Lat) != n {
		return fmt.Errorf("netcdf: grid is %dx%d but lon has %d and lat has %d elements", g.Particles, g.Steps, len(g.Lon), len(g.Lat))
	}

	dims := []string{"trajectory", "time"}
	h := cdf.NewHeader(dims, []int{g.Particles, g.Steps})
	h.AddAttribute("", "comment", "drift trajectory")
	for _, v := range []string{lonVar, latVar} {
		h.AddVariable(v, dims, []float32{0})
		if g.Fill != nil {
			h.AddAttribute(v, "_FillValue", []float32{*g.Fill})
		}
	}
	h.AddAttribute(lonVar, "units", "degrees_east")
	h.AddAttribute(latVar, "units", "degrees_north")
	h.Define()

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("netcdf: %w", err)
	}
	f, err := cdf.Create(ff, h) // writes the header to ff
	if err != nil {
		ff.Close()
		return fmt.Errorf("netcdf: write header %s: %w", path, err)
	}

	for v, data := range map[string][]float32{lonVar: g.Lon, latVar: g.Lat} {
		end := f.Header.Lengths(v)
		start := make([]int, len(end))
		if _, err := f.Writer(v, start, end).Write(data); err != nil {
			ff.Close()
			return fmt.Errorf("netcdf: writing variable %s to %s: %w", v, path, err)
		}
	}
	return ff.Close()
}
