package domain

import (
	"fmt"
	"strconv"
)

// Trajectory holds the flattened coordinate arrays read from an output file.
type Trajectory struct {
	Lon []float64
	Lat []float64

	// LonFill and LatFill are the arrays' _FillValue attributes, if declared.
	LonFill *float64
	LatFill *float64

	// BitSize is 32 when the arrays were stored as float32, else 64.
	BitSize int
}

// Position is a terminal coordinate pair.
type Position struct {
	Lat     float64
	Lon     float64
	BitSize int
}

// Terminal returns the last element of each coordinate array. When skipFill is
// set, trailing elements equal to the declared fill value are ignored.
func (tr Trajectory) Terminal(skipFill bool) (Position, error) {
	if len(tr.Lon) == 0 || len(tr.Lat) == 0 {
		return Position{}, ErrEmptyTrajectory
	}
	if len(tr.Lon) != len(tr.Lat) {
		return Position{}, fmt.Errorf("lon has %d elements but lat has %d", len(tr.Lon), len(tr.Lat))
	}

	i := len(tr.Lon) - 1
	if skipFill {
		for i >= 0 && (isFill(tr.Lon[i], tr.LonFill) || isFill(tr.Lat[i], tr.LatFill)) {
			i--
		}
		if i < 0 {
			return Position{}, fmt.Errorf("%w: every element is a fill value", ErrEmptyTrajectory)
		}
	}

	bits := tr.BitSize
	if bits != 32 {
		bits = 64
	}
	return Position{Lat: tr.Lat[i], Lon: tr.Lon[i], BitSize: bits}, nil
}

func isFill(v float64, fill *float64) bool {
	return fill != nil && v == *fill
}

// FormatLat returns the latitude in shortest round-trip form for its precision.
func (p Position) FormatLat() string { return formatCoordinate(p.Lat, p.BitSize) }

// FormatLon returns the longitude in shortest round-trip form for its precision.
func (p Position) FormatLon() string { return formatCoordinate(p.Lon, p.BitSize) }

func formatCoordinate(v float64, bitSize int) string {
	if bitSize != 32 {
		bitSize = 64
	}
	return strconv.FormatFloat(v, 'f', -1, bitSize)
}
