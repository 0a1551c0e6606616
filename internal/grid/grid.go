// Package grid models the fixed rectangular lattice of stationary sensors and
// the mapping between sensor indices and plot coordinates.
//
// Row 0 of the lattice is the top row when drawn, while plot y = 0 is the
// bottom edge, so the row index is inverted when mapping into plot space.
package grid

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidGrid is returned for grids with non-positive dimensions or spacing.
	ErrInvalidGrid = errors.New("invalid sensor grid")
	// ErrNotLatticePoint is returned by Index for plot points that are not sensor positions.
	ErrNotLatticePoint = errors.New("point is not a sensor position")
)

// Point is an integer plot coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Sensor is one lattice position with both index and plot coordinates.
type Sensor struct {
	Row int   `json:"row"`
	Col int   `json:"col"`
	Pos Point `json:"pos"`
}

// Grid is an immutable Rows × Cols lattice with constant Spacing between
// neighbouring sensors.
type Grid struct {
	Rows    int `json:"rows"`
	Cols    int `json:"cols"`
	Spacing int `json:"spacing"`
}

// New validates and returns a grid.
func New(rows, cols, spacing int) (Grid, error) {
	g := Grid{Rows: rows, Cols: cols, Spacing: spacing}
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}
	return g, nil
}

// Validate checks that all dimensions are positive.
func (g Grid) Validate() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d must be positive", ErrInvalidGrid, g.Rows, g.Cols)
	}
	if g.Spacing <= 0 {
		return fmt.Errorf("%w: spacing %d must be positive", ErrInvalidGrid, g.Spacing)
	}
	return nil
}

// Width is the plot extent along x, (Cols-1)·Spacing.
func (g Grid) Width() int { return (g.Cols - 1) * g.Spacing }

// Height is the plot extent along y, (Rows-1)·Spacing.
func (g Grid) Height() int { return (g.Rows - 1) * g.Spacing }

// Center returns the midpoint of the sensor field's bounding box.
func (g Grid) Center() (x, y float64) {
	return float64(g.Width()) / 2, float64(g.Height()) / 2
}

// HalfDiagonal is half the diagonal of the Rows·Spacing × Cols·Spacing box.
// A chord of this half-length through Center always leaves the sensor field.
func (g Grid) HalfDiagonal() float64 {
	h := float64(g.Rows * g.Spacing)
	w := float64(g.Cols * g.Spacing)
	return math.Sqrt(h*h+w*w) / 2
}

// Position maps a sensor index to its plot coordinate.
func (g Grid) Position(row, col int) Point {
	return Point{
		X: col * g.Spacing,
		Y: g.Height() - row*g.Spacing,
	}
}

// Index is the inverse of Position. It fails for points outside the lattice.
func (g Grid) Index(p Point) (row, col int, err error) {
	if p.X%g.Spacing != 0 || (g.Height()-p.Y)%g.Spacing != 0 {
		return 0, 0, fmt.Errorf("%w: (%d, %d)", ErrNotLatticePoint, p.X, p.Y)
	}
	col = p.X / g.Spacing
	row = (g.Height() - p.Y) / g.Spacing
	if !g.InRange(row, col) {
		return 0, 0, fmt.Errorf("%w: (%d, %d)", ErrNotLatticePoint, p.X, p.Y)
	}
	return row, col, nil
}

// InRange reports whether (row, col) addresses a sensor of this grid.
func (g Grid) InRange(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Cols
}

// Sensors lists every sensor in row-major order.
func (g Grid) Sensors() []Sensor {
	out := make([]Sensor, 0, g.Rows*g.Cols)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			out = append(out, Sensor{Row: row, Col: col, Pos: g.Position(row, col)})
		}
	}
	return out
}

// Contains reports whether p lies inside [0, Width] × [0, Height].
func (g Grid) Contains(p Point) bool {
	return p.X >= 0 && p.X <= g.Width() && p.Y >= 0 && p.Y <= g.Height()
}

// Clip clamps (x, y) into the sensor field bounding box. Clipping an already
// clipped point returns it unchanged.
func (g Grid) Clip(x, y float64) (float64, float64) {
	return clamp(x, 0, float64(g.Width())), clamp(y, 0, float64(g.Height()))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
