// Package trajectory generates the synthetic straight-line path of the
// observed object and serializes it for the detection simulator.
package trajectory

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/multistatic/internal/grid"
)

// ErrInvalidSteps is returned when fewer than one time step is requested.
var ErrInvalidSteps = errors.New("trajectory needs at least one time step")

// Sample is the object's plot position at one time step.
type Sample struct {
	Step int `json:"time_step"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

// Point returns the sample's plot coordinate.
func (s Sample) Point() grid.Point {
	return grid.Point{X: s.X, Y: s.Y}
}

// Trajectory is an ordered sequence of samples with steps 0..len-1.
type Trajectory []Sample

// Points returns the plot coordinates of every sample, in order.
func (t Trajectory) Points() []grid.Point {
	pts := make([]grid.Point, len(t))
	for i, s := range t {
		pts[i] = s.Point()
	}
	return pts
}

// Endpoints returns the clipped start and end of the chord through the grid
// center at angle theta. The unclipped endpoints lie HalfDiagonal away from
// the center, outside the sensor field.
func Endpoints(g grid.Grid, theta float64) (start, end [2]float64) {
	cx, cy := g.Center()
	r := g.HalfDiagonal()

	start[0], start[1] = g.Clip(cx+r*math.Cos(theta), cy+r*math.Sin(theta))
	end[0], end[1] = g.Clip(cx+r*math.Cos(theta+math.Pi), cy+r*math.Sin(theta+math.Pi))
	return start, end
}

// Interpolate returns steps evenly spaced samples from start to end
// inclusive, truncating each coordinate to an integer.
func Interpolate(start, end [2]float64, steps int) (Trajectory, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSteps, steps)
	}

	xs := make([]float64, steps)
	ys := make([]float64, steps)
	if steps == 1 {
		xs[0], ys[0] = start[0], start[1]
	} else {
		floats.Span(xs, start[0], end[0])
		floats.Span(ys, start[1], end[1])
		// Span accumulates the step, which can land just short of end.
		xs[steps-1], ys[steps-1] = end[0], end[1]
	}

	out := make(Trajectory, steps)
	for i := range out {
		out[i] = Sample{Step: i, X: int(xs[i]), Y: int(ys[i])}
	}
	return out, nil
}

// FromAngle builds the trajectory for a fixed chord angle.
func FromAngle(g grid.Grid, steps int, theta float64) (Trajectory, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	start, end := Endpoints(g, theta)
	return Interpolate(start, end, steps)
}

// Generate draws theta uniformly from [0, π) using rng and builds the
// trajectory. A degenerate chord, where both endpoints clip to the same
// point, yields that point repeated and is not an error.
func Generate(g grid.Grid, steps int, rng *rand.Rand) (Trajectory, float64, error) {
	theta := rng.Float64() * math.Pi
	t, err := FromAngle(g, steps, theta)
	if err != nil {
		return nil, 0, err
	}
	return t, theta, nil
}
