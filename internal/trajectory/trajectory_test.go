package trajectory

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/multistatic/internal/grid"
)

var referenceGrid = grid.Grid{Rows: 4, Cols: 5, Spacing: 125}

func TestGenerate_Properties(t *testing.T) {
	t.Parallel()

	grids := []grid.Grid{
		referenceGrid,
		{Rows: 2, Cols: 2, Spacing: 10},
		{Rows: 7, Cols: 3, Spacing: 33},
		{Rows: 1, Cols: 6, Spacing: 50},
	}
	for _, g := range grids {
		for _, steps := range []int{2, 3, 21, 100} {
			rng := rand.New(rand.NewSource(int64(steps*1000 + g.Rows)))
			for trial := 0; trial < 50; trial++ {
				traj, theta, err := Generate(g, steps, rng)
				require.NoError(t, err)
				require.Len(t, traj, steps)
				assert.GreaterOrEqual(t, theta, 0.0)
				assert.Less(t, theta, math.Pi)

				for i, s := range traj {
					require.Equal(t, i, s.Step, "steps must increase from 0")
					require.True(t, g.Contains(s.Point()), "sample %v outside %+v", s, g)
				}
			}
		}
	}
}

func TestGenerate_ReferenceScenarioBounds(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 500; trial++ {
		traj, _, err := Generate(referenceGrid, 21, rng)
		require.NoError(t, err)
		for _, s := range traj {
			assert.LessOrEqual(t, s.X, 500)
			assert.LessOrEqual(t, s.Y, 375)
			assert.GreaterOrEqual(t, s.X, 0)
			assert.GreaterOrEqual(t, s.Y, 0)
		}
	}
}

func TestGenerate_FixedSeedIsReproducible(t *testing.T) {
	t.Parallel()

	a, thetaA, err := Generate(referenceGrid, 21, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, thetaB, err := Generate(referenceGrid, 21, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Equal(t, thetaA, thetaB)
	assert.Equal(t, a, b)

	want, err := FromAngle(referenceGrid, 21, thetaA)
	require.NoError(t, err)
	assert.Equal(t, want, a)
}

func TestFromAngle_Horizontal(t *testing.T) {
	t.Parallel()

	traj, err := FromAngle(referenceGrid, 21, 0)
	require.NoError(t, err)
	require.Len(t, traj, 21)

	assert.Equal(t, Sample{Step: 0, X: 500, Y: 187}, traj[0])
	assert.Equal(t, Sample{Step: 20, X: 0, Y: 187}, traj[20])
	for i, s := range traj {
		assert.Equal(t, 500-25*i, s.X)
		assert.Equal(t, 187, s.Y)
	}
}

func TestInterpolate_EndpointsExact(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 200; trial++ {
		theta := rng.Float64() * math.Pi
		start, end := Endpoints(referenceGrid, theta)
		steps := 2 + rng.Intn(40)

		traj, err := Interpolate(start, end, steps)
		require.NoError(t, err)
		assert.Equal(t, int(start[0]), traj[0].X)
		assert.Equal(t, int(start[1]), traj[0].Y)
		assert.Equal(t, int(end[0]), traj[steps-1].X)
		assert.Equal(t, int(end[1]), traj[steps-1].Y)
	}
}

func TestInterpolate_LastSampleIsEnd(t *testing.T) {
	t.Parallel()

	traj, err := Interpolate([2]float64{13.7, 0}, [2]float64{500, 375}, 7)
	require.NoError(t, err)
	require.Len(t, traj, 7)
	assert.Equal(t, Sample{Step: 0, X: 13, Y: 0}, traj[0])
	assert.Equal(t, Sample{Step: 6, X: 500, Y: 375}, traj[6])
}

func TestFromAngle_LastSampleIsClippedEnd(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 500; trial++ {
		theta := rng.Float64() * math.Pi
		steps := 2 + rng.Intn(60)
		_, end := Endpoints(referenceGrid, theta)

		traj, err := FromAngle(referenceGrid, steps, theta)
		require.NoError(t, err)
		assert.Equal(t, int(end[0]), traj[steps-1].X, "theta=%v steps=%d", theta, steps)
		assert.Equal(t, int(end[1]), traj[steps-1].Y, "theta=%v steps=%d", theta, steps)
	}
}

func TestEndpoints_AlreadyClipped(t *testing.T) {
	t.Parallel()

	for _, theta := range []float64{0, 0.3, 1, math.Pi / 2, 2.5, 3.1} {
		start, end := Endpoints(referenceGrid, theta)
		for _, p := range [][2]float64{start, end} {
			x, y := referenceGrid.Clip(p[0], p[1])
			assert.Equal(t, p[0], x)
			assert.Equal(t, p[1], y)
		}
	}
}

func TestFromAngle_DegenerateIsNotAnError(t *testing.T) {
	t.Parallel()

	single := grid.Grid{Rows: 1, Cols: 1, Spacing: 10}
	traj, err := FromAngle(single, 5, 1.2)
	require.NoError(t, err)
	require.Len(t, traj, 5)
	for i, s := range traj {
		assert.Equal(t, Sample{Step: i, X: 0, Y: 0}, s)
	}
}

func TestInterpolate_SingleStep(t *testing.T) {
	t.Parallel()

	traj, err := Interpolate([2]float64{12.9, 3.2}, [2]float64{100, 100}, 1)
	require.NoError(t, err)
	assert.Equal(t, Trajectory{{Step: 0, X: 12, Y: 3}}, traj)
}

func TestInterpolate_InvalidSteps(t *testing.T) {
	t.Parallel()

	_, err := Interpolate([2]float64{}, [2]float64{}, 0)
	assert.True(t, errors.Is(err, ErrInvalidSteps))

	_, _, err = Generate(referenceGrid, -1, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, ErrInvalidSteps))
}

func TestFromAngle_InvalidGrid(t *testing.T) {
	t.Parallel()

	_, err := FromAngle(grid.Grid{Rows: 0, Cols: 5, Spacing: 125}, 21, 0)
	assert.True(t, errors.Is(err, grid.ErrInvalidGrid))
}
