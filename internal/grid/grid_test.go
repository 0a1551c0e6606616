package grid

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceGrid(t *testing.T) Grid {
	t.Helper()
	g, err := New(4, 5, 125)
	require.NoError(t, err)
	return g
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                string
		rows, cols, spacing int
		wantErr             bool
	}{
		{"reference", 4, 5, 125, false},
		{"single sensor", 1, 1, 10, false},
		{"zero rows", 0, 5, 125, true},
		{"negative cols", 4, -1, 125, true},
		{"zero spacing", 4, 5, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.rows, tc.cols, tc.spacing)
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidGrid), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGeometry(t *testing.T) {
	t.Parallel()
	g := referenceGrid(t)

	assert.Equal(t, 500, g.Width())
	assert.Equal(t, 375, g.Height())

	cx, cy := g.Center()
	assert.Equal(t, 250.0, cx)
	assert.Equal(t, 187.5, cy)

	assert.InDelta(t, math.Sqrt(500*500+625*625)/2, g.HalfDiagonal(), 1e-9)
}

func TestPosition_RowInverted(t *testing.T) {
	t.Parallel()
	g := referenceGrid(t)

	assert.Equal(t, Point{X: 250, Y: 250}, g.Position(1, 2))
	assert.Equal(t, Point{X: 0, Y: 375}, g.Position(0, 0))
	assert.Equal(t, Point{X: 500, Y: 0}, g.Position(3, 4))
}

func TestPositionIndex_Bijection(t *testing.T) {
	t.Parallel()

	for _, g := range []Grid{{4, 5, 125}, {1, 1, 7}, {3, 8, 40}, {6, 2, 1}} {
		seen := make(map[Point]bool)
		for row := 0; row < g.Rows; row++ {
			for col := 0; col < g.Cols; col++ {
				p := g.Position(row, col)
				require.False(t, seen[p], "duplicate plot point %v in %+v", p, g)
				seen[p] = true
				require.True(t, g.Contains(p))

				gotRow, gotCol, err := g.Index(p)
				require.NoError(t, err)
				assert.Equal(t, row, gotRow)
				assert.Equal(t, col, gotCol)
			}
		}
		assert.Len(t, seen, g.Rows*g.Cols)
	}
}

func TestIndex_RejectsNonLatticePoints(t *testing.T) {
	t.Parallel()
	g := referenceGrid(t)

	for _, p := range []Point{{10, 20}, {125, 1}, {625, 0}, {0, 500}, {-125, 0}} {
		_, _, err := g.Index(p)
		assert.True(t, errors.Is(err, ErrNotLatticePoint), "point %v: %v", p, err)
	}
}

func TestSensors_RowMajor(t *testing.T) {
	t.Parallel()
	g := referenceGrid(t)

	sensors := g.Sensors()
	require.Len(t, sensors, 20)
	for i, s := range sensors {
		assert.Equal(t, i/5, s.Row)
		assert.Equal(t, i%5, s.Col)
		assert.Equal(t, g.Position(s.Row, s.Col), s.Pos)
	}
	// axis-aligned with constant spacing along each row
	for i := 1; i < 5; i++ {
		assert.Equal(t, 125, sensors[i].Pos.X-sensors[i-1].Pos.X)
		assert.Equal(t, sensors[0].Pos.Y, sensors[i].Pos.Y)
	}
}

func TestClip_Idempotent(t *testing.T) {
	t.Parallel()
	g := referenceGrid(t)

	inputs := [][2]float64{{-300, 900}, {712.7, 187.5}, {250, 187.5}, {0, 0}, {500, 375}, {1e9, -1e9}}
	for _, in := range inputs {
		x, y := g.Clip(in[0], in[1])
		assert.GreaterOrEqual(t, x, 0.0)
		assert.LessOrEqual(t, x, 500.0)
		assert.GreaterOrEqual(t, y, 0.0)
		assert.LessOrEqual(t, y, 375.0)

		x2, y2 := g.Clip(x, y)
		assert.Equal(t, x, x2)
		assert.Equal(t, y, y2)
	}
}
