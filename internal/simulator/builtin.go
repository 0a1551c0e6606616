package simulator

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/multistatic/internal/detection"
	"github.com/banshee-data/multistatic/internal/fsutil"
	"github.com/banshee-data/multistatic/internal/grid"
	"github.com/banshee-data/multistatic/internal/trajectory"
)

// DefaultRadarRange is the detection radius used by the reference simulator.
const DefaultRadarRange = 170

// Builtin is an in-process stand-in for the external simulator. Every sensor
// within radarRange of a trajectory sample reports a detection at the
// sample's position. It makes no attempt at radar physics.
type Builtin struct {
	grid           grid.Grid
	fs             fsutil.FileSystem
	trajectoryPath string
	outputPath     string
	radarRange     int
}

// NewBuiltin creates the stand-in simulator. A non-positive radarRange uses
// DefaultRadarRange.
func NewBuiltin(g grid.Grid, fsys fsutil.FileSystem, trajectoryPath, outputPath string, radarRange int) *Builtin {
	if radarRange <= 0 {
		radarRange = DefaultRadarRange
	}
	return &Builtin{
		grid:           g,
		fs:             fsys,
		trajectoryPath: trajectoryPath,
		outputPath:     outputPath,
		radarRange:     radarRange,
	}
}

// Name identifies the runner in logs and metrics.
func (b *Builtin) Name() string { return "builtin" }

// Run reads the trajectory file, computes detections for the first steps
// samples and writes the detection log.
func (b *Builtin) Run(ctx context.Context, steps int) ([]byte, error) {
	traj, err := trajectory.Load(b.fs, b.trajectoryPath)
	if err != nil {
		return nil, err
	}
	if steps >= 0 && len(traj) > steps {
		traj = traj[:steps]
	}

	var records []detection.Record
	for _, s := range traj {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records = append(records, Detect(b.grid, s, b.radarRange)...)
	}

	if err := detection.Save(b.fs, b.outputPath, records); err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("%d detections over %d steps\n", len(records), len(traj))), nil
}

// Detect returns one record per sensor, in row-major order, whose truncated
// distance to the sample is below radarRange.
func Detect(g grid.Grid, s trajectory.Sample, radarRange int) []detection.Record {
	var out []detection.Record
	for _, sensor := range g.Sensors() {
		dx := float64(s.X - sensor.Pos.X)
		dy := float64(s.Y - sensor.Pos.Y)
		if int(math.Hypot(dx, dy)) < radarRange {
			out = append(out, detection.Record{
				Step:      s.Step,
				X:         s.X,
				Y:         s.Y,
				SensorRow: sensor.Row,
				SensorCol: sensor.Col,
			})
		}
	}
	return out
}
