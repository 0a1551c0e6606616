// Package render holds the plot state of the visualiser and draws it as
// static images (gonum/plot) or an interactive chart (go-echarts).
package render

import (
	"github.com/banshee-data/multistatic/internal/grid"
	"github.com/banshee-data/multistatic/internal/trajectory"
)

// Fixed labels of the plot.
const (
	Title  = "Multistatic Radar Simulation"
	XLabel = "x position (km)"
	YLabel = "y position (km)"
)

// Legend entries, one per artifact kind.
const (
	LegendSensors    = "Sensor Positions"
	LegendDetections = "Sensor Object Detections"
	LegendTruth      = "Actual Object Trajectory"
	LegendOrigin     = "Originating Sensor"
)

// LegendOrder is the order in which legend entries are drawn.
var LegendOrder = []string{LegendSensors, LegendDetections, LegendTruth, LegendOrigin}

// Segment is a straight line from a sensor to the position it detected.
type Segment struct {
	From grid.Point `json:"from"`
	To   grid.Point `json:"to"`
}

// Bounds is the visible plot area.
type Bounds struct {
	XMin int `json:"x_min"`
	XMax int `json:"x_max"`
	YMin int `json:"y_min"`
	YMax int `json:"y_max"`
}

// State is everything that is drawn. Sensors and Truth are fixed at
// construction. Detections are replaced on every cycle while Attributions
// only ever grow.
type State struct {
	Title  string   `json:"title"`
	XLabel string   `json:"x_label"`
	YLabel string   `json:"y_label"`
	Legend []string `json:"legend"`
	Bounds Bounds   `json:"bounds"`

	Sensors      []grid.Point `json:"sensors"`
	Truth        []grid.Point `json:"truth"`
	Detections   []grid.Point `json:"detections"`
	Attributions []Segment    `json:"attributions"`

	// OriginPlaceholder is a zero-length segment drawn from the start so
	// the Originating Sensor legend entry exists before any detection.
	OriginPlaceholder Segment `json:"origin_placeholder"`
}

// NewState builds the initial plot: sensors, the true path, no detections
// and the placeholder attribution segment. Bounds are the sensor grid
// expanded by margin on every side.
func NewState(g grid.Grid, truth trajectory.Trajectory, margin int) *State {
	sensors := g.Sensors()
	pts := make([]grid.Point, len(sensors))
	for i, s := range sensors {
		pts[i] = s.Pos
	}

	return &State{
		Title:  Title,
		XLabel: XLabel,
		YLabel: YLabel,
		Legend: append([]string(nil), LegendOrder...),
		Bounds: Bounds{
			XMin: -margin,
			XMax: g.Width() + margin,
			YMin: -margin,
			YMax: g.Height() + margin,
		},
		Sensors:      pts,
		Truth:        truth.Points(),
		Detections:   []grid.Point{},
		Attributions: []Segment{},
	}
}

// ReplaceDetections swaps the detection marker set for pts.
func (s *State) ReplaceDetections(pts []grid.Point) {
	s.Detections = append(make([]grid.Point, 0, len(pts)), pts...)
}

// AppendAttributions adds segments to the cumulative attribution set.
func (s *State) AppendAttributions(segs ...Segment) {
	s.Attributions = append(s.Attributions, segs...)
}

// Segments returns every attribution segment to draw, placeholder first.
func (s *State) Segments() []Segment {
	out := make([]Segment, 0, len(s.Attributions)+1)
	out = append(out, s.OriginPlaceholder)
	return append(out, s.Attributions...)
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Legend = append([]string(nil), s.Legend...)
	c.Sensors = append([]grid.Point(nil), s.Sensors...)
	c.Truth = append([]grid.Point(nil), s.Truth...)
	c.Detections = append(make([]grid.Point, 0, len(s.Detections)), s.Detections...)
	c.Attributions = append(make([]Segment, 0, len(s.Attributions)), s.Attributions...)
	return &c
}
