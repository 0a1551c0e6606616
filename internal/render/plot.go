package render

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/multistatic/internal/grid"
)

// Supported image formats.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

var (
	backgroundColor = color.RGBA{R: 26, G: 26, B: 26, A: 255}
	foregroundColor = color.RGBA{R: 220, G: 220, B: 220, A: 255}
	sensorColor     = color.White
	truthColor      = color.NRGBA{R: 255, G: 255, B: 255, A: 128}
	detectionFill   = color.RGBA{R: 0, G: 128, B: 0, A: 255}
	detectionEdge   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	originColor     = color.NRGBA{R: 255, G: 165, B: 0, A: 128}
)

// PlotRenderer draws a State as a static image.
type PlotRenderer struct {
	Width  vg.Length
	Height vg.Length
}

// NewPlotRenderer returns a renderer sized for the reference 4x5 grid.
func NewPlotRenderer() *PlotRenderer {
	return &PlotRenderer{Width: 9 * vg.Inch, Height: 7 * vg.Inch}
}

// Render writes s to w in the given format (FormatPNG or FormatSVG).
func (r *PlotRenderer) Render(w io.Writer, s *State, format string) error {
	if format != FormatPNG && format != FormatSVG {
		return fmt.Errorf("unsupported image format %q", format)
	}

	p, err := r.Plot(s)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(r.Width, r.Height, format)
	if err != nil {
		return fmt.Errorf("create %s writer: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}

// Plot builds the gonum plot for s.
func (r *PlotRenderer) Plot(s *State) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = s.Title
	p.X.Label.Text = s.XLabel
	p.Y.Label.Text = s.YLabel
	styleDark(p)

	sensors, err := plotter.NewScatter(toXYs(s.Sensors))
	if err != nil {
		return nil, fmt.Errorf("sensor markers: %w", err)
	}
	sensors.GlyphStyle = draw.GlyphStyle{Color: sensorColor, Radius: vg.Points(5), Shape: draw.SquareGlyph{}}

	detFill, err := plotter.NewScatter(toXYs(s.Detections))
	if err != nil {
		return nil, fmt.Errorf("detection markers: %w", err)
	}
	detFill.GlyphStyle = draw.GlyphStyle{Color: detectionFill, Radius: vg.Points(4), Shape: draw.CircleGlyph{}}

	detEdge, err := plotter.NewScatter(toXYs(s.Detections))
	if err != nil {
		return nil, fmt.Errorf("detection markers: %w", err)
	}
	detEdge.GlyphStyle = draw.GlyphStyle{Color: detectionEdge, Radius: vg.Points(4), Shape: draw.RingGlyph{}}

	truth, err := plotter.NewLine(toXYs(s.Truth))
	if err != nil {
		return nil, fmt.Errorf("trajectory line: %w", err)
	}
	truth.Color = truthColor
	truth.Width = vg.Points(2)

	// Segments are drawn first so markers stay on top.
	var originThumb plot.Thumbnailer
	for _, seg := range s.Segments() {
		line, err := plotter.NewLine(plotter.XYs{toXY(seg.From), toXY(seg.To)})
		if err != nil {
			return nil, fmt.Errorf("attribution segment: %w", err)
		}
		line.Color = originColor
		line.Width = vg.Points(1)
		p.Add(line)
		if originThumb == nil {
			originThumb = line
		}
	}

	if len(s.Truth) > 0 {
		p.Add(truth)
	}
	if len(s.Detections) > 0 {
		p.Add(detFill, detEdge)
	}
	p.Add(sensors)

	for _, name := range s.Legend {
		switch name {
		case LegendSensors:
			p.Legend.Add(name, sensors)
		case LegendDetections:
			p.Legend.Add(name, detFill, detEdge)
		case LegendTruth:
			p.Legend.Add(name, truth)
		case LegendOrigin:
			if originThumb != nil {
				p.Legend.Add(name, originThumb)
			}
		}
	}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10

	// Fixed bounds; Add widens the axes to the data otherwise.
	p.X.Min, p.X.Max = float64(s.Bounds.XMin), float64(s.Bounds.XMax)
	p.Y.Min, p.Y.Max = float64(s.Bounds.YMin), float64(s.Bounds.YMax)

	return p, nil
}

func styleDark(p *plot.Plot) {
	p.BackgroundColor = backgroundColor
	p.Title.TextStyle.Color = foregroundColor
	p.Legend.TextStyle.Color = foregroundColor
	for _, ax := range []*plot.Axis{&p.X, &p.Y} {
		ax.Label.TextStyle.Color = foregroundColor
		ax.Color = foregroundColor
		ax.Tick.Color = foregroundColor
		ax.Tick.Label.Color = foregroundColor
	}
}

func toXY(pt grid.Point) plotter.XY {
	return plotter.XY{X: float64(pt.X), Y: float64(pt.Y)}
}

func toXYs(pts []grid.Point) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i] = toXY(pt)
	}
	return xys
}
