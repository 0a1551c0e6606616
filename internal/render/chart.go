package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/multistatic/internal/grid"
)

// ChartRenderer draws a State as a self-contained interactive HTML chart.
type ChartRenderer struct {
	Width  string
	Height string
	// AssetsHost overrides where the echarts JavaScript is loaded from.
	// Empty uses the go-echarts default.
	AssetsHost string
}

// NewChartRenderer returns a renderer with the default page size.
func NewChartRenderer() *ChartRenderer {
	return &ChartRenderer{Width: "900px", Height: "720px"}
}

// Render writes s to w as HTML.
func (r *ChartRenderer) Render(w io.Writer, s *State) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       s.Title,
			Theme:           "dark",
			Width:           r.Width,
			Height:          r.Height,
			BackgroundColor: "#1a1a1a",
			AssetsHost:      r.AssetsHost,
		}),
		charts.WithTitleOpts(opts.Title{Title: s.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30px", Data: s.Legend}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "value", Min: s.Bounds.XMin, Max: s.Bounds.XMax,
			Name: s.XLabel, NameLocation: "middle", NameGap: 25,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "value", Min: s.Bounds.YMin, Max: s.Bounds.YMax,
			Name: s.YLabel, NameLocation: "middle", NameGap: 35,
		}),
	)

	scatter.AddSeries(LegendSensors, scatterData(s.Sensors),
		charts.WithScatterChartOpts(opts.ScatterChart{Symbol: "rect", SymbolSize: 10}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ffffff"}))
	scatter.AddSeries(LegendDetections, scatterData(s.Detections),
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "green", BorderColor: "lime", BorderWidth: 1}))

	lines := charts.NewLine()
	lines.AddSeries(LegendTruth, lineData(s.Truth),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: "#ffffff", Width: 2, Opacity: opts.Float(0.5)}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ffffff"}))
	for _, seg := range s.Segments() {
		lines.AddSeries(LegendOrigin, lineData([]grid.Point{seg.From, seg.To}),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: "orange", Width: 1, Opacity: opts.Float(0.5)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "orange"}))
	}
	scatter.Overlap(lines)

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func scatterData(pts []grid.Point) []opts.ScatterData {
	data := make([]opts.ScatterData, 0, len(pts))
	for _, p := range pts {
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}
	return data
}

func lineData(pts []grid.Point) []opts.LineData {
	data := make([]opts.LineData, 0, len(pts))
	for _, p := range pts {
		data = append(data, opts.LineData{Value: []interface{}{p.X, p.Y}})
	}
	return data
}
