// Package charts renders browser-facing chart HTML for sensor axis data
// and joint angle series, plus PNG report export.
package charts

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/motion.report/internal/angles"
)

// AxisSeries is one named line on an axis chart.
type AxisSeries struct {
	Name   string
	Values []float64
}

// RenderAxisChart renders a line chart of one or more axis series over a
// shared time base. Series longer than the time base are truncated.
func RenderAxisChart(w io.Writer, title string, times []float64, series []AxisSeries) error {
	if len(series) == 0 {
		return fmt.Errorf("no series to chart")
	}

	x := make([]string, len(times))
	for i, t := range times {
		x[i] = strconv.FormatFloat(t, 'f', 3, 64)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("samples=%d", len(times))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)"}),
	)

	line.SetXAxis(x)
	for _, s := range series {
		n := len(s.Values)
		if n > len(times) {
			n = len(times)
		}
		data := make([]opts.LineData, n)
		for i := 0; i < n; i++ {
			data[i] = opts.LineData{Value: s.Values[i]}
		}
		line.AddSeries(s.Name, data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))
	}

	return line.Render(w)
}

// RenderAngleChart renders the elbow/wrist relative angle series as a
// line chart.
func RenderAngleChart(w io.Writer, title string, series angles.Series) error {
	return RenderAxisChart(w, title, series.Times, []AxisSeries{
		{Name: angles.RoleElbow, Values: series.Elbow},
		{Name: angles.RoleWrist, Values: series.Wrist},
	})
}

// WriteAnglePNG writes a PNG report of the angle series, one line per
// joint. Used for offline export rather than the live browser view.
func WriteAnglePNG(w io.Writer, title string, series angles.Series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Angle (deg)"

	joints := []struct {
		name   string
		values []float64
		color  color.Color
	}{
		{angles.RoleElbow, series.Elbow, color.RGBA{R: 0xd9, G: 0x53, B: 0x4f, A: 0xff}},
		{angles.RoleWrist, series.Wrist, color.RGBA{R: 0x42, G: 0x8b, B: 0xca, A: 0xff}},
	}
	for _, j := range joints {
		n := len(j.values)
		if n > len(series.Times) {
			n = len(series.Times)
		}
		pts := make(plotter.XYs, n)
		for i := 0; i < n; i++ {
			pts[i] = plotter.XY{X: series.Times[i], Y: j.values[i]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("%s line: %w", j.name, err)
		}
		line.Color = j.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(j.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	wt, err := p.WriterTo(12*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
