package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/particulate.report/internal/db"
	"github.com/banshee-data/particulate.report/internal/opcn3"
)

// pmSeries are the series drawn on both charts.
var pmSeries = summarised[:3]

// WritePNG draws PM1, PM2.5 and PM10 against time and writes a PNG.
// Missed intervals break the lines. Tick labels use the location of the
// first row.
func WritePNG(rows []db.Row, title string, w io.Writer) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Concentration (µg/m³)"
	loc := time.UTC
	if len(rows) > 0 {
		loc = rows[0].Time.Location()
	}
	p.X.Tick.Marker = plot.TimeTicks{
		Format: "01-02\n15:04",
		Time:   func(t float64) time.Time { return time.Unix(int64(t), 0).In(loc) },
	}
	p.Add(plotter.NewGrid())

	for i, q := range pmSeries {
		var first *plotter.Line
		for _, seg := range segments(rows, q.value) {
			line, err := plotter.NewLine(seg)
			if err != nil {
				return fmt.Errorf("failed to build %s line: %w", q.name, err)
			}
			line.Color = plotutil.Color(i)
			line.Width = vg.Points(1)
			p.Add(line)
			if first == nil {
				first = line
			}
		}
		if first != nil {
			p.Legend.Add(q.name, first)
		}
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

// segments splits rows into runs of consecutive non-missed points.
func segments(rows []db.Row, value func(opcn3.Measurement) float64) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for _, r := range rows {
		if r.Missed {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(r.Time.Unix()), Y: value(r.Measurement)})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// WriteHTML renders an interactive PM line chart. Missed intervals show as
// gaps.
func WriteHTML(rows []db.Row, title string, w io.Writer) error {
	x := make([]string, len(rows))
	for i, r := range rows {
		x[i] = r.Time.Format(time.DateTime)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d intervals", len(rows))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "µg/m³"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(x)
	for _, q := range pmSeries {
		data := make([]opts.LineData, len(rows))
		for i, r := range rows {
			if r.Missed {
				data[i] = opts.LineData{Value: "-"}
				continue
			}
			data[i] = opts.LineData{Value: q.value(r.Measurement)}
		}
		line.AddSeries(q.name, data)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
