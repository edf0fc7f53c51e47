// Package report summarises stored measurements and renders them as charts.
package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/particulate.report/internal/db"
	"github.com/banshee-data/particulate.report/internal/opcn3"
)

// Stat describes one measured quantity over a window.
type Stat struct {
	Name   string
	Mean   float64
	StdDev float64
	Min    float64
	Median float64
	Max    float64
}

// Summary covers a window of rows. Missed intervals are counted but take no
// part in the statistics.
type Summary struct {
	Start, End time.Time
	Count      int
	Missed     int
	Stats      []Stat
}

// summarised lists the quantities in report order.
var summarised = []struct {
	name  string
	value func(opcn3.Measurement) float64
}{
	{opcn3.ColumnPM1, func(m opcn3.Measurement) float64 { return m.PM1 }},
	{opcn3.ColumnPM2_5, func(m opcn3.Measurement) float64 { return m.PM2_5 }},
	{opcn3.ColumnPM10, func(m opcn3.Measurement) float64 { return m.PM10 }},
	{opcn3.ColumnTemperature, func(m opcn3.Measurement) float64 { return m.Temperature }},
	{opcn3.ColumnHumidity, func(m opcn3.Measurement) float64 { return m.RelativeHumidity }},
}

// Summarize computes per-quantity statistics over rows.
func Summarize(rows []db.Row) Summary {
	var s Summary
	if len(rows) == 0 {
		return s
	}
	s.Start = rows[0].Time
	s.End = rows[len(rows)-1].Time

	series := make([][]float64, len(summarised))
	for _, r := range rows {
		if r.Time.Before(s.Start) {
			s.Start = r.Time
		}
		if r.Time.After(s.End) {
			s.End = r.Time
		}
		if r.Missed {
			s.Missed++
			continue
		}
		s.Count++
		for i, q := range summarised {
			series[i] = append(series[i], q.value(r.Measurement))
		}
	}
	if s.Count == 0 {
		return s
	}

	s.Stats = make([]Stat, len(summarised))
	for i, q := range summarised {
		xs := series[i]
		sort.Float64s(xs)
		st := Stat{
			Name:   q.name,
			Mean:   stat.Mean(xs, nil),
			Min:    floats.Min(xs),
			Median: stat.Quantile(0.5, stat.Empirical, xs, nil),
			Max:    floats.Max(xs),
		}
		if len(xs) > 1 {
			st.StdDev = stat.StdDev(xs, nil)
		}
		s.Stats[i] = st
	}
	return s
}

// Availability is the fraction of intervals that produced data.
func (s Summary) Availability() float64 {
	total := s.Count + s.Missed
	if total == 0 {
		return 0
	}
	return float64(s.Count) / float64(total)
}

// WriteText renders the summary as an aligned table.
func (s Summary) WriteText(w io.Writer) error {
	if s.Count+s.Missed == 0 {
		_, err := fmt.Fprintln(w, "no measurements in window")
		return err
	}
	fmt.Fprintf(w, "%s to %s: %d measurements, %d missed (%.1f%% available)\n",
		s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339), s.Count, s.Missed, 100*s.Availability())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tmean\tstddev\tmin\tmedian\tmax\t")
	for _, st := range s.Stats {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t\n", st.Name, st.Mean, st.StdDev, st.Min, st.Median, st.Max)
	}
	return tw.Flush()
}
