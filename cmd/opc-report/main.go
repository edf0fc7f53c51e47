package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/banshee-data/particulate.report/internal/db"
	"github.com/banshee-data/particulate.report/internal/report"
	"github.com/banshee-data/particulate.report/internal/units"
)

var (
	dbPath  = flag.String("db", "data/particulate.db", "Path to the measurement database")
	since   = flag.String("since", "24h", "Start of the window: RFC3339, YYYY-MM-DD, or a duration before now")
	until   = flag.String("until", "", "End of the window (exclusive), same forms as -since; empty means now")
	pngPath = flag.String("png", "", "Write a PNG chart to this path")
	htmlOut = flag.String("html", "", "Write an interactive HTML chart to this path")
	title   = flag.String("title", "OPC-N3 particulate matter", "Chart title")
	tz      = flag.String("tz", "Local", "Timezone for dates and chart labels")
	runs    = flag.Bool("runs", false, "List recorded runs and exit")
)

func main() {
	flag.Parse()

	store, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	if *runs {
		if err := listRuns(store, os.Stdout); err != nil {
			log.Fatalf("failed to list runs: %v", err)
		}
		return
	}

	loc, err := units.LoadTimezone(*tz)
	if err != nil {
		log.Fatalf("invalid -tz: %v", err)
	}
	now := time.Now().In(loc)
	from, err := parseTime(*since, now)
	if err != nil {
		log.Fatalf("invalid -since: %v", err)
	}
	to := now
	if *until != "" {
		if to, err = parseTime(*until, now); err != nil {
			log.Fatalf("invalid -until: %v", err)
		}
	}
	if !from.Before(to) {
		log.Fatalf("empty window: %s is not before %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	rows, err := store.Measurements(from, to)
	if err != nil {
		log.Fatalf("failed to load measurements: %v", err)
	}
	for i := range rows {
		rows[i].Time = rows[i].Time.In(loc)
	}
	chartTitle := fmt.Sprintf("%s, %s", *title, units.TimezoneLabel(loc, to))

	if err := report.Summarize(rows).WriteText(os.Stdout); err != nil {
		log.Fatalf("failed to write summary: %v", err)
	}
	if len(rows) == 0 {
		return
	}

	if *pngPath != "" {
		if err := writeFile(*pngPath, func(w io.Writer) error { return report.WritePNG(rows, chartTitle, w) }); err != nil {
			log.Fatalf("failed to write PNG: %v", err)
		}
		log.Printf("wrote %s", *pngPath)
	}
	if *htmlOut != "" {
		if err := writeFile(*htmlOut, func(w io.Writer) error { return report.WriteHTML(rows, chartTitle, w) }); err != nil {
			log.Fatalf("failed to write HTML: %v", err)
		}
		log.Printf("wrote %s", *htmlOut)
	}
}

// parseTime accepts an RFC3339 timestamp, a date in now's zone, or a duration
// counted back from now.
func parseTime(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, now.Location()); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a timestamp, date or duration", s)
	}
	if d < 0 {
		return time.Time{}, fmt.Errorf("duration %s must not be negative", d)
	}
	return now.Add(-d), nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func listRuns(store *db.DB, w io.Writer) error {
	rs, err := store.Runs()
	if err != nil {
		return err
	}
	for _, r := range rs {
		fmt.Fprintf(w, "%s  %s  %s  %s\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Instrument, r.SoftwareVersion)
	}
	return nil
}
