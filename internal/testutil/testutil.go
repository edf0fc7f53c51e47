// Package testutil provides shared test helpers and measurement fixtures.
package testutil

import (
	"math"
	"testing"
	"time"

	"github.com/banshee-data/particulate.report/internal/db"
	"github.com/banshee-data/particulate.report/internal/opcn3"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertFloat checks that got is within tol of want.
func AssertFloat(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v (±%v)", name, got, want, tol)
	}
}

// Measurement returns a plausible measurement with the given PM values.
func Measurement(pm1, pm25, pm10 float64) opcn3.Measurement {
	return opcn3.Measurement{
		TimeOfFlight:     10,
		SamplePeriod:     1.4,
		FlowRate:         5.5,
		Temperature:      21.5,
		RelativeHumidity: 45,
		PM1:              pm1,
		PM2_5:            pm25,
		PM10:             pm10,
	}
}

// Rows builds stored rows one step apart starting at start. PM2.5 and PM10
// are derived from PM1 (x2 and x3). A NaN entry becomes a missed interval.
func Rows(start time.Time, step time.Duration, pm1 ...float64) []db.Row {
	rows := make([]db.Row, len(pm1))
	for i, v := range pm1 {
		rows[i] = db.Row{RunID: "run", Time: start.Add(time.Duration(i) * step)}
		if math.IsNaN(v) {
			rows[i].Missed = true
			continue
		}
		rows[i].Measurement = Measurement(v, 2*v, 3*v)
	}
	return rows
}
