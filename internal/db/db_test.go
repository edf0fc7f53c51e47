package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/particulate.report/internal/opcn3"
	"github.com/banshee-data/particulate.report/internal/version"
)

var t0 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestStartRun(t *testing.T) {
	db := setupTestDB(t)

	id, err := db.StartRun("Roof", t0)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "run id should be a uuid")

	id2, err := db.StartRun("Roof", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)

	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, Run{ID: id, Instrument: "Roof", StartedAt: t0, SoftwareVersion: version.Version}, runs[0])
	assert.Equal(t, id2, runs[1].ID)
}

func TestRecordAndQueryMeasurements(t *testing.T) {
	db := setupTestDB(t)
	runID, err := db.StartRun("OPC-N3", t0)
	require.NoError(t, err)

	withBins := opcn3.Measurement{
		TimeOfFlight: 10, SamplePeriod: 12.34, FlowRate: 5.5,
		Temperature: 21.25, RelativeHumidity: 40.5,
		PM1: 1.23, PM2_5: 4.56, PM10: 7.89,
		Bins: make([]uint16, opcn3.BinCount),
	}
	withBins.Bins[3] = 17
	plain := opcn3.Measurement{PM1: 2, PM2_5: 3, PM10: 4}

	require.NoError(t, db.RecordMeasurement(runID, t0, withBins))
	require.NoError(t, db.RecordMissed(runID, t0.Add(time.Minute)))
	require.NoError(t, db.RecordMeasurement(runID, t0.Add(2*time.Minute), plain))

	rows, err := db.Measurements(t0, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Row{RunID: runID, Time: t0, Measurement: withBins}, rows[0])
	assert.Equal(t, Row{RunID: runID, Time: t0.Add(time.Minute), Missed: true}, rows[1])
	assert.Equal(t, plain, rows[2].Measurement)
	assert.Nil(t, rows[2].Measurement.Bins)
}

func TestMeasurementsWindow(t *testing.T) {
	db := setupTestDB(t)
	runID, err := db.StartRun("OPC-N3", t0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.RecordMeasurement(runID, t0.Add(time.Duration(i)*time.Minute), opcn3.Measurement{PM1: float64(i)}))
	}

	rows, err := db.Measurements(t0.Add(time.Minute), t0.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 2, "until is exclusive")
	assert.Equal(t, 1.0, rows[0].Measurement.PM1)
	assert.Equal(t, 2.0, rows[1].Measurement.PM1)

	rows, err = db.Measurements(t0.Add(time.Hour), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRecordMeasurement_UnknownRun(t *testing.T) {
	db := setupTestDB(t)
	err := db.RecordMeasurement("no-such-run", t0, opcn3.Measurement{})
	assert.Error(t, err, "foreign key should reject unknown runs")
}
