// Package db stores OPC-N3 measurements in SQLite.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/particulate.report/internal/monitoring"
	"github.com/banshee-data/particulate.report/internal/opcn3"
	"github.com/banshee-data/particulate.report/internal/version"
)

type DB struct {
	*sql.DB
	migrations fs.FS
}

// Run is one acquisition session of one instrument.
type Run struct {
	ID              string
	Instrument      string
	StartedAt       time.Time
	SoftwareVersion string
}

// Row is one stored interval. Missed rows carry no readings.
type Row struct {
	RunID       string
	Time        time.Time
	Missed      bool
	Measurement opcn3.Measurement
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// OpenDB opens the database at path and applies the connection PRAGMAs
// without touching the schema.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return &DB{DB: sqlDB, migrations: MigrationsFS()}, nil
}

// NewDB opens the database at path and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	v, _, err := db.MigrateVersion()
	if err != nil {
		db.Close()
		return nil, err
	}
	monitoring.Logf("[db] %s at schema version %d", path, v)
	return db, nil
}

// StartRun records a new run and returns its ID.
func (db *DB) StartRun(instrument string, startedAt time.Time) (string, error) {
	id := uuid.New().String()
	_, err := db.Exec(
		`INSERT INTO runs (run_id, instrument, started_at, software_version) VALUES (?, ?, ?, ?)`,
		id, instrument, unixSeconds(startedAt), version.Version,
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// RecordMeasurement stores one decoded measurement. Bins are stored as a
// JSON array when present.
func (db *DB) RecordMeasurement(runID string, ts time.Time, m opcn3.Measurement) error {
	var bins sql.NullString
	if m.HasBins() {
		b, err := json.Marshal(m.Bins)
		if err != nil {
			return fmt.Errorf("failed to encode bins: %w", err)
		}
		bins = sql.NullString{String: string(b), Valid: true}
	}

	_, err := db.Exec(
		`INSERT INTO measurements (
			run_id, ts_unix, tof_us, period_s, flow_ml_s, temp_c, rh_pct,
			pm1, pm2_5, pm10, bins_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, unixSeconds(ts), m.TimeOfFlight, m.SamplePeriod, m.FlowRate,
		m.Temperature, m.RelativeHumidity, m.PM1, m.PM2_5, m.PM10, bins,
	)
	if err != nil {
		return fmt.Errorf("failed to record measurement: %w", err)
	}
	return nil
}

// RecordMissed stores an interval in which the device produced no data.
func (db *DB) RecordMissed(runID string, ts time.Time) error {
	_, err := db.Exec(`INSERT INTO measurements (run_id, ts_unix) VALUES (?, ?)`, runID, unixSeconds(ts))
	if err != nil {
		return fmt.Errorf("failed to record missed interval: %w", err)
	}
	return nil
}

// Measurements returns every row with since <= ts < until, oldest first.
// A zero until means no upper bound.
func (db *DB) Measurements(since, until time.Time) ([]Row, error) {
	upper := math.MaxFloat64
	if !until.IsZero() {
		upper = unixSeconds(until)
	}

	rows, err := db.Query(
		`SELECT run_id, ts_unix, tof_us, period_s, flow_ml_s, temp_c, rh_pct,
			pm1, pm2_5, pm10, bins_json
		FROM measurements
		WHERE ts_unix >= ? AND ts_unix < ?
		ORDER BY ts_unix, measurement_id`,
		unixSeconds(since), upper,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r                           Row
			ts                          float64
			tof, period, flow, temp, rh sql.NullFloat64
			pm1, pm25, pm10             sql.NullFloat64
			bins                        sql.NullString
		)
		if err := rows.Scan(&r.RunID, &ts, &tof, &period, &flow, &temp, &rh, &pm1, &pm25, &pm10, &bins); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		r.Time = fromUnixSeconds(ts)
		if !pm1.Valid {
			r.Missed = true
			out = append(out, r)
			continue
		}
		r.Measurement = opcn3.Measurement{
			TimeOfFlight:     tof.Float64,
			SamplePeriod:     period.Float64,
			FlowRate:         flow.Float64,
			Temperature:      temp.Float64,
			RelativeHumidity: rh.Float64,
			PM1:              pm1.Float64,
			PM2_5:            pm25.Float64,
			PM10:             pm10.Float64,
		}
		if bins.Valid {
			if err := json.Unmarshal([]byte(bins.String), &r.Measurement.Bins); err != nil {
				return nil, fmt.Errorf("failed to decode bins: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Runs returns every run, oldest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`SELECT run_id, instrument, started_at, software_version FROM runs ORDER BY started_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			started float64
			sw      sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Instrument, &started, &sw); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = fromUnixSeconds(started)
		r.SoftwareVersion = sw.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(math.Round(s*1e9))).UTC()
}
