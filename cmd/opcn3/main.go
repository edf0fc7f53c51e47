package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/particulate.report/internal/config"
	"github.com/banshee-data/particulate.report/internal/console"
	"github.com/banshee-data/particulate.report/internal/csvlog"
	"github.com/banshee-data/particulate.report/internal/db"
	"github.com/banshee-data/particulate.report/internal/fsutil"
	"github.com/banshee-data/particulate.report/internal/monitoring"
	"github.com/banshee-data/particulate.report/internal/opcn3"
	"github.com/banshee-data/particulate.report/internal/schedule"
	"github.com/banshee-data/particulate.report/internal/serialport"
	"github.com/banshee-data/particulate.report/internal/timeutil"
	"github.com/banshee-data/particulate.report/internal/version"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath, "Path to the instrument config JSON")
	port       = flag.String("port", "", "Serial port to use, overrides the config (ignored in dev mode)")
	devMode    = flag.Bool("dev", false, "Run against a simulated sensor")
	once       = flag.Bool("once", false, "Take a single measurement and exit")
	verbose    = flag.Bool("verbose", false, "Log protocol diagnostics")
	versionOut = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *versionOut {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := config.LoadInstrumentConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("opcn3: %v", err)
	}
}

func run(ctx context.Context, cfg *config.InstrumentConfig, out io.Writer) error {
	printer := console.NewPrinter(out)
	printer.Line()
	printer.Title(fmt.Sprintf("%s particulate monitor", cfg.GetName()))
	printer.Title(version.String())
	printer.Line()

	dataDir, err := fsutil.FindDataDir(fsutil.OSFileSystem{}, cfg.GetDataDir())
	if err != nil {
		return fmt.Errorf("failed to prepare data directory: %w", err)
	}
	printer.Norm(fmt.Sprintf("Data directory: %s", dataDir))

	ch, closeCh, err := openChannel(cfg)
	if err != nil {
		return err
	}
	defer closeCh()

	var store *db.DB
	if path := cfg.GetDatabasePath(); path != "" {
		store, err = db.NewDB(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
	}

	driver := opcn3.New(ch, driverOptions(cfg)...)
	a := newAcquirer(driver, cfg, store, csvlog.NewWriter(dataDir, cfg.GetName()), printer)
	if err := a.start(); err != nil {
		return err
	}
	if *once {
		return a.step(time.Now())
	}

	sched := &schedule.Scheduler{
		Clock:    timeutil.RealClock{},
		Interval: cfg.GetInterval(),
		Align:    cfg.GetAlignToClock(),
	}
	log.Printf("measuring every %s", cfg.GetInterval())
	if err := sched.Run(ctx, a.step); err != nil {
		return err
	}
	log.Print("measurement loop stopped")
	return nil
}

// openChannel returns the byte channel to the sensor and a function that
// releases it.
func openChannel(cfg *config.InstrumentConfig) (opcn3.Channel, func(), error) {
	if *devMode {
		log.Print("dev mode: using a simulated OPC-N3")
		return newDevDevice(rand.New(rand.NewSource(time.Now().UnixNano()))), func() {}, nil
	}

	opts := serialport.DefaultPortOptions()
	opts.BaudRate = cfg.GetBaudRate()
	opts.ReadTimeout = cfg.GetReadTimeout()
	ch, err := serialport.Open(cfg.GetPort(), opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", cfg.GetPort(), err)
	}
	return ch, func() {
		if err := ch.Close(); err != nil {
			log.Printf("failed to close serial port: %v", err)
		}
	}, nil
}

// driverOptions maps the instrument config onto driver options.
func driverOptions(cfg *config.InstrumentConfig) []opcn3.Option {
	opts := []opcn3.Option{
		opcn3.WithReadTimeout(cfg.GetReadTimeout()),
		opcn3.WithDiagnostics(func(ev opcn3.Event) {
			monitoring.Debugf("[opcn3] %s cmd=0x%02X step=%d bytes=% X", ev.Kind, ev.Command, ev.Step, ev.Bytes)
		}),
	}
	if n := cfg.GetMaxCooldownCycles(); n > 0 {
		opts = append(opts, opcn3.WithMaxCooldownCycles(n))
	}
	return opts
}

// acquirer takes one measurement per step and fans it out to the console,
// the daily CSV file and the database.
type acquirer struct {
	driver  *opcn3.Driver
	csv     *csvlog.Writer
	store   *db.DB
	printer *console.Printer
	name    string
	useBins bool
	runID   string
}

func newAcquirer(driver *opcn3.Driver, cfg *config.InstrumentConfig, store *db.DB, csv *csvlog.Writer, printer *console.Printer) *acquirer {
	return &acquirer{
		driver:  driver,
		csv:     csv,
		store:   store,
		printer: printer,
		name:    cfg.GetName(),
		useBins: cfg.GetUseBinData(),
	}
}

// start initializes the sensor, runs the power-cycle connection test and
// opens a run in the database.
func (a *acquirer) start() error {
	a.printer.Norm("Initialising sensor")
	if err := a.driver.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize sensor: %w", err)
	}
	if err := connectionTest(a.driver); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	a.printer.Norm("Connection test passed")

	if a.store != nil {
		id, err := a.store.StartRun(a.name, time.Now())
		if err != nil {
			return fmt.Errorf("failed to start run: %w", err)
		}
		a.runID = id
		log.Printf("started run %s", id)
	}
	return nil
}

// connectionTest cycles the fan and the laser, leaving both on.
func connectionTest(d *opcn3.Driver) error {
	steps := []struct {
		name string
		fn   func(bool) error
		on   bool
	}{
		{"fan off", d.SetFanPower, false},
		{"fan on", d.SetFanPower, true},
		{"laser off", d.SetLaserPower, false},
		{"laser on", d.SetLaserPower, true},
	}
	for _, s := range steps {
		if err := s.fn(s.on); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		monitoring.Debugf("[opcn3] connection test: %s", s.name)
	}
	return nil
}

// step takes one measurement. A read that yields nothing is recorded as a
// missed interval. Channel failures stop the loop.
func (a *acquirer) step(ts time.Time) error {
	m, err := a.driver.ReadMeasurement(a.useBins)
	if err != nil {
		return err
	}
	if m == nil {
		log.Printf("no measurement at %s", ts.Format(csvlog.TimestampLayout))
		return a.recordMissed(ts)
	}

	a.printer.Measurement(ts, *m)
	if err := a.csv.Append(ts, m.Fields()); err != nil {
		log.Printf("failed to append CSV row: %v", err)
	}
	if a.store != nil {
		if err := a.store.RecordMeasurement(a.runID, ts, *m); err != nil {
			log.Printf("failed to record measurement: %v", err)
		}
	}
	return nil
}

func (a *acquirer) recordMissed(ts time.Time) error {
	if err := a.csv.Append(ts, nil); err != nil {
		log.Printf("failed to append CSV row: %v", err)
	}
	if a.store != nil {
		if err := a.store.RecordMissed(a.runID, ts); err != nil {
			log.Printf("failed to record missed interval: %v", err)
		}
	}
	return nil
}
