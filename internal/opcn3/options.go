package opcn3

import (
	"time"

	"github.com/banshee-data/particulate.report/internal/timeutil"
)

// Timing holds every wait the protocol needs. The waits are floors: the
// device tolerates longer gaps but not shorter ones.
type Timing struct {
	Boot     time.Duration // before the init sequence
	Short    time.Duration // between command bytes and per payload byte
	Retry    time.Duration // between failed probes
	Settle   time.Duration // after a fan/laser change
	Cooldown time.Duration // after the retry ceiling, lets the SPI buffer clear
}

// DefaultTiming returns the waits used with the real instrument.
func DefaultTiming() Timing {
	return Timing{
		Boot:     time.Second,
		Short:    time.Microsecond,
		Retry:    10 * time.Microsecond,
		Settle:   2 * time.Second,
		Cooldown: 3 * time.Second,
	}
}

// Config holds the driver configuration.
type Config struct {
	Commands Commands
	Timing   Timing

	// Clock provides sleeps. Tests inject a timeutil.MockClock.
	Clock timeutil.Clock

	// ReadTimeout bounds every ReadUpTo call.
	ReadTimeout time.Duration

	// MaxAttempts is the retry ceiling. A cooldown starts once the attempt
	// counter exceeds it.
	MaxAttempts int

	// MaxCooldownCycles bounds the power commands. Zero keeps polling forever.
	MaxCooldownCycles int

	// Diagnostics, if set, receives raw unvalidated bytes.
	Diagnostics DiagnosticFunc
}

func defaultConfig() Config {
	return Config{
		Commands:    DefaultCommands(),
		Timing:      DefaultTiming(),
		Clock:       timeutil.RealClock{},
		ReadTimeout: time.Second,
		MaxAttempts: 20,
	}
}

// Option is a functional option for configuring the Driver.
type Option func(*Config)

// WithCommands replaces the command table, for adapters that document a
// different filler byte.
func WithCommands(c Commands) Option {
	return func(cfg *Config) {
		cfg.Commands = c
	}
}

// WithTiming replaces the protocol waits.
func WithTiming(t Timing) Option {
	return func(cfg *Config) {
		cfg.Timing = t
	}
}

// WithClock injects the clock used for every wait.
//
// Example:
//
//	clock := timeutil.NewMockClock(time.Now())
//	drv := opcn3.New(ch, opcn3.WithClock(clock))
func WithClock(c timeutil.Clock) Option {
	return func(cfg *Config) {
		if c != nil {
			cfg.Clock = c
		}
	}
}

// WithReadTimeout sets the per-read timeout passed to the channel.
func WithReadTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.ReadTimeout = d
		}
	}
}

// WithMaxAttempts sets the retry ceiling.
func WithMaxAttempts(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxAttempts = n
		}
	}
}

// WithMaxCooldownCycles bounds how many cooldowns SetFanPower and
// SetLaserPower sit through before giving up with ErrCooldownLimit.
// Zero, the default, polls until the device answers.
func WithMaxCooldownCycles(n int) Option {
	return func(cfg *Config) {
		if n >= 0 {
			cfg.MaxCooldownCycles = n
		}
	}
}

// WithDiagnostics installs a hook for raw acknowledgement bytes.
func WithDiagnostics(fn DiagnosticFunc) Option {
	return func(cfg *Config) {
		cfg.Diagnostics = fn
	}
}
