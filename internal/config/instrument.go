package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical instrument defaults file.
const DefaultConfigPath = "config/opcn3.defaults.json"

// maxFileSize caps config files at 1MB.
const maxFileSize = 1 * 1024 * 1024

// Defaults used when a field is absent from the file.
const (
	DefaultName          = "OPC-N3"
	DefaultPort          = "/dev/ttyACM0"
	DefaultInterval      = 60 * time.Second
	DefaultDataDir       = "data"
	DefaultDatabasePath  = "data/particulate.db"
	DefaultReadTimeout   = time.Second
	DefaultBaudRate      = 9600
	defaultUseBinData    = false
	defaultAlignToClock  = true
	defaultMaxCooldowns  = 0
	minInterval          = time.Second
	maxInstrumentNameLen = 64
)

// InstrumentConfig is the JSON configuration of one OPC-N3 installation.
// Every field is optional; the Get* methods supply defaults.
type InstrumentConfig struct {
	Name        *string `json:"name,omitempty"`
	Port        *string `json:"port,omitempty"`
	BaudRate    *int    `json:"baud_rate,omitempty"`
	ReadTimeout *string `json:"read_timeout,omitempty"` // duration string like "1s"

	UseBinData   *bool   `json:"use_bin_data,omitempty"`
	Interval     *string `json:"interval,omitempty"` // duration string like "60s"
	AlignToClock *bool   `json:"align_to_clock,omitempty"`

	// 0 keeps the driver's unbounded power-command polling.
	MaxCooldownCycles *int `json:"max_cooldown_cycles,omitempty"`

	DataDir      *string `json:"data_dir,omitempty"`
	DatabasePath *string `json:"database_path,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyInstrumentConfig returns an InstrumentConfig with all fields unset.
func EmptyInstrumentConfig() *InstrumentConfig {
	return &InstrumentConfig{}
}

// LoadInstrumentConfig loads an InstrumentConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func LoadInstrumentConfig(path string) (*InstrumentConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyInstrumentConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// current directory. Panics if the file cannot be loaded, intended for test
// setup.
func MustLoadDefaultConfig() *InstrumentConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadInstrumentConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *InstrumentConfig) Validate() error {
	if c.Name != nil {
		name := strings.TrimSpace(*c.Name)
		if name == "" {
			return fmt.Errorf("name must not be empty")
		}
		if len(name) > maxInstrumentNameLen {
			return fmt.Errorf("name must be at most %d characters, got %d", maxInstrumentNameLen, len(name))
		}
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("name %q must not contain path separators", name)
		}
	}

	if c.Port != nil && strings.TrimSpace(*c.Port) == "" {
		return fmt.Errorf("port must not be empty")
	}

	if c.Interval != nil && *c.Interval != "" {
		d, err := time.ParseDuration(*c.Interval)
		if err != nil {
			return fmt.Errorf("invalid interval '%s': %w", *c.Interval, err)
		}
		if d < minInterval {
			return fmt.Errorf("interval must be at least %v, got %v", minInterval, d)
		}
	}

	if c.ReadTimeout != nil && *c.ReadTimeout != "" {
		d, err := time.ParseDuration(*c.ReadTimeout)
		if err != nil {
			return fmt.Errorf("invalid read_timeout '%s': %w", *c.ReadTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("read_timeout must be positive, got %v", d)
		}
	}

	if c.MaxCooldownCycles != nil && *c.MaxCooldownCycles < 0 {
		return fmt.Errorf("max_cooldown_cycles must be non-negative, got %d", *c.MaxCooldownCycles)
	}

	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	return nil
}

// GetName returns the instrument name used in file names and run records.
func (c *InstrumentConfig) GetName() string {
	if c.Name == nil || strings.TrimSpace(*c.Name) == "" {
		return DefaultName
	}
	return strings.TrimSpace(*c.Name)
}

// GetPort returns the serial device path.
func (c *InstrumentConfig) GetPort() string {
	if c.Port == nil || *c.Port == "" {
		return DefaultPort
	}
	return *c.Port
}

// GetBaudRate returns the serial baud rate.
func (c *InstrumentConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return DefaultBaudRate
	}
	return *c.BaudRate
}

// GetReadTimeout parses and returns the per-read timeout.
func (c *InstrumentConfig) GetReadTimeout() time.Duration {
	return parseDurationOr(c.ReadTimeout, DefaultReadTimeout)
}

// GetUseBinData reports whether bin counts are decoded and stored.
func (c *InstrumentConfig) GetUseBinData() bool {
	if c.UseBinData == nil {
		return defaultUseBinData
	}
	return *c.UseBinData
}

// GetInterval parses and returns the measurement interval.
func (c *InstrumentConfig) GetInterval() time.Duration {
	return parseDurationOr(c.Interval, DefaultInterval)
}

// GetAlignToClock reports whether measurements start on interval boundaries.
func (c *InstrumentConfig) GetAlignToClock() bool {
	if c.AlignToClock == nil {
		return defaultAlignToClock
	}
	return *c.AlignToClock
}

// GetMaxCooldownCycles returns the power-command cooldown bound, 0 for none.
func (c *InstrumentConfig) GetMaxCooldownCycles() int {
	if c.MaxCooldownCycles == nil {
		return defaultMaxCooldowns
	}
	return *c.MaxCooldownCycles
}

// GetDataDir returns the CSV output directory.
func (c *InstrumentConfig) GetDataDir() string {
	if c.DataDir == nil || *c.DataDir == "" {
		return DefaultDataDir
	}
	return *c.DataDir
}

// GetDatabasePath returns the SQLite database path. An explicit empty string
// disables the database.
func (c *InstrumentConfig) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return DefaultDatabasePath
	}
	return *c.DatabasePath
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}
