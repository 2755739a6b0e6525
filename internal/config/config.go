package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// ImportConfig describes an ICS feed whose events become one-off matches
// of a single group at a single gym.
type ImportConfig struct {
	// ID is an internal identifier used for the fetch cache and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// GroupID and GymID are assigned to every imported match.
	GroupID string `yaml:"group_id" json:"group_id"`
	GymID   string `yaml:"gym_id" json:"gym_id"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the SQLite database file.
	Path          string `yaml:"path" json:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
}

// BusyTimeout returns BusyTimeoutMS as a duration.
func (s StorageConfig) BusyTimeout() time.Duration {
	return time.Duration(s.BusyTimeoutMS) * time.Millisecond
}

// ExportConfig controls the ICS file written by the refresh job.
type ExportConfig struct {
	// ICSPath is written on every refresh when non-empty.
	ICSPath      string `yaml:"ics_path" json:"ics_path"`
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`
}

// CaptureConfig controls the agenda screenshot taken by the refresh job.
type CaptureConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	OutputPath string `yaml:"output_path" json:"output_path"`
	Width      int    `yaml:"width" json:"width"`
	Height     int    `yaml:"height" json:"height"`
	TimeoutSec int    `yaml:"timeout_sec" json:"timeout_sec"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to decide "today" and to stamp
	// exported events (e.g. "Europe/Rome").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday starts a week in month and agenda
	// views. Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for imports, export and capture.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of days exported from today.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// SeedDefaults writes the demo club into an empty store at startup.
	SeedDefaults bool `yaml:"seed_defaults" json:"seed_defaults"`

	Storage StorageConfig  `yaml:"storage" json:"storage"`
	Export  ExportConfig   `yaml:"export" json:"export"`
	Capture CaptureConfig  `yaml:"capture" json:"capture"`
	Imports []ImportConfig `yaml:"imports" json:"imports"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen   = "127.0.0.1:8080"
	defaultTimezone = "Europe/Rome"
	defaultRefresh  = "*/15 * * * *"
	defaultHorizon  = 60
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		WeekStart:    "monday",
		RefreshCron:  defaultRefresh,
		HorizonDays:  defaultHorizon,
		LogLevel:     "info",
		SeedDefaults: true,
		Storage: StorageConfig{
			Driver:        "sqlite",
			Path:          "./data/gymcal.db",
			BusyTimeoutMS: 5000,
		},
		Export: ExportConfig{
			CalendarName: "gymcal",
		},
		Capture: CaptureConfig{
			OutputPath: "./data/agenda.png",
			Width:      1200,
			Height:     1600,
			TimeoutSec: 30,
		},
		Imports:   []ImportConfig{},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	// Unknown values fall back to monday.
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "monday"
	}

	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizon
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	// A path without a driver means a database file.
	if c.Storage.Driver == "" {
		if c.Storage.Path != "" {
			c.Storage.Driver = "sqlite"
		} else {
			c.Storage.Driver = "memory"
		}
	}
	if c.Storage.Driver != "memory" && c.Storage.Path == "" {
		c.Storage.Path = "./data/gymcal.db"
	}
	if c.Export.CalendarName == "" {
		c.Export.CalendarName = "gymcal"
	}

	if c.Capture.OutputPath == "" {
		c.Capture.OutputPath = "./data/agenda.png"
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1200
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 1600
	}
	if c.Capture.TimeoutSec <= 0 {
		c.Capture.TimeoutSec = 30
	}

	if c.Imports == nil {
		c.Imports = []ImportConfig{}
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FirstWeekday returns the configured week start.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Import looks up an import source by id.
func (c *Config) Import(id string) (ImportConfig, bool) {
	for _, imp := range c.Imports {
		if imp.ID == id {
			return imp, true
		}
	}
	return ImportConfig{}, false
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	seen := map[string]bool{}
	for i, imp := range c.Imports {
		switch {
		case imp.ID == "":
			errs = append(errs, fmt.Errorf("imports[%d]: id is required", i))
		case seen[imp.ID]:
			errs = append(errs, fmt.Errorf("imports[%d]: duplicate id %q", i, imp.ID))
		}
		seen[imp.ID] = true
		if imp.URL == "" || imp.GroupID == "" || imp.GymID == "" {
			errs = append(errs, fmt.Errorf("imports[%d]: url, group_id and gym_id are required", i))
		}
	}
	return errors.Join(errs...)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller decides whether an unsaved default is good enough.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, creating the parent directory (0700) when needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".gymcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
