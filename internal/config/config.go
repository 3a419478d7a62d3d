package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the dashboard.
// PasswordHash is an argon2id hash produced by `dietcal hash-password`.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"password_hash"`
}

// CaptureConfig controls the headless dashboard screenshot.
type CaptureConfig struct {
	Width          int `yaml:"width" json:"width"`
	Height         int `yaml:"height" json:"height"`
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to assign events to calendar days.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" or "sunday" (default).
	WeekStart string `yaml:"week_start" json:"week_start"`

	// EventsSource and PersonSource are file paths or http(s) URLs of the
	// events and person JSON documents.
	EventsSource string `yaml:"events_source" json:"events_source"`
	PersonSource string `yaml:"person_source" json:"person_source"`

	// CacheDir stores conditional-GET metadata and bodies of URL sources.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// CacheTTLSeconds bounds how long a loaded snapshot is reused by the
	// API before the next request loads the sources again.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`

	// RefreshCron is a cron schedule ("*/15 * * * *") for background
	// reloads pushed to live clients. "off" disables it.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is "debug", "info" or "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Local"
	defaultWeekStart    = "sunday"
	defaultEventsSource = "./data/events.json"
	defaultPersonSource = "./data/person.json"
	defaultCacheDir     = "./cache/sources"
	defaultCacheTTL     = 30
	defaultRefreshCron  = "*/15 * * * *"
	defaultLogLevel     = "info"

	// RefreshOff disables background reloads.
	RefreshOff = "off"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Timezone:        defaultTimezone,
		WeekStart:       defaultWeekStart,
		EventsSource:    defaultEventsSource,
		PersonSource:    defaultPersonSource,
		CacheDir:        defaultCacheDir,
		CacheTTLSeconds: defaultCacheTTL,
		RefreshCron:     defaultRefreshCron,
		LogLevel:        defaultLogLevel,
		Capture: CaptureConfig{
			Width:          1024,
			Height:         1400,
			TimeoutSeconds: 30,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = defaultWeekStart
	}
	if c.EventsSource == "" {
		c.EventsSource = defaultEventsSource
	}
	if c.PersonSource == "" {
		c.PersonSource = defaultPersonSource
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.CacheTTLSeconds < 0 {
		c.CacheTTLSeconds = 0
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1024
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 1400
	}
	if c.Capture.TimeoutSeconds <= 0 {
		c.Capture.TimeoutSeconds = 30
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("config: load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// FirstWeekday returns the weekday calendar rows start on.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// CacheTTL returns CacheTTLSeconds as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RefreshEnabled reports whether background reloads are configured.
func (c *Config) RefreshEnabled() bool {
	return c.RefreshCron != RefreshOff
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse YAML config: %w", err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dietcal-config-*.tmp")
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
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
