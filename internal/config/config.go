package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted after the YAML file is read.
const (
	EnvConfigPath        = "TMSCAL_CONFIG"
	EnvBasicAuthPassword = "TMSCAL_BASIC_AUTH_PASSWORD"
	EnvSweepToken        = "TMSCAL_SWEEP_TOKEN"
)

// DefaultPath is used when neither --config nor TMSCAL_CONFIG is given.
const DefaultPath = "/etc/tmscal/config.yaml"

var ErrEmptyPath = errors.New("config path is empty")

// ICSConfig describes a single ICS feed of training schedules.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the admin API.
// PasswordHash, when set, is a bcrypt hash and takes precedence over Password.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password,omitempty" json:"-"`
	PasswordHash string `yaml:"password_hash,omitempty" json:"-"`
}

// SweepConfig controls the stored-status recalculation job.
type SweepConfig struct {
	// Cron is a 5-field cron expression evaluated in Timezone.
	Cron string `yaml:"cron" json:"cron"`
	// Token, if set, must be sent as a bearer token to POST /api/sweep.
	Token string `yaml:"token,omitempty" json:"-"`
}

// Palette maps display statuses to CSS colors.
type Palette struct {
	Upcoming  string `yaml:"upcoming" json:"upcoming"`
	Ongoing   string `yaml:"ongoing" json:"ongoing"`
	Finished  string `yaml:"finished" json:"finished"`
	Cancelled string `yaml:"cancelled" json:"cancelled"`
}

// SnapshotConfig controls the headless-browser PNG of the month page.
type SnapshotConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Output  string `yaml:"output" json:"output"`
	Width   int    `yaml:"width" json:"width"`
	Height  int    `yaml:"height" json:"height"`

	// Refresh is a 5-field cron expression for re-capturing the page so
	// feed changes and the current day show up without a sweep.
	Refresh string `yaml:"refresh" json:"refresh"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the calendar UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone that decides which calendar day "now" is.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// LogLevel is "debug", "info" (default) or "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Database is the SQLite file holding schedules.
	Database string `yaml:"database" json:"database"`

	// CacheDir stores ICS HTTP cache entries.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// ExpandHorizonDays bounds RRULE expansion of imported feeds.
	ExpandHorizonDays int `yaml:"expand_horizon_days" json:"expand_horizon_days"`

	Sweep    SweepConfig    `yaml:"sweep" json:"sweep"`
	Palette  Palette        `yaml:"palette" json:"palette"`
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`

	// ICS is the list of subscribed schedule feeds.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health, /calendar and /calendar.ics.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultPalette is the emerald/amber/slate/red scheme of the training calendar.
func DefaultPalette() Palette {
	return Palette{
		Upcoming:  "#10b981",
		Ongoing:   "#f59e0b",
		Finished:  "#94a3b8",
		Cancelled: "#ef4444",
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            "127.0.0.1:8080",
		Timezone:          "Asia/Manila",
		WeekStart:         "sunday",
		LogLevel:          "info",
		Database:          "/var/lib/tmscal/tmscal.db",
		CacheDir:          "/var/lib/tmscal/ics-cache",
		ExpandHorizonDays: 366,
		Sweep:             SweepConfig{Cron: "5 0 * * *"},
		Palette:           DefaultPalette(),
		Snapshot: SnapshotConfig{
			Output:  "/var/lib/tmscal/preview.png",
			Width:   1400,
			Height:  1000,
			Refresh: "*/15 * * * *",
		},
		ICS: []ICSConfig{},
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		c.WeekStart = def.WeekStart
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Database == "" {
		c.Database = def.Database
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.ExpandHorizonDays <= 0 {
		c.ExpandHorizonDays = def.ExpandHorizonDays
	}
	if c.Sweep.Cron == "" {
		c.Sweep.Cron = def.Sweep.Cron
	}
	if c.Palette.Upcoming == "" {
		c.Palette.Upcoming = def.Palette.Upcoming
	}
	if c.Palette.Ongoing == "" {
		c.Palette.Ongoing = def.Palette.Ongoing
	}
	if c.Palette.Finished == "" {
		c.Palette.Finished = def.Palette.Finished
	}
	if c.Palette.Cancelled == "" {
		c.Palette.Cancelled = def.Palette.Cancelled
	}
	if c.Snapshot.Output == "" {
		c.Snapshot.Output = def.Snapshot.Output
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = def.Snapshot.Width
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = def.Snapshot.Height
	}
	if c.Snapshot.Refresh == "" {
		c.Snapshot.Refresh = def.Snapshot.Refresh
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Location resolves Timezone, falling back to time.Local for unknown names.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// FirstWeekday returns the leftmost column of the month grid.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// ResolvePath picks the config path: the explicit flag, then TMSCAL_CONFIG,
// then DefaultPath.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

// LoadDotEnv loads a .env file from the working directory when one exists.
// Variables already set in the environment win.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
//   - Secrets from the environment override the file in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.applyEnv()
				return cfg, err
			}
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	cfg.applyEnv()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if pw := os.Getenv(EnvBasicAuthPassword); pw != "" && c.BasicAuth != nil {
		c.BasicAuth.Password = pw
		c.BasicAuth.PasswordHash = ""
	}
	if tok := os.Getenv(EnvSweepToken); tok != "" {
		c.Sweep.Token = tok
	}
}

// Save writes the given configuration to path atomically (temp file +
// rename) with 0600 permissions, creating the parent directory (0700).
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
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

	tmp, err := os.CreateTemp(dir, ".tmscal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
