// Package config loads and saves the adpulse config file and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theirongolddev/adpulse/internal/source"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultRefreshInterval = 5 * time.Minute
	MinRefreshInterval     = 30 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
)

// Config holds all adpulse configuration.
type Config struct {
	General    GeneralConfig      `toml:"general"`
	Refresh    RefreshConfig      `toml:"refresh"`
	Daemon     DaemonConfig       `toml:"daemon"`
	Appearance AppearanceConfig   `toml:"appearance"`
	Sources    []SourceConfig     `toml:"sources"`
	Brands     []source.BrandRule `toml:"brands"`
}

// GeneralConfig holds dashboard defaults.
type GeneralConfig struct {
	DefaultGranularity string `toml:"default_granularity"`
	DefaultDimension   string `toml:"default_dimension"`
	DefaultMetric      string `toml:"default_metric"`
	Locale             string `toml:"locale"`
}

// RefreshConfig controls how often sources are re-fetched. Durations use
// Go syntax ("5m", "90s").
type RefreshConfig struct {
	Interval string `toml:"interval"`
	Timeout  string `toml:"timeout"`
	// Auto makes the dashboard reload on every interval.
	Auto bool `toml:"auto"`
}

// DaemonConfig holds settings for `adpulse daemon`.
type DaemonConfig struct {
	Addr         string `toml:"addr"`
	EventsBuffer int    `toml:"events_buffer"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// SourceConfig is one published CSV feed.
type SourceConfig struct {
	Name      string `toml:"name"`
	Schema    string `toml:"schema"`
	URL       string `toml:"url"`
	SkipLines int    `toml:"skip_lines,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			DefaultGranularity: "month",
			DefaultDimension:   "account",
			DefaultMetric:      "revenue",
			Locale:             "nl",
		},
		Refresh: RefreshConfig{
			Interval: DefaultRefreshInterval.String(),
			Timeout:  DefaultRequestTimeout.String(),
			Auto:     true,
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8787",
			EventsBuffer: 200,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
		Sources: []SourceConfig{
			{Name: "google", Schema: "google"},
			{Name: "microsoft", Schema: "microsoft"},
		},
	}
}

// RefreshInterval returns the configured interval, clamped to the minimum.
// An unparseable value falls back to the default.
func (c Config) RefreshInterval() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Refresh.Interval))
	if err != nil || d <= 0 {
		return DefaultRefreshInterval
	}
	if d < MinRefreshInterval {
		return MinRefreshInterval
	}
	return d
}

// RequestTimeout returns the per-fetch timeout.
func (c Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Refresh.Timeout))
	if err != nil || d <= 0 {
		return DefaultRequestTimeout
	}
	return d
}

// ConfiguredSources returns the sources that have a URL.
func (c Config) ConfiguredSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if strings.TrimSpace(s.URL) != "" {
			out = append(out, s)
		}
	}
	return out
}

// SetSourceURL sets the URL of the named source, adding it when missing.
func (c *Config) SetSourceURL(name, schema, url string) {
	for i := range c.Sources {
		if strings.EqualFold(c.Sources[i].Name, name) {
			c.Sources[i].URL = url
			return
		}
	}
	c.Sources = append(c.Sources, SourceConfig{Name: name, Schema: schema, URL: url})
}

// Validate checks values that would otherwise fail later at load time.
func (c Config) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for _, s := range c.Sources {
		if _, err := source.SchemaByName(s.Schema); err != nil {
			errs = append(errs, fmt.Errorf("source %q: %w", s.Name, err))
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate source name %q", s.Name))
		}
		seen[key] = true
	}
	for i, b := range c.Brands {
		if strings.TrimSpace(b.Match) == "" || strings.TrimSpace(b.Domain) == "" {
			errs = append(errs, fmt.Errorf("brand rule %d: match and domain are required", i+1))
		}
	}
	return errors.Join(errs...)
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "adpulse")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "adpulse")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads a config file at path.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	// Arrays of tables replace rather than merge with the defaults.
	cfg.Sources = nil
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultConfig().Sources
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo writes the config to path, creating its directory.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// UpdateFile applies edit to the config stored at path and writes it back.
// Environment overrides are not applied, so they never end up on disk.
func UpdateFile(path string, edit func(*Config)) error {
	cfg, err := LoadFrom(path)
	if err != nil {
		return err
	}
	edit(&cfg)
	return SaveTo(path, cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// Environment variables that override the config file.
const (
	EnvGoogleURL    = "ADPULSE_GOOGLE_URL"
	EnvMicrosoftURL = "ADPULSE_MICROSOFT_URL"
	EnvLogLevel     = "ADPULSE_LOG_LEVEL"
)

// LoadEnv loads a .env file from the working directory if one exists.
// Variables already set in the environment win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// ApplyEnv applies source URL overrides from the environment.
func ApplyEnv(cfg *Config) {
	if u := os.Getenv(EnvGoogleURL); u != "" {
		cfg.SetSourceURL("google", "google", u)
	}
	if u := os.Getenv(EnvMicrosoftURL); u != "" {
		cfg.SetSourceURL("microsoft", "microsoft", u)
	}
}

// LogLevel returns the log level requested by the environment, or def.
func LogLevel(def string) string {
	if v := os.Getenv(EnvLogLevel); v != "" {
		return v
	}
	return def
}
