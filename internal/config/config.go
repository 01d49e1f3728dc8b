// Package config loads the pipeline configuration from YAML or JSON, with
// .env and environment overrides on top.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chinyancb/sbifx/internal/indicator"
)

// Config represents the complete pipeline configuration
type Config struct {
	Store   StoreConfig   `json:"store" yaml:"store"`
	Stoch   StochConfig   `json:"stoch" yaml:"stoch"`
	MACD    MACDConfig    `json:"macd" yaml:"macd"`
	Arbiter ArbiterConfig `json:"arbiter" yaml:"arbiter"`
	Notify  NotifyConfig  `json:"notify" yaml:"notify"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	History HistoryConfig `json:"history" yaml:"history"`
	Status  StatusConfig  `json:"status" yaml:"status"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// StoreConfig locates the sample stores shared with the scraper
type StoreConfig struct {
	Backend   string `json:"backend" yaml:"backend"` // "csv", "sqlite" or "memory"
	Dir       string `json:"dir" yaml:"dir"`
	DBPath    string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	Retention int    `json:"retention" yaml:"retention"`
}

// FamilyDir is where the csv backend keeps a family's tables.
func (s StoreConfig) FamilyDir(f indicator.Family) string {
	return filepath.Join(s.Dir, string(f))
}

// StochConfig contains stochastic judge parameters
type StochConfig struct {
	SleepSec   float64 `json:"sleep_sec" yaml:"sleep_sec"`
	RowThresh  float64 `json:"row_thresh" yaml:"row_thresh"`
	HighThresh float64 `json:"high_thresh" yaml:"high_thresh"`
	NRow       int     `json:"n_row" yaml:"n_row"`
}

func (s StochConfig) Interval() time.Duration { return seconds(s.SleepSec) }

// MACDConfig contains MACD judge parameters
type MACDConfig struct {
	SleepSec float64 `json:"sleep_sec" yaml:"sleep_sec"`
	HistZero float64 `json:"hist_zero" yaml:"hist_zero"`
	NRow     int     `json:"n_row" yaml:"n_row"`
}

func (m MACDConfig) Interval() time.Duration { return seconds(m.SleepSec) }

// ArbiterConfig contains consensus parameters
type ArbiterConfig struct {
	SleepSec     float64 `json:"sleep_sec" yaml:"sleep_sec"`
	DltSec       float64 `json:"dlt_sec" yaml:"dlt_sec"`
	NRow         int     `json:"n_row" yaml:"n_row"`
	PositionsDir string  `json:"positions_dir" yaml:"positions_dir"`
}

func (a ArbiterConfig) Interval() time.Duration { return seconds(a.SleepSec) }

func (a ArbiterConfig) Skew() time.Duration { return seconds(a.DltSec) }

// NotifyConfig selects the operator notifier
type NotifyConfig struct {
	Kind      string `json:"kind" yaml:"kind"` // "log" or "line"
	LineToken string `json:"line_token,omitempty" yaml:"line_token,omitempty"`
	LineURL   string `json:"line_url,omitempty" yaml:"line_url,omitempty"`
	PerMinute int    `json:"per_minute" yaml:"per_minute"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type          string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	CallsFile     string `json:"calls_file,omitempty" yaml:"calls_file,omitempty"`
	DecisionsFile string `json:"decisions_file,omitempty" yaml:"decisions_file,omitempty"`
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// HistoryConfig externalizes judge call histories; empty Dir disables it
type HistoryConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// StatusConfig enables the HTTP status server; empty Addr disables it
type StatusConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "json" or "console"
}

type TracingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Environment overrides, applied after the file is read.
const (
	EnvLogLevel     = "SBIFX_LOG_LEVEL"
	EnvStoreDir     = "SBIFX_STORE_DIR"
	EnvPositionsDir = "SBIFX_POSITIONS_DIR"
	EnvLineToken    = "SBIFX_LINE_TOKEN"
	EnvStatusAddr   = "SBIFX_STATUS_ADDR"
)

// Load returns the configuration at path, or the defaults when path is
// empty, with .env and environment overrides applied and validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = readFile(path); err != nil {
			return nil, err
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (JSON or YAML). Keys absent
// from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped and variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from SBIFX_* variables.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvStoreDir); ok && v != "" {
		c.Store.Dir = v
	}
	if v, ok := os.LookupEnv(EnvPositionsDir); ok && v != "" {
		c.Arbiter.PositionsDir = v
	}
	if v, ok := os.LookupEnv(EnvLineToken); ok && v != "" {
		c.Notify.LineToken = v
	}
	if v, ok := os.LookupEnv(EnvStatusAddr); ok {
		c.Status.Addr = v
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "csv":
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for csv backend")
		}
	case "sqlite":
		if c.Store.DBPath == "" {
			return fmt.Errorf("store.db_path is required for sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be 'csv', 'sqlite' or 'memory'")
	}
	if c.Store.Retention < 4 {
		return fmt.Errorf("store.retention must be at least 4")
	}

	if c.Stoch.SleepSec <= 0 || c.MACD.SleepSec <= 0 || c.Arbiter.SleepSec <= 0 {
		return fmt.Errorf("sleep_sec must be positive")
	}
	if c.Stoch.RowThresh < 0 || c.Stoch.HighThresh > 100 || c.Stoch.RowThresh >= c.Stoch.HighThresh {
		return fmt.Errorf("stoch thresholds must satisfy 0 <= row_thresh < high_thresh <= 100")
	}
	if c.MACD.HistZero < 0 {
		return fmt.Errorf("macd.hist_zero must not be negative")
	}
	if c.Stoch.NRow <= 0 || c.MACD.NRow <= 0 || c.Arbiter.NRow <= 0 {
		return fmt.Errorf("n_row must be positive")
	}
	if c.Arbiter.DltSec < 0 {
		return fmt.Errorf("arbiter.dlt_sec must not be negative")
	}
	if c.Arbiter.PositionsDir == "" {
		return fmt.Errorf("arbiter.positions_dir is required")
	}

	switch c.Notify.Kind {
	case "log":
	case "line":
		if c.Notify.LineToken == "" {
			return fmt.Errorf("notify.line_token required for line notifier (or set %s)", EnvLineToken)
		}
	default:
		return fmt.Errorf("notify.kind must be 'log' or 'line'")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.CallsFile == "" || c.Journal.DecisionsFile == "" {
			return fmt.Errorf("journal calls_file and decisions_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:   "csv",
			Dir:       "./var/share",
			DBPath:    "./var/share/samples.db",
			Retention: 20,
		},
		Stoch: StochConfig{
			SleepSec:   1,
			RowThresh:  20,
			HighThresh: 80,
			NRow:       5,
		},
		MACD: MACDConfig{
			SleepSec: 1,
			HistZero: 100,
			NRow:     5,
		},
		Arbiter: ArbiterConfig{
			SleepSec:     1,
			DltSec:       185,
			NRow:         3,
			PositionsDir: "./var/share/pos",
		},
		Notify: NotifyConfig{
			Kind:      "log",
			LineURL:   "https://notify-api.line.me/api/notify",
			PerMinute: 30,
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
