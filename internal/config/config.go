// Package config loads service configuration from an optional YAML file and
// REVENUE_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dvloznov/revenue-tracker/internal/reports"
)

// Source kinds.
const (
	SourceBigQuery = "bigquery"
	SourceCSV      = "csv"
)

// Config holds the configuration shared by every binary.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	HTTP     HTTPConfig     `yaml:"http"`
	Source   SourceConfig   `yaml:"source"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
	Redis    RedisConfig    `yaml:"redis"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Refresh  RefreshConfig  `yaml:"refresh"`

	Markets reports.Markets `yaml:"markets"`
	// Rates are default per-currency USD divisors applied to every month.
	Rates map[string]float64 `yaml:"rates"`
}

type HTTPConfig struct {
	Port string `yaml:"port"`
}

// SourceConfig selects where raw extracts come from. Dir may be a local
// directory or a gs:// prefix.
type SourceConfig struct {
	Kind string `yaml:"kind"`
	Dir  string `yaml:"dir"`
}

type BigQueryConfig struct {
	ProjectID string `yaml:"project_id"`
	Dataset   string `yaml:"dataset"`
}

// RedisConfig configures the session store. An empty Addr keeps sessions in
// memory.
type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// JobsConfig configures asynchronous consolidation. An empty StoreDSN keeps
// job state in memory.
type JobsConfig struct {
	StoreDSN  string `yaml:"store_dsn"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

// RefreshConfig drives the scheduled worker.
type RefreshConfig struct {
	Interval     time.Duration `yaml:"interval"`
	SessionID    string        `yaml:"session_id"`
	LookbackDays int           `yaml:"lookback_days"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "console",
		HTTP:      HTTPConfig{Port: "8080"},
		Source:    SourceConfig{Kind: SourceBigQuery, Dir: "testdata/revenue"},
		BigQuery: BigQueryConfig{
			ProjectID: "studious-union-470122-v7",
			Dataset:   "revenue",
		},
		Redis: RedisConfig{SessionTTL: 24 * time.Hour},
		Jobs:  JobsConfig{Workers: 5, QueueSize: 100},
		Refresh: RefreshConfig{
			Interval:     time.Hour,
			SessionID:    "default",
			LookbackDays: 30,
		},
		Markets: append(reports.Markets(nil), reports.DefaultMarkets...),
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Load: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("Load: parsing %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"REVENUE_LOG_LEVEL":       &c.LogLevel,
		"REVENUE_LOG_FORMAT":      &c.LogFormat,
		"REVENUE_PORT":            &c.HTTP.Port,
		"REVENUE_SOURCE":          &c.Source.Kind,
		"REVENUE_SOURCE_DIR":      &c.Source.Dir,
		"REVENUE_GCP_PROJECT":     &c.BigQuery.ProjectID,
		"REVENUE_BQ_DATASET":      &c.BigQuery.Dataset,
		"REVENUE_REDIS_ADDR":      &c.Redis.Addr,
		"REVENUE_REDIS_PASSWORD":  &c.Redis.Password,
		"REVENUE_JOB_STORE":       &c.Jobs.StoreDSN,
		"REVENUE_REFRESH_SESSION": &c.Refresh.SessionID,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"REVENUE_SESSION_TTL":      &c.Redis.SessionTTL,
		"REVENUE_REFRESH_INTERVAL": &c.Refresh.Interval,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"REVENUE_REDIS_DB":      &c.Redis.DB,
		"REVENUE_JOB_WORKERS":   &c.Jobs.Workers,
		"REVENUE_LOOKBACK_DAYS": &c.Refresh.LookbackDays,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v := os.Getenv("REVENUE_RATES"); v != "" {
		rates, err := ParseRates(v)
		if err != nil {
			return fmt.Errorf("REVENUE_RATES: %w", err)
		}
		c.Rates = rates
	}
	return nil
}

// ParseRates parses "ARS=40,BRL=4" into per-currency divisors.
func ParseRates(s string) (map[string]float64, error) {
	rates := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		cur, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("rate %q: want CURRENCY=VALUE", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("rate %q: %w", pair, err)
		}
		rates[strings.ToUpper(strings.TrimSpace(cur))] = f
	}
	return rates, nil
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceBigQuery:
		if c.BigQuery.ProjectID == "" || c.BigQuery.Dataset == "" {
			return fmt.Errorf("bigquery source needs project_id and dataset")
		}
	case SourceCSV:
		if c.Source.Dir == "" {
			return fmt.Errorf("csv source needs dir")
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be positive, got %d", c.Jobs.Workers)
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive, got %s", c.Refresh.Interval)
	}
	for cur, v := range c.Rates {
		if v <= 0 {
			return fmt.Errorf("rate for %s must be positive, got %v", cur, v)
		}
	}
	return c.Markets.Validate()
}
