// Package config loads the rule engine's configuration from a YAML file
// plus environment variable overrides (§6 "Configuration keys": server/rules,
// server/templates, server/timeout, log/config), following the teacher's
// envdecode-over-YAML layering.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP façade (internal/httpapi).
type ServerConfig struct {
	Host string `json:"host" yaml:"host" env:"SERVER_HOST"`
	Port int    `json:"port" yaml:"port" env:"SERVER_PORT"`
}

// Addr formats the listen address for net/http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RuleStoreConfig locates the on-disk rule and template directories
// (§6's `server/rules`, `server/templates`).
type RuleStoreConfig struct {
	Dir         string `json:"dir" yaml:"dir" env:"RULES_DIR"`
	TemplateDir string `json:"template_dir" yaml:"template_dir" env:"TEMPLATES_DIR"`
}

// EvaluatorConfig controls the Trigger/Evaluator tick loop (§6's
// `server/timeout`). TimeoutMillis is loaded but not passed to the
// Evaluator; rule expressions run under sandbox.DefaultTimeout.
type EvaluatorConfig struct {
	TickIntervalSeconds int `json:"tick_interval_seconds" yaml:"tick_interval_seconds" env:"EVALUATOR_TICK_SECONDS"`
	TimeoutMillis       int `json:"timeout_millis" yaml:"timeout_millis" env:"EVALUATOR_TIMEOUT_MS"`
}

// LoggingConfig controls application logging (`log/config`).
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" yaml:"format" env:"LOG_FORMAT"`
	Output     string `json:"output" yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `json:"file_prefix" yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
	// MaxSizeMB, MaxBackups and MaxAgeDays configure lumberjack rotation
	// when Output is "file"; zero falls back to 100 MB, 5 backups and 28
	// days (pkg/logger).
	MaxSizeMB  int `json:"max_size_mb" yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB"`
	MaxBackups int `json:"max_backups" yaml:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS"`
}

// AlertLogConfig controls the optional Postgres-backed alert history
// audit log (internal/alertlog). Empty DSN disables it.
type AlertLogConfig struct {
	DSN string `json:"dsn" yaml:"dsn" env:"ALERTLOG_DSN"`
}

// HousekeepingConfig controls periodic maintenance jobs that run outside
// the Evaluator's own tick cadence (internal/housekeeping).
type HousekeepingConfig struct {
	MetricSweepSchedule string `json:"metric_sweep_schedule" yaml:"metric_sweep_schedule" env:"METRIC_SWEEP_SCHEDULE"`
}

// RateLimitConfig bounds inbound HTTP request volume per client (§5
// "Back-pressure"), protecting the mailbox round-trip from an operator
// script or UI polling too aggressively. RequestsPerSecond <= 0 disables
// limiting entirely.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int     `json:"burst" yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server       ServerConfig       `json:"server" yaml:"server"`
	RuleStore    RuleStoreConfig    `json:"rule_store" yaml:"rule_store"`
	Evaluator    EvaluatorConfig    `json:"evaluator" yaml:"evaluator"`
	Logging      LoggingConfig      `json:"logging" yaml:"logging"`
	AlertLog     AlertLogConfig     `json:"alert_log" yaml:"alert_log"`
	Housekeeping HousekeepingConfig `json:"housekeeping" yaml:"housekeeping"`
	RateLimit    RateLimitConfig    `json:"rate_limit" yaml:"rate_limit"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		RuleStore: RuleStoreConfig{
			Dir:         "rules",
			TemplateDir: "templates",
		},
		Evaluator: EvaluatorConfig{
			TickIntervalSeconds: 30,
			TimeoutMillis:       250,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePrefix: "ruleengine",
		},
		Housekeeping: HousekeepingConfig{
			MetricSweepSchedule: "@every 1m",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
		},
	}
}

// Load loads configuration from file (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode errors when no tagged fields are present in the
		// environment; treat that as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	return cfg, nil
}

// LoadFile reads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
