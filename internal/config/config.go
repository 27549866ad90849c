package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/irfndi/gutsense-go/internal/utils"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	ResultTTL string `mapstructure:"result_ttl"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Exporter       string `mapstructure:"exporter"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	LogExport      bool   `mapstructure:"log_export"`
}

// SentryConfig controls error reporting for failed runs and panics.
type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	Release          string  `mapstructure:"release"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// CorrelationConfig holds the policy constants of the food/symptom analysis.
type CorrelationConfig struct {
	AnalysisWindowMonths  int     `mapstructure:"analysis_window_months"`
	MaxDelayHours         float64 `mapstructure:"max_delay_hours"`
	MinSampleSize         int     `mapstructure:"min_sample_size"`
	SignificanceThreshold float64 `mapstructure:"significance_threshold"`
	ConfidenceZ           float64 `mapstructure:"confidence_z"`
	Parallelism           int     `mapstructure:"parallelism"`
	RunInterval           string  `mapstructure:"run_interval"`
	RunTimeout            string  `mapstructure:"run_timeout"`
	KeepRuns              int     `mapstructure:"keep_runs"`
}

// DefaultCorrelationConfig returns the standard analysis policy.
func DefaultCorrelationConfig() CorrelationConfig {
	return CorrelationConfig{
		AnalysisWindowMonths:  3,
		MaxDelayHours:         48,
		MinSampleSize:         5,
		SignificanceThreshold: 0.05,
		ConfidenceZ:           1.96,
		Parallelism:           0,
		RunInterval:           "6h",
		RunTimeout:            "2m",
		KeepRuns:              10,
	}
}

// Validate checks that the analysis policy is usable.
func (c CorrelationConfig) Validate() error {
	var errs []error
	if c.AnalysisWindowMonths <= 0 {
		errs = append(errs, utils.NewFieldError("correlation.analysis_window_months", "must be greater than 0, got %d", c.AnalysisWindowMonths))
	}
	if c.MaxDelayHours <= 0 {
		errs = append(errs, utils.NewFieldError("correlation.max_delay_hours", "must be greater than 0, got %v", c.MaxDelayHours))
	}
	if c.MinSampleSize < 1 {
		errs = append(errs, utils.NewFieldError("correlation.min_sample_size", "must be at least 1, got %d", c.MinSampleSize))
	}
	if c.SignificanceThreshold <= 0 || c.SignificanceThreshold >= 1 {
		errs = append(errs, utils.NewFieldError("correlation.significance_threshold", "must be in (0,1), got %v", c.SignificanceThreshold))
	}
	if c.ConfidenceZ <= 0 {
		errs = append(errs, utils.NewFieldError("correlation.confidence_z", "must be greater than 0, got %v", c.ConfidenceZ))
	}
	if c.Parallelism < 0 {
		errs = append(errs, utils.NewFieldError("correlation.parallelism", "must not be negative, got %d", c.Parallelism))
	}
	if c.KeepRuns < 1 {
		errs = append(errs, utils.NewFieldError("correlation.keep_runs", "must be at least 1, got %d", c.KeepRuns))
	}
	if _, err := c.RunIntervalDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.RunTimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RunIntervalDuration parses RunInterval.
func (c CorrelationConfig) RunIntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.RunInterval)
	if err != nil || d <= 0 {
		return 0, utils.NewFieldError("correlation.run_interval", "invalid duration %q", c.RunInterval)
	}
	return d, nil
}

// RunTimeoutDuration parses RunTimeout.
func (c CorrelationConfig) RunTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.RunTimeout)
	if err != nil || d <= 0 {
		return 0, utils.NewFieldError("correlation.run_timeout", "invalid duration %q", c.RunTimeout)
	}
	return d, nil
}

// ResultTTLDuration parses ResultTTL; an empty value means no expiry.
func (c RedisConfig) ResultTTLDuration() (time.Duration, error) {
	if c.ResultTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ResultTTL)
	if err != nil || d < 0 {
		return 0, utils.NewFieldError("redis.result_ttl", "invalid duration %q", c.ResultTTL)
	}
	return d, nil
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("database.database_url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)
	config.Sentry.DSN = strings.TrimSpace(config.Sentry.DSN)

	if err := config.Correlation.Validate(); err != nil {
		return nil, fmt.Errorf("invalid correlation config: %w", err)
	}
	if _, err := config.Redis.ResultTTLDuration(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "gutsense")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.result_ttl", "24h")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.exporter", "otlp")
	viper.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	viper.SetDefault("telemetry.service_name", "gutsense-go")
	viper.SetDefault("telemetry.service_version", "1.0.0")
	viper.SetDefault("telemetry.log_export", false)

	// Sentry
	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "")
	viper.SetDefault("sentry.release", "")
	viper.SetDefault("sentry.traces_sample_rate", 0.0)

	// Correlation analysis
	defaults := DefaultCorrelationConfig()
	viper.SetDefault("correlation.analysis_window_months", defaults.AnalysisWindowMonths)
	viper.SetDefault("correlation.max_delay_hours", defaults.MaxDelayHours)
	viper.SetDefault("correlation.min_sample_size", defaults.MinSampleSize)
	viper.SetDefault("correlation.significance_threshold", defaults.SignificanceThreshold)
	viper.SetDefault("correlation.confidence_z", defaults.ConfidenceZ)
	viper.SetDefault("correlation.parallelism", defaults.Parallelism)
	viper.SetDefault("correlation.run_interval", defaults.RunInterval)
	viper.SetDefault("correlation.run_timeout", defaults.RunTimeout)
	viper.SetDefault("correlation.keep_runs", defaults.KeepRuns)
}
