package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Overpass  OverpassConfig  `mapstructure:"overpass"`
	Retry     RetryConfig     `mapstructure:"retry"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AnalysisConfig points at the remote feasibility analysis service.
type AnalysisConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (a AnalysisConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// OverpassConfig points at the geospatial query service.
type OverpassConfig struct {
	URL            string  `mapstructure:"url"`
	RadiusKm       float64 `mapstructure:"radius_km"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

func (o OverpassConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// RetryConfig bounds outbound request retries.
type RetryConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the /metrics listener
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("analysis.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("analysis.token", "")
	v.SetDefault("analysis.timeout_seconds", 60)
	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.radius_km", 15)
	v.SetDefault("overpass.timeout_seconds", 30)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TERRAWATT_ANALYSIS_BASE_URL → analysis.base_url
	v.SetEnvPrefix("TERRAWATT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Analysis.BaseURL == "" {
		errs = append(errs, "analysis.base_url is required")
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		errs = append(errs, "analysis.timeout_seconds must be positive")
	}
	if c.Overpass.URL == "" {
		errs = append(errs, "overpass.url is required")
	}
	if c.Overpass.RadiusKm <= 0 {
		errs = append(errs, fmt.Sprintf("overpass.radius_km must be positive, got %v", c.Overpass.RadiusKm))
	}
	if c.Overpass.TimeoutSeconds <= 0 {
		errs = append(errs, "overpass.timeout_seconds must be positive")
	}
	if c.Retry.MaxRetries <= 0 {
		errs = append(errs, fmt.Sprintf("retry.max_retries must be positive, got %d", c.Retry.MaxRetries))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats.enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPAddr == "" {
		errs = append(errs, "telemetry.otlp_addr is required when telemetry.enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
