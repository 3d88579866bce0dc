package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/platformbuilds/countgate/internal/models"
)

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Connection ConnectionConfig `mapstructure:"connection" yaml:"connection"`
	Query      QueryConfig      `mapstructure:"query" yaml:"query"`
	Retry      RetryConfig      `mapstructure:"retry" yaml:"retry"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" yaml:"monitoring"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
}

// ConnectionConfig describes how to reach the search engine. It is read-only
// for the duration of an evaluation.
type ConnectionConfig struct {
	Host     string `mapstructure:"host" yaml:"host"` // host[:port], no scheme
	UseTLS   bool   `mapstructure:"use_tls" yaml:"use_tls"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	// Indexes overrides the derived daily index list when non-blank.
	Indexes             string `mapstructure:"indexes" yaml:"indexes"`
	QueryRequestTimeout int    `mapstructure:"query_request_timeout" yaml:"query_request_timeout"` // milliseconds
	IndexPrefix         string `mapstructure:"index_prefix" yaml:"index_prefix"`
	IndexTimezone       string `mapstructure:"index_timezone" yaml:"index_timezone"`
	// CABundle is a PEM file of extra roots trusted for https.
	CABundle           string `mapstructure:"ca_bundle" yaml:"ca_bundle"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// RequestTimeout resolves the effective per-request timeout.
func (c ConnectionConfig) RequestTimeout() time.Duration {
	ms := c.QueryRequestTimeout
	if ms < 1 {
		ms = DefaultQueryRequestTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

func (c ConnectionConfig) Scheme() string {
	if c.UseTLS {
		return "https"
	}
	return "http"
}

func (c ConnectionConfig) HasCredentials() bool {
	return c.User != ""
}

// Location is the timezone used to name daily indexes.
func (c ConnectionConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.IndexTimezone)
	if tz == "" {
		tz = DefaultIndexTimezone
	}
	return time.LoadLocation(tz)
}

func (c ConnectionConfig) Prefix() string {
	if c.IndexPrefix == "" {
		return DefaultIndexPrefix
	}
	return c.IndexPrefix
}

// Validate is the pre-flight check run before every evaluation.
func (c ConnectionConfig) Validate() error {
	if err := c.validateShape(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Host) == "" {
		return &models.ConfigurationError{Field: "connection.host", Err: models.ErrHostRequired}
	}
	return nil
}

// validateShape checks everything except host presence, so a process can be
// configured before the search engine address is known.
func (c ConnectionConfig) validateShape() error {
	if (c.User == "") != (c.Password == "") {
		return &models.ConfigurationError{Field: "connection.user", Err: models.ErrCredentialsMismatch}
	}
	if err := models.CheckIndexes(c.Indexes); err != nil {
		return &models.ConfigurationError{Field: "connection.indexes", Err: err}
	}
	if c.QueryRequestTimeout < 0 {
		return &models.ConfigurationError{Field: "connection.query_request_timeout", Err: models.ErrInvalidTimeout}
	}
	if strings.ContainsAny(c.Host, "/ ") {
		return &models.ConfigurationError{Field: "connection.host", Err: fmt.Errorf("host must be host[:port], got %q", c.Host)}
	}
	if _, err := c.Location(); err != nil {
		return &models.ConfigurationError{Field: "connection.index_timezone", Err: err}
	}
	return nil
}

// QueryConfig tunes query pre-flight checks.
type QueryConfig struct {
	// StrictSyntax turns a Lucene parse failure into a configuration error
	// instead of a warning.
	StrictSyntax bool `mapstructure:"strict_syntax" yaml:"strict_syntax"`
}

// RetryConfig controls caller-side retries of transport failures.
// MaxAttempts of 1 disables retrying.
type RetryConfig struct {
	MaxAttempts     int `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialInterval int `mapstructure:"initial_interval" yaml:"initial_interval"` // milliseconds
	MaxInterval     int `mapstructure:"max_interval" yaml:"max_interval"`         // milliseconds
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
	// PushgatewayURL, when set, receives the metrics of a CLI run on exit.
	PushgatewayURL string `mapstructure:"pushgateway_url" yaml:"pushgateway_url"`
	JobName        string `mapstructure:"job_name" yaml:"job_name"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"` // OTLP gRPC host:port
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

type ServerConfig struct {
	Port      int             `mapstructure:"port" yaml:"port"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig bounds how often a single client may trigger evaluations.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int  `mapstructure:"burst" yaml:"burst"`
}
