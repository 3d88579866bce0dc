package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load loads configuration from various sources with priority order:
// 1. Environment variables (a .env file in the working directory is read first)
// 2. Configuration file (countgate.yaml, or the explicit path)
// 3. Default values
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("countgate")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/countgate/")
		v.AddConfigPath("./configs/")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars and defaults
	}

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalize(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("environment", d.Environment)
	v.SetDefault("log_level", d.LogLevel)

	// Empty defaults are still registered so AutomaticEnv can bind them.
	v.SetDefault("connection.host", "")
	v.SetDefault("connection.use_tls", false)
	v.SetDefault("connection.user", "")
	v.SetDefault("connection.password", "")
	v.SetDefault("connection.indexes", "")
	v.SetDefault("connection.query_request_timeout", d.Connection.QueryRequestTimeout)
	v.SetDefault("connection.index_prefix", d.Connection.IndexPrefix)
	v.SetDefault("connection.index_timezone", d.Connection.IndexTimezone)
	v.SetDefault("connection.ca_bundle", "")
	v.SetDefault("connection.insecure_skip_verify", false)

	v.SetDefault("query.strict_syntax", false)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_interval", d.Retry.InitialInterval)
	v.SetDefault("retry.max_interval", d.Retry.MaxInterval)

	v.SetDefault("monitoring.enabled", d.Monitoring.Enabled)
	v.SetDefault("monitoring.metrics_path", d.Monitoring.MetricsPath)
	v.SetDefault("monitoring.pushgateway_url", "")
	v.SetDefault("monitoring.job_name", d.Monitoring.JobName)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	v.SetDefault("server.rate_limit.burst", d.Server.RateLimit.Burst)
}

// overrideWithEnvVars handles the short names build agents usually export.
func overrideWithEnvVars(v *viper.Viper) {
	if host := os.Getenv("ES_HOST"); host != "" {
		v.Set("connection.host", host)
	}

	if indexes := os.Getenv("ES_INDEXES"); indexes != "" {
		v.Set("connection.indexes", indexes)
	}

	if user := os.Getenv("ES_USER"); user != "" {
		v.Set("connection.user", user)
	}

	if password := os.Getenv("ES_PASSWORD"); password != "" {
		v.Set("connection.password", password)
	}

	if useTLS := os.Getenv("ES_USE_TLS"); useTLS != "" {
		if enabled, err := strconv.ParseBool(useTLS); err == nil {
			v.Set("connection.use_tls", enabled)
		}
	}

	if bundle := os.Getenv("ES_CA_BUNDLE"); bundle != "" {
		v.Set("connection.ca_bundle", bundle)
	}

	if timeout := os.Getenv("ES_QUERY_REQUEST_TIMEOUT"); timeout != "" {
		if ms, err := strconv.Atoi(timeout); err == nil {
			v.Set("connection.query_request_timeout", ms)
		}
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		v.Set("log_level", logLevel)
	}

	if pgw := os.Getenv("PUSHGATEWAY_URL"); pgw != "" {
		v.Set("monitoring.pushgateway_url", pgw)
	}

	if otlp := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); otlp != "" {
		v.Set("tracing.endpoint", otlp)
		v.Set("tracing.enabled", true)
	}
}

// normalize trims the free-text connection fields the way the settings form
// does. The user name is left untouched.
func normalize(c *Config) {
	c.Connection.Host = strings.TrimSpace(c.Connection.Host)
	c.Connection.Indexes = strings.TrimSpace(c.Connection.Indexes)
	c.Connection.Password = strings.TrimSpace(c.Connection.Password)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}
