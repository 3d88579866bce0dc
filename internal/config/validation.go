package config

import (
	"fmt"
	"net/url"
)

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	validLogLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validEnvironments := []string{"development", "staging", "production", "test"}
	if !contains(validEnvironments, config.Environment) {
		return fmt.Errorf("invalid environment: %s", config.Environment)
	}

	if err := config.Connection.validateShape(); err != nil {
		return err
	}

	if config.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}
	if config.Retry.InitialInterval < 0 || config.Retry.MaxInterval < 0 {
		return fmt.Errorf("retry intervals must not be negative")
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Server.Port)
	}
	if rl := config.Server.RateLimit; rl.Enabled && (rl.RequestsPerMinute < 1 || rl.Burst < 1) {
		return fmt.Errorf("server.rate_limit requires requests_per_minute and burst of at least 1")
	}

	if err := ValidateEndpoint(config.Monitoring.PushgatewayURL); err != nil {
		return fmt.Errorf("monitoring.pushgateway_url: %w", err)
	}

	if config.Tracing.Enabled && config.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}

	return nil
}

// ValidateEndpoint validates an optional http(s) endpoint. Empty is allowed.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return nil
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint must use http or https scheme")
	}

	if parsed.Host == "" {
		return fmt.Errorf("endpoint must include host")
	}

	return nil
}
