package config

// GetDefaultConfig returns a configuration with all default values
func GetDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",

		Connection: ConnectionConfig{
			QueryRequestTimeout: DefaultQueryRequestTimeout,
			IndexPrefix:         DefaultIndexPrefix,
			IndexTimezone:       DefaultIndexTimezone,
		},

		Retry: RetryConfig{
			MaxAttempts:     1,
			InitialInterval: 500,
			MaxInterval:     5000,
		},

		Monitoring: MonitoringConfig{
			Enabled:     true,
			MetricsPath: "/metrics",
			JobName:     ServiceName,
		},

		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: ServiceName,
		},

		Server: ServerConfig{
			Port: 8080,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             10,
			},
		},
	}
}
