package config

const (
	// Service information
	ServiceName    = "countgate"
	ServiceVersion = "v1.2.0"
	APIVersion     = "v1"

	// EnvPrefix is prepended to every viper-bound environment variable,
	// e.g. COUNTGATE_CONNECTION_HOST.
	EnvPrefix = "COUNTGATE"

	// DefaultQueryRequestTimeout applies when the configured timeout is unset
	// or < 1 (milliseconds).
	DefaultQueryRequestTimeout = 120000

	// Logstash daily index naming
	DefaultIndexPrefix   = "logstash-"
	DefaultIndexTimezone = "UTC"

	DefaultShutdownTimeout = 10000 // milliseconds
)
