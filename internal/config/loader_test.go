package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/countgate/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "countgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigLoading(t *testing.T) {
	t.Run("load from file", func(t *testing.T) {
		path := writeConfig(t, `
environment: test
log_level: debug

connection:
  host: " es.internal:9200 "
  use_tls: true
  user: ci
  password: secret
  indexes: logstash-a,logstash-b
  query_request_timeout: 5000

retry:
  max_attempts: 3
`)
		config, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "test", config.Environment)
		assert.Equal(t, "debug", config.LogLevel)
		assert.Equal(t, "es.internal:9200", config.Connection.Host)
		assert.True(t, config.Connection.UseTLS)
		assert.Equal(t, "ci", config.Connection.User)
		assert.Equal(t, "logstash-a,logstash-b", config.Connection.Indexes)
		assert.Equal(t, 5*time.Second, config.Connection.RequestTimeout())
		assert.Equal(t, 3, config.Retry.MaxAttempts)
		assert.Equal(t, DefaultIndexPrefix, config.Connection.IndexPrefix)
		assert.True(t, config.Server.RateLimit.Enabled)
		assert.Equal(t, 60, config.Server.RateLimit.RequestsPerMinute)
	})

	t.Run("env var precedence", func(t *testing.T) {
		path := writeConfig(t, "connection:\n  host: from-file:9200\n")
		t.Setenv("COUNTGATE_LOG_LEVEL", "warn")
		t.Setenv("ES_HOST", "from-env:9200")

		config, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "warn", config.LogLevel)
		assert.Equal(t, "from-env:9200", config.Connection.Host)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		config, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
		assert.Nil(t, config)
	})
}

func TestConfigLoading_Invalid(t *testing.T) {
	tests := map[string]string{
		"trailing comma":      "connection:\n  indexes: 'a,'\n",
		"half credentials":    "connection:\n  user: ci\n",
		"negative timeout":    "connection:\n  query_request_timeout: -5\n",
		"bad log level":       "log_level: chatty\n",
		"bad retry":           "retry:\n  max_attempts: 0\n",
		"bad pushgateway":     "monitoring:\n  pushgateway_url: ftp://pgw\n",
		"tracing no endpoint": "tracing:\n  enabled: true\n",
		"host with scheme":    "connection:\n  host: http://es:9200\n",
		"zero rate limit":     "server:\n  rate_limit:\n    requests_per_minute: 0\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestConnectionConfig_RequestTimeout(t *testing.T) {
	assert.Equal(t, 120000*time.Millisecond, ConnectionConfig{}.RequestTimeout())
	assert.Equal(t, 120000*time.Millisecond, ConnectionConfig{QueryRequestTimeout: 0}.RequestTimeout())
	assert.Equal(t, 120000*time.Millisecond, ConnectionConfig{QueryRequestTimeout: -1}.RequestTimeout())
	assert.Equal(t, 250*time.Millisecond, ConnectionConfig{QueryRequestTimeout: 250}.RequestTimeout())
}

func TestConnectionConfig_Validate(t *testing.T) {
	ok := ConnectionConfig{Host: "es:9200"}
	assert.NoError(t, ok.Validate())

	var ce *models.ConfigurationError

	err := ConnectionConfig{}.Validate()
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, models.ErrHostRequired)

	err = ConnectionConfig{Host: "es", Password: "x"}.Validate()
	assert.ErrorIs(t, err, models.ErrCredentialsMismatch)

	err = ConnectionConfig{Host: "es", Indexes: ", ,"}.Validate()
	assert.ErrorIs(t, err, models.ErrIndexesWhitespace)

	err = ConnectionConfig{Host: "es", IndexTimezone: "Mars/Olympus"}.Validate()
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "connection.index_timezone", ce.Field)
}

func TestConnectionConfig_Accessors(t *testing.T) {
	c := ConnectionConfig{}
	assert.Equal(t, "http", c.Scheme())
	assert.Equal(t, "logstash-", c.Prefix())
	assert.False(t, c.HasCredentials())

	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	c = ConnectionConfig{UseTLS: true, User: "u", IndexPrefix: "app-"}
	assert.Equal(t, "https", c.Scheme())
	assert.Equal(t, "app-", c.Prefix())
	assert.True(t, c.HasCredentials())
}

func TestValidateEndpoint(t *testing.T) {
	assert.NoError(t, ValidateEndpoint(""))
	assert.NoError(t, ValidateEndpoint("http://pushgateway:9091"))
	assert.Error(t, ValidateEndpoint("pushgateway:9091"))
	assert.Error(t, ValidateEndpoint("https://"))
}

func BenchmarkConfigValidation(b *testing.B) {
	config := GetDefaultConfig()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := validateConfig(config); err != nil {
			b.Fatal(err)
		}
	}
}
