package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "none", cfg.Events.Publisher)
	assert.Equal(t, "*/15 * * * *", cfg.Jobs.CartExpiry)
	assert.Equal(t, 7*24*time.Hour, cfg.Shop.CartTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ESTORE_HTTP_ADDR", ":9090")
	t.Setenv("ESTORE_EVENTS_PUBLISHER", "kafka")
	t.Setenv("ESTORE_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ESTORE_CACHE_LOCAL_TTL", "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "kafka", cfg.Events.Publisher)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.Cache.LocalTTL)
}

func TestLoadConfigFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yaml := "log:\n  level: debug\nshop:\n  currency: twd\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ESTORE_NATS_URL=nats://dotenv:4222\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ESTORE_NATS_URL") })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "twd", cfg.Shop.Currency)
	assert.Equal(t, "nats://dotenv:4222", cfg.NATS.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"nats without url", func(c *Config) { c.Events.Publisher = "nats" }, true},
		{"nats with url", func(c *Config) {
			c.Events.Publisher = "nats"
			c.NATS.URL = "nats://localhost:4222"
		}, false},
		{"kafka without brokers", func(c *Config) {
			c.Events.Publisher = "kafka"
			c.Kafka.Brokers = nil
		}, true},
		{"unknown publisher", func(c *Config) { c.Events.Publisher = "sqs" }, true},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Log:      LogConfig{Format: "json"},
				Database: DatabaseConfig{DSN: "postgres://localhost/estore"},
				Events:   EventsConfig{Publisher: "none"},
				Kafka:    KafkaConfig{Brokers: []string{"localhost:9092"}},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// chdir changes the working directory for the duration of the test,
// matching testing.T.Chdir (Go 1.24+) on older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
