package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: ":9090"
blur:
  factor: 8
  attach_image: true
dispatcher:
  transport: kafka
  workers: 4
permissions: [camera]
kafka:
  brokers: ["kafka:9092"]
  topic: blur-requests
retry:
  attempts: 5
  delay: 250ms
  backoff: 1.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Server.HTTPPort)
	require.Equal(t, 8, cfg.Blur.Factor)
	require.True(t, cfg.Blur.AttachImage)
	require.Equal(t, "kafka", cfg.Dispatcher.Transport)
	require.Equal(t, 4, cfg.Dispatcher.Workers)
	require.Equal(t, []string{"camera"}, cfg.Permissions)
	require.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, 5, cfg.Retry.Attempts)
	require.Equal(t, 250*time.Millisecond, cfg.Retry.Delay)
	require.Equal(t, 1.5, cfg.Retry.Backoff)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, ":8080", cfg.Server.HTTPPort)
	require.Equal(t, 10, cfg.Blur.Factor)
	require.Equal(t, "local", cfg.Dispatcher.Transport)
	require.Equal(t, "log", cfg.Notification.Poster)
	require.Equal(t, "http", cfg.Notification.Exposer)
	require.Equal(t, time.Hour, cfg.Storage.PresignExpiry)
	require.Equal(t, 10*time.Second, cfg.Camera.Timeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CACHE_DIR", "/var/cache/photo-blur")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(writeConfig(t, "cache:\n  dir: ./cache\n"))
	require.NoError(t, err)

	require.Equal(t, "/var/cache/photo-blur", cfg.Cache.Dir)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}
