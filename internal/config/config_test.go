package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, "item-service.yaml"), []byte(body), 0o600)
	require.NoError(t, err)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("APP_HTTP_PORT", "6001")

	cfg, err := Load(t.TempDir(), "item-service")
	require.NoError(t, err)

	assert.Empty(t, cfg.FileInUse())
	assert.InDelta(t, 1.0, cfg.ItemService.Factor, 0)
	assert.Equal(t, 6001, cfg.HTTP.Port)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadHeaderTimeout)
	assert.Equal(t, []string{"item-service.refresh"}, cfg.Kafka.Topics)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
item-service:
  factor: 1.5
store:
  driver: mongodb
http:
  port: 7001
log-level: debug
`)

	cfg, err := Load(dir, "item-service")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "item-service.yaml"), cfg.FileInUse())
	assert.InDelta(t, 1.5, cfg.ItemService.Factor, 0)
	assert.Equal(t, StoreDriverMongoDB, cfg.Store.Driver)
	assert.Equal(t, 7001, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	// keys missing in the file keep their defaults
	assert.Equal(t, 5002, cfg.GRPC.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("ITEM_SERVICE_FACTOR", "2.5")
	dir := t.TempDir()
	writeConfig(t, dir, "item-service:\n  factor: 1.5\n")

	cfg, err := Load(dir, "item-service")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, cfg.ItemService.Factor, 0)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "item-service: [factor\n")

	_, err := Load(dir, "item-service")
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{AppName: "item-service", Version: "v1.0.0"}
	cfg.Postgres.Username = "postgres"
	cfg.Postgres.Password = "secret"
	cfg.Postgres.Host = "db"
	cfg.Postgres.Port = 5432
	cfg.Postgres.Database = "restaurant"
	cfg.Postgres.SSLMode = "disable"

	assert.Equal(
		t,
		"postgres://postgres:secret@db:5432/restaurant?sslmode=disable&application_name=item-servicev1.0.0",
		cfg.PostgresDSN(),
	)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "item-service:\n  factor: 1.5\n")

	cfg, err := Load(dir, "item-service")
	require.NoError(t, err)

	var latest atomic.Value
	cfg.Watch(func(updated *Config, err error) {
		if err != nil {
			return
		}
		latest.Store(updated.ItemService.Factor)
	})

	writeConfig(t, dir, "item-service:\n  factor: 1.75\n")

	require.Eventually(t, func() bool {
		factor, ok := latest.Load().(float64)
		return ok && factor == 1.75
	}, 5*time.Second, 50*time.Millisecond)
}
