package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.Equal(t, ":38870", cfg.Server.Address)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 128, cfg.Fog.GridSize)
	assert.Equal(t, 100, cfg.Rolls.MaxEntries)
	assert.Equal(t, 50, cfg.Rolls.RecentLimit)
	assert.Equal(t, 5, cfg.Session.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Sync.PollInterval)

	// the written file loads back to the same values
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  address: ":9000"
  allowed_origins: ["*"]
storage:
  driver: memory
fog:
  grid_size: 64
sync:
  poll_interval: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 64, cfg.Fog.GridSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.PollInterval)
	assert.Equal(t, "info", cfg.Logging.Level, "unset keys keep defaults")
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("TABLETOP_STORAGE_DRIVER", "memory")
	t.Setenv("TABLETOP_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: mongo\n"), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown storage.driver")

	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: postgres\n"), 0644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "postgres_dsn")
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *AppConfig, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zap.NewNop(), func(c *AppConfig) { changes <- c })
	}()

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0644))

	select {
	case c := <-changes:
		assert.Equal(t, "debug", c.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	assert.NoError(t, <-done)
}
