package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Storage.Enabled)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIURL)
	assert.Equal(t, "books", cfg.Library.Root)
	assert.Equal(t, "data/channel_index.json", cfg.Index.Path)
	assert.Equal(t, 30*time.Second, cfg.Index.LockTimeout)

	assert.Equal(t, 3*time.Second, cfg.Upload.MinInterval)
	assert.Equal(t, 15*time.Second, cfg.Upload.FloodCooldown)
	assert.Equal(t, 5, cfg.Upload.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Upload.Retry.Factor)
	assert.Equal(t, 60*time.Second, cfg.Upload.Retry.MaxDelay)

	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, time.Second, cfg.Sync.PagePause)
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	env := "TELEGRAM_TOKEN=123:abc\nTELEGRAM_CHANNEL=@books\nUPLOAD_RETRY_MAX_ATTEMPTS=7\nSYNC_INTERVAL=0s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644))
	t.Cleanup(func() {
		for _, k := range []string{"TELEGRAM_TOKEN", "TELEGRAM_CHANNEL", "UPLOAD_RETRY_MAX_ATTEMPTS", "SYNC_INTERVAL"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "@books", cfg.Telegram.Channel)
	assert.Equal(t, 7, cfg.Upload.Retry.MaxAttempts)
	assert.Equal(t, time.Duration(0), cfg.Sync.Interval)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("UPLOAD_MIN_INTERVAL", "500ms")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Upload.MinInterval)
}
