package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deepguard.config.xml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.ProcessingDelay())
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout())
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval())
	assert.Equal(t, "0.0.0.0:8090", cfg.GetServerAddr())

	maxBytes, err := cfg.MaxUploadBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(50*1024*1024), maxBytes)

	assert.Equal(t, []string{"video/mp4", "video/avi", "video/mov", "image/jpeg", "image/png", "image/jpg"}, cfg.AllowedTypes())
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins())
}

func TestLoadConfig_RoundTripsSavedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deepguard.config.xml")

	cfg := DefaultConfig()
	cfg.Server.Port = 9100
	cfg.Server.AllowOrigins = "http://a.test, http://b.test"
	cfg.Demo.ProcessingDelayMs = 1500
	cfg.Demo.HistoryDatabase = "data/history.duckdb"
	cfg.Content.ContentFile = "site.yaml"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, loaded.Server.Port)
	assert.Equal(t, 1500*time.Millisecond, loaded.ProcessingDelay())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, loaded.AllowOrigins())
	assert.Equal(t, filepath.Join(dir, "data", "history.duckdb"), loaded.Demo.HistoryDatabase)
	assert.Equal(t, filepath.Join(dir, "site.yaml"), loaded.Content.ContentFile)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deepguard.config.xml")
	t.Setenv("PORT", "9999")
	t.Setenv("DEEPGUARD_LOG_LEVEL", "debug")
	t.Setenv("DEEPGUARD_PROCESSING_DELAY_MS", "250")
	t.Setenv("DEEPGUARD_CONTENT_FILE", "/srv/site.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.ProcessingDelay())
	assert.Equal(t, "/srv/site.yaml", cfg.Content.ContentFile)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("malformed xml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.xml")
		require.NoError(t, os.WriteFile(path, []byte("<DeepGuard><Server>"), 0644))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("bad values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.xml")
		cfg := DefaultConfig()
		cfg.Server.Port = 0
		cfg.Demo.MaxUploadSize = "lots"
		require.NoError(t, cfg.Save(path))

		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Server.Port")
		assert.Contains(t, err.Error(), "Demo.MaxUploadSize")
	})
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Demo.ProcessingDelayMs = 0
	cfg.Demo.AllowedTypes = " , "
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ProcessingDelayMs")
	assert.Contains(t, err.Error(), "AllowedTypes")
}

func TestMaxUploadBytes(t *testing.T) {
	cfg := DefaultConfig()

	for input, want := range map[string]int64{
		"50MiB":    50 * 1024 * 1024,
		"10 MB":    10 * 1000 * 1000,
		"52428800": 52428800,
	} {
		cfg.Demo.MaxUploadSize = input
		got, err := cfg.MaxUploadBytes()
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	cfg.Demo.MaxUploadSize = "0"
	_, err := cfg.MaxUploadBytes()
	assert.Error(t, err)
}
