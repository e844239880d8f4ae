package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults when no config file", func(t *testing.T) {
		cfg, err := LoadFrom(t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "./vmfa.db", cfg.Database.Path)
		assert.Equal(t, "./plugins", cfg.Plugins.Path)
		assert.Equal(t, "6.9.1", cfg.Host.Version)
		assert.Equal(t, "vmfa", cfg.Addons.Namespace)
		assert.Equal(t, 6*time.Hour, cfg.Addons.CacheTTL)
		assert.Equal(t, 10*time.Second, cfg.Addons.FetchTimeout)
		assert.Equal(t, 5*time.Minute, cfg.Addons.InstallTimeout)
		assert.Equal(t, "admin", cfg.Admin.Username)
		assert.Equal(t, "info", cfg.Log.Level)
	})

	t.Run("Loads from config file", func(t *testing.T) {
		dir := t.TempDir()
		configContent := `
port: 9999
database:
  path: "/tmp/test.db"
addons:
  cache_ttl: 30m
  namespace: media
unknown_setting: "should be ignored"
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(configContent), 0644))

		cfg, err := LoadFrom(dir)
		require.NoError(t, err)

		assert.Equal(t, 9999, cfg.Port)
		assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
		assert.Equal(t, 30*time.Minute, cfg.Addons.CacheTTL)
		assert.Equal(t, "media", cfg.Addons.Namespace)
		assert.Equal(t, 6*time.Hour, cfg.Addons.RefreshInterval)
	})

	t.Run("Environment overrides file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("port: 9999\n"), 0644))
		t.Setenv("VMFA_PORT", "7070")
		t.Setenv("VMFA_PLUGINS_PATH", "/srv/plugins")

		cfg, err := LoadFrom(dir)
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Port)
		assert.Equal(t, "/srv/plugins", cfg.Plugins.Path)
	})

	t.Run("Dotenv file feeds the environment", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VMFA_HOST_VERSION=6.8.0\n"), 0644))
		t.Cleanup(func() { os.Unsetenv("VMFA_HOST_VERSION") })

		cfg, err := LoadFrom(dir)
		require.NoError(t, err)
		assert.Equal(t, "6.8.0", cfg.Host.Version)
	})

	t.Run("Invalid port is rejected", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("port: 70000\n"), 0644))

		_, err := LoadFrom(dir)
		assert.Error(t, err)
	})
}
