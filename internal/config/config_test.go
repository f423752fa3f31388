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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8087", cfg.Serve.Addr)
	assert.Equal(t, 10*time.Second, cfg.Pixel.Timeout)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.False(t, cfg.Defaults.DryRun)
	assert.False(t, cfg.Defaults.SkipDedup)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
pixel:
  url: https://pixel.example.com/track
  script_id: rz-main
  timeout: 30s
database:
  driver: sqlite3
  dsn: /tmp/conversions.db
  name: affiliates
serve:
  addr: ":9099"
defaults:
  dry_run: true
  include_payloads: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://pixel.example.com/track", cfg.Pixel.URL)
	assert.Equal(t, "rz-main", cfg.Pixel.ScriptID)
	assert.Equal(t, 30*time.Second, cfg.Pixel.Timeout)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "/tmp/conversions.db", cfg.Database.DSN)
	assert.Equal(t, "affiliates", cfg.Database.Name)
	assert.Equal(t, ":9099", cfg.Serve.Addr)
	assert.True(t, cfg.Defaults.DryRun)
	assert.False(t, cfg.Defaults.SkipDedup)
	assert.True(t, cfg.Defaults.IncludePayloads)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
pixel:
  url: https://pixel.example.com/track
  script_id: from-file
database:
  driver: mysql
`)

	t.Setenv("PIXELSENDER_PIXEL__SCRIPT_ID", "from-env")
	t.Setenv("PIXELSENDER_DATABASE__DSN", "user:pass@tcp(db:3306)/affiliates")
	t.Setenv("PIXELSENDER_DEFAULTS__SKIP_DEDUP", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Pixel.ScriptID)
	assert.Equal(t, "https://pixel.example.com/track", cfg.Pixel.URL, "file value survives when env does not override")
	assert.Equal(t, "user:pass@tcp(db:3306)/affiliates", cfg.Database.DSN)
	assert.True(t, cfg.Defaults.SkipDedup)
}

func TestLoadEnvOnly(t *testing.T) {
	t.Setenv("PIXELSENDER_PIXEL__URL", "https://pixel.example.com/track")
	t.Setenv("PIXELSENDER_PIXEL__TIMEOUT", "5s")
	t.Setenv("PIXELSENDER_SERVE__ADDR", ":7070")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://pixel.example.com/track", cfg.Pixel.URL)
	assert.Equal(t, 5*time.Second, cfg.Pixel.Timeout)
	assert.Equal(t, ":7070", cfg.Serve.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config file")
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "pixel: [not: a: mapping")

	_, err := Load(path)
	require.Error(t, err)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pixelsender.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
