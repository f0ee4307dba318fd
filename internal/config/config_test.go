package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jakopako/scenecaster/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenecaster.yaml")
	content := `
cache_dir: /tmp/sc-cache
concurrency: 2
browser:
  visible: true
  slow_mo_ms: 50
  global_css: ".cookie-banner { display: none }"
render:
  type: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sc-cache", c.CacheDir)
	assert.Equal(t, 2, c.Concurrency)
	assert.True(t, c.Browser.Visible)
	assert.Equal(t, 50*time.Millisecond, c.Browser.SlowMo())
	assert.Equal(t, ".cookie-banner { display: none }", c.Browser.GlobalCSS)
	assert.Equal(t, render.JSON_RENDERER_TYPE, c.Render.Type)
	// defaults
	assert.Equal(t, 30*time.Second, c.Browser.NavigationTimeout())
	assert.Equal(t, "#3b82f6", c.Browser.HighlightColor)
	assert.NotEmpty(t, c.WorkDir)
}

func TestNewConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenecaster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 3\n"), 0644))
	t.Setenv("SCENECASTER_CACHE_DIR", "/env/cache")

	c, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/cache", c.CacheDir)
	assert.Equal(t, 3, c.Concurrency)
}

func TestNewConfigMissingExplicitFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := NewConfig("")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Concurrency)
	assert.False(t, c.Browser.Visible)
	assert.Equal(t, filepath.Join(c.WorkDir, "cache"), c.CacheDir)
	assert.Equal(t, render.FFMPEG_RENDERER_TYPE, c.Render.Type)
}

func TestValidate(t *testing.T) {
	c := &Config{Concurrency: 0, Browser: BrowserConfig{NavigationTimeoutMs: 1, ActionTimeoutMs: 1}}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency must be a positive integer")

	c.Concurrency = 1
	c.Browser.SlowMoMs = -1
	assert.Error(t, c.Validate())
}
