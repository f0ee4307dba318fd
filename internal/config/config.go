// Package config holds the run settings of scenecaster. Values are taken
// from a yml file or environment variables or both.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jakopako/scenecaster/internal/render"
)

// BrowserConfig defines how browser scenes are recorded.
type BrowserConfig struct {
	// Visible shows the browser window while recording. Browsers run
	// headless by default.
	Visible             bool   `yaml:"visible" env:"SCENECASTER_BROWSER_VISIBLE"`
	SlowMoMs            int    `yaml:"slow_mo_ms" env:"SCENECASTER_SLOW_MO_MS" env-default:"0"`
	ChromePath          string `yaml:"chrome_path" env:"SCENECASTER_CHROME_PATH"`
	UserAgent           string `yaml:"user_agent" env:"SCENECASTER_USER_AGENT"`
	GlobalCSS           string `yaml:"global_css" env:"SCENECASTER_GLOBAL_CSS"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms" env:"SCENECASTER_NAVIGATION_TIMEOUT_MS" env-default:"30000"`
	ActionTimeoutMs     int    `yaml:"action_timeout_ms" env:"SCENECASTER_ACTION_TIMEOUT_MS" env-default:"30000"`
	HighlightColor      string `yaml:"highlight_color" env:"SCENECASTER_HIGHLIGHT_COLOR" env-default:"#3b82f6"`
	// VideoCodec is the ffmpeg codec the screencast frames are encoded with.
	VideoCodec string `yaml:"video_codec" env:"SCENECASTER_CAPTURE_CODEC" env-default:"libvpx-vp9"`
}

// Config defines the overall structure of the scenecaster settings.
type Config struct {
	CacheDir    string        `yaml:"cache_dir" env:"SCENECASTER_CACHE_DIR"`
	WorkDir     string        `yaml:"work_dir" env:"SCENECASTER_WORK_DIR"`
	Concurrency int           `yaml:"concurrency" env:"SCENECASTER_CONCURRENCY" env-default:"1"`
	Browser     BrowserConfig `yaml:"browser"`
	Render      render.Config `yaml:"render"`
}

// DefaultPath is used when no config location is given explicitly.
const DefaultPath = "./scenecaster.yaml"

// NewConfig reads the config at path and overlays environment variables.
// If path is the default location and the file does not exist, only the
// environment and the defaults are used.
func NewConfig(path string) (*Config, error) {
	var config Config

	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == DefaultPath {
		if err := cleanenv.ReadEnv(&config); err != nil {
			return nil, err
		}
	} else if err := cleanenv.ReadConfig(path, &config); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	config.setDefaults()
	return &config, config.Validate()
}

func (c *Config) setDefaults() {
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), "scenecaster")
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.WorkDir, "cache")
	}
	if c.Render.Type == "" {
		c.Render.Type = render.FFMPEG_RENDERER_TYPE
	}
}

func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return errors.New("concurrency must be a positive integer")
	}
	if c.Browser.NavigationTimeoutMs <= 0 || c.Browser.ActionTimeoutMs <= 0 {
		return errors.New("browser timeouts must be positive")
	}
	if c.Browser.SlowMoMs < 0 {
		return errors.New("browser.slow_mo_ms must not be negative")
	}
	return nil
}

func (b BrowserConfig) SlowMo() time.Duration {
	return time.Duration(b.SlowMoMs) * time.Millisecond
}

func (b BrowserConfig) NavigationTimeout() time.Duration {
	return time.Duration(b.NavigationTimeoutMs) * time.Millisecond
}

func (b BrowserConfig) ActionTimeout() time.Duration {
	return time.Duration(b.ActionTimeoutMs) * time.Millisecond
}
