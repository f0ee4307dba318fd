// Package render provides the interface and configuration for renderers,
// which turn composition data into a video file and thumbnail stills.
package render

import (
	"context"
	"fmt"

	"github.com/jakopako/scenecaster/internal/composition"
)

// Renderer defines the interface for all renderers. Relative asset paths
// in the composition data are resolved against stagingDir.
type Renderer interface {
	Render(ctx context.Context, data *composition.Data, outputPath, stagingDir string) (string, error)
	RenderStill(ctx context.Context, data *composition.Data, frame int, outputPath, stagingDir string) (string, error)
	// Extensions returns the file extensions of rendered videos and stills.
	Extensions() (video, still string)
}

// Config defines the necessary parameters to create a new renderer.
type Config struct {
	Type       string `yaml:"type" env:"SCENECASTER_RENDER_TYPE"`
	FFmpegPath string `yaml:"ffmpeg_path" env:"SCENECASTER_FFMPEG_PATH" env-default:"ffmpeg"`
	VideoCodec string `yaml:"video_codec" env:"SCENECASTER_VIDEO_CODEC" env-default:"libx264"`
	CRF        int    `yaml:"crf" env:"SCENECASTER_CRF" env-default:"23"`
	// FontFile is passed to drawtext. If empty the brand font family is
	// looked up through fontconfig.
	FontFile string `yaml:"font_file" env:"SCENECASTER_FONT_FILE"`
}

const (
	FFMPEG_RENDERER_TYPE = "ffmpeg"
	JSON_RENDERER_TYPE   = "json"
)

// NewRenderer returns the renderer for the configured type.
func NewRenderer(c *Config) (Renderer, error) {
	switch c.Type {
	case FFMPEG_RENDERER_TYPE, "":
		return NewFFmpegRenderer(c), nil
	case JSON_RENDERER_TYPE:
		return NewJSONRenderer(), nil
	}
	return nil, fmt.Errorf("renderer of type %q not implemented", c.Type)
}
