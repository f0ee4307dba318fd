package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jakopako/scenecaster/internal/composition"
	"github.com/jakopako/scenecaster/internal/log"
)

// JSONRenderer writes the composition data to a file so that an external
// presentation layer can paint it.
type JSONRenderer struct{}

func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

type jsonDocument struct {
	StagingDir string `json:"stagingDir"`
	// Frame is only set for stills.
	Frame       *int              `json:"frame,omitempty"`
	Composition *composition.Data `json:"composition"`
}

func (r *JSONRenderer) Render(ctx context.Context, data *composition.Data, outputPath, stagingDir string) (string, error) {
	return r.write(ctx, jsonDocument{StagingDir: stagingDir, Composition: data}, outputPath)
}

func (r *JSONRenderer) RenderStill(ctx context.Context, data *composition.Data, frame int, outputPath, stagingDir string) (string, error) {
	return r.write(ctx, jsonDocument{StagingDir: stagingDir, Frame: &frame, Composition: data}, outputPath)
}

func (r *JSONRenderer) Extensions() (string, string) {
	return ".json", ".json"
}

func (r *JSONRenderer) write(ctx context.Context, doc jsonDocument, outputPath string) (string, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("renderer", JSON_RENDERER_TYPE))

	// json.MarshalIndent would escape html characters in captions and css.
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return "", fmt.Errorf("error while encoding composition: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(outputPath, buffer.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("error while writing json to file: %w", err)
	}
	logger.Info(fmt.Sprintf("wrote %d scenes to file %s", len(doc.Composition.Scenes), outputPath))
	return outputPath, nil
}
