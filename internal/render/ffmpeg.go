package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jakopako/scenecaster/internal/composition"
	"github.com/jakopako/scenecaster/internal/ffmpeg"
	"github.com/jakopako/scenecaster/internal/log"
	"github.com/jakopako/scenecaster/internal/timing"
	"github.com/jakopako/scenecaster/internal/transition"
	"github.com/jakopako/scenecaster/internal/types"
	"github.com/jakopako/scenecaster/internal/utils"
)

// FFmpegRenderer renders every scene into its own segment and concatenates
// the segments. Spatial slide and zoom effects are left to presentation
// layers that consume the json output; this renderer applies the fade
// envelope of every transition kind except none.
type FFmpegRenderer struct {
	config *Config
}

func NewFFmpegRenderer(c *Config) *FFmpegRenderer {
	return &FFmpegRenderer{config: c}
}

func (r *FFmpegRenderer) Extensions() (string, string) {
	return ".mp4", ".png"
}

func (r *FFmpegRenderer) Render(ctx context.Context, data *composition.Data, outputPath, stagingDir string) (string, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("renderer", FFMPEG_RENDERER_TYPE))
	if len(data.Scenes) == 0 {
		return "", fmt.Errorf("composition %q has no scenes", data.Title)
	}
	segDir, err := os.MkdirTemp(stagingDir, "segments-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(segDir)

	entries := make([]ffmpeg.ConcatEntry, 0, len(data.Scenes))
	for i, s := range data.Scenes {
		seg := filepath.Join(segDir, fmt.Sprintf("segment_%03d.mp4", i))
		logger.Debug("rendering segment", slog.String("scene", s.ID), slog.Int("frames", s.DurationFrames))
		args, err := r.segmentArgs(data, s, stagingDir, segDir, seg, true)
		if err != nil {
			return "", err
		}
		if err := ffmpeg.Run(ctx, r.config.FFmpegPath, args...); err != nil {
			return "", fmt.Errorf("error rendering scene %s: %w", s.ID, err)
		}
		entries = append(entries, ffmpeg.ConcatEntry{File: seg})
	}

	list := filepath.Join(segDir, "segments.txt")
	if err := ffmpeg.WriteConcatList(list, entries); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", err
	}
	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", list, "-c", "copy", "-movflags", "+faststart", outputPath}
	if err := ffmpeg.Run(ctx, r.config.FFmpegPath, args...); err != nil {
		return "", fmt.Errorf("error concatenating segments: %w", err)
	}
	logger.Info(fmt.Sprintf("rendered %d scenes (%d frames) to %s", len(data.Scenes), data.TotalFrames, outputPath))
	return outputPath, nil
}

func (r *FFmpegRenderer) RenderStill(ctx context.Context, data *composition.Data, frame int, outputPath, stagingDir string) (string, error) {
	scene, local, err := sceneAt(data, frame)
	if err != nil {
		return "", err
	}
	segDir, err := os.MkdirTemp(stagingDir, "still-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(segDir)

	seg := filepath.Join(segDir, "segment.mp4")
	segArgs, err := r.segmentArgs(data, scene, stagingDir, segDir, seg, false)
	if err != nil {
		return "", err
	}
	if err := ffmpeg.Run(ctx, r.config.FFmpegPath, segArgs...); err != nil {
		return "", fmt.Errorf("error rendering scene %s: %w", scene.ID, err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", err
	}
	args := []string{"-y", "-i", seg, "-vf", stillFilter(scene, local), "-frames:v", "1", outputPath}
	if err := ffmpeg.Run(ctx, r.config.FFmpegPath, args...); err != nil {
		return "", fmt.Errorf("error extracting frame %d: %w", frame, err)
	}
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("rendered frame %d to %s", frame, outputPath))
	return outputPath, nil
}

// sceneAt returns the scene containing the absolute frame and the frame
// offset within that scene.
func sceneAt(data *composition.Data, frame int) (composition.Scene, int, error) {
	for _, s := range data.Scenes {
		if frame >= s.StartFrame && frame < s.StartFrame+s.DurationFrames {
			return s, frame - s.StartFrame, nil
		}
	}
	return composition.Scene{}, 0, fmt.Errorf("frame %d is outside of the composition (%d frames)", frame, data.TotalFrames)
}

// stillFilter selects one frame and darkens it by the transition opacity.
func stillFilter(s composition.Scene, local int) string {
	filter := fmt.Sprintf(`select=eq(n\,%d)`, local)
	style := transition.Apply(s.Transition.Type, local, s.DurationFrames, s.Transition.DurationFrames, s.Transition.Direction)
	if style.Opacity < 1 {
		o := strconv.FormatFloat(style.Opacity, 'f', 4, 64)
		filter += fmt.Sprintf(",colorchannelmixer=rr=%s:gg=%s:bb=%s", o, o, o)
	}
	return filter
}

// segmentArgs builds the ffmpeg arguments that render one scene to out.
// Texts are written to files in workDir so they never need escaping.
func (r *FFmpegRenderer) segmentArgs(data *composition.Data, s composition.Scene, stagingDir, workDir, out string, fades bool) ([]string, error) {
	seconds := timing.FramesToSeconds(s.DurationFrames, data.FPS)
	tw := &textWriter{dir: workDir, prefix: s.ID}
	var args, filters []string
	switch {
	case s.Title != nil:
		args = []string{"-y", "-f", "lavfi", "-i", fmt.Sprintf("color=c=%s:s=%dx%d:r=%d:d=%s",
			color(data.Brand.BackgroundColor), data.Width, data.Height, data.FPS, formatSeconds(seconds))}
		filters = r.titleFilters(data, s.Title, tw)
	case s.Browser != nil:
		args = []string{"-y", "-i", filepath.Join(stagingDir, s.Browser.VideoPath)}
		filters = append(filters,
			fmt.Sprintf("fps=%d", data.FPS),
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", data.Width, data.Height),
			fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=%s", data.Width, data.Height, color(data.Brand.BackgroundColor)),
			fmt.Sprintf("tpad=stop_mode=clone:stop_duration=%s", formatSeconds(seconds)),
		)
		filters = append(filters, r.captionFilters(data, s.Browser.Timestamps, tw)...)
	default:
		return nil, fmt.Errorf("scene %s has no payload", s.ID)
	}
	if tw.err != nil {
		return nil, tw.err
	}
	if fades {
		filters = append(filters, fadeFilters(s)...)
	}
	filters = append(filters, "format=yuv420p")
	return append(args,
		"-vf", strings.Join(filters, ","),
		"-frames:v", strconv.Itoa(s.DurationFrames),
		"-an",
		"-c:v", r.codec(),
		"-crf", strconv.Itoa(r.config.CRF),
		out,
	), nil
}

// textWriter stores drawtext texts in files. The first error is kept and
// all following writes are skipped.
type textWriter struct {
	dir    string
	prefix string
	n      int
	err    error
}

func (tw *textWriter) write(text string) string {
	path := filepath.Join(tw.dir, fmt.Sprintf("%s-text-%d.txt", utils.SanitizeFilename(tw.prefix), tw.n))
	tw.n++
	if tw.err == nil {
		tw.err = os.WriteFile(path, []byte(text), 0644)
	}
	return path
}

func (r *FFmpegRenderer) codec() string {
	if r.config.VideoCodec == "" {
		return "libx264"
	}
	return r.config.VideoCodec
}

var titleSizes = map[types.TitleVariant]struct{ heading, subheading int }{
	types.TitleMain:    {12, 28},
	types.TitleOutro:   {12, 28},
	types.TitleChapter: {16, 32},
	types.TitleMinimal: {20, 36},
}

func (r *FFmpegRenderer) titleFilters(data *composition.Data, t *composition.TitlePayload, tw *textWriter) []string {
	sizes, ok := titleSizes[t.Variant]
	if !ok {
		sizes = titleSizes[types.TitleMain]
	}
	heading := r.drawtext(data, tw.write(t.Heading), data.Height/sizes.heading, data.Brand.TextColor,
		"(w-text_w)/2", fmt.Sprintf("(h-text_h)/2-%d", data.Height/24))
	filters := []string{heading}
	if t.Subheading != "" {
		filters = append(filters, r.drawtext(data, tw.write(t.Subheading), data.Height/sizes.subheading, data.Brand.PrimaryColor,
			"(w-text_w)/2", fmt.Sprintf("(h/2)+%d", data.Height/24)))
	}
	return filters
}

func (r *FFmpegRenderer) captionFilters(data *composition.Data, timestamps []types.ActionTimestamp, tw *textWriter) []string {
	var filters []string
	margin := data.Height / 12
	for _, ts := range timestamps {
		c := ts.Caption
		if c == nil || c.Text == "" {
			continue
		}
		var y string
		switch c.Position {
		case types.CaptionTop:
			y = strconv.Itoa(margin)
		case types.CaptionCenter:
			y = "(h-text_h)/2"
		default:
			y = fmt.Sprintf("h-text_h-%d", margin)
		}
		f := r.drawtext(data, tw.write(c.Text), data.Height/24, data.Brand.TextColor, "(w-text_w)/2", y)
		if c.Style == "bar" || c.Style == "" {
			f += fmt.Sprintf(":box=1:boxcolor=black@0.6:boxborderw=%d", data.Height/60)
		}
		f += fmt.Sprintf(`:enable=between(t\,%s\,%s)`,
			formatSeconds(float64(ts.StartMs)/1000), formatSeconds(float64(ts.EndMs)/1000))
		filters = append(filters, f)
	}
	return filters
}

func (r *FFmpegRenderer) drawtext(data *composition.Data, textFile string, size int, fontColor, x, y string) string {
	font := "font=" + ffmpeg.EscapeValue(data.Brand.FontFamily)
	if r.config.FontFile != "" {
		font = "fontfile=" + ffmpeg.EscapeValue(r.config.FontFile)
	}
	return fmt.Sprintf("drawtext=%s:textfile=%s:expansion=none:fontsize=%d:fontcolor=%s:x=%s:y=%s",
		font, ffmpeg.EscapeValue(textFile), size, color(fontColor), x, y)
}

// fadeFilters applies the fade envelope of the scene transition. ffmpeg
// multiplies consecutive fades, so overlapping ramps are split at the
// middle of the scene.
func fadeFilters(s composition.Scene) []string {
	t := s.Transition
	if t.Type == types.TransitionNone || t.DurationFrames <= 0 || s.DurationFrames <= 0 {
		return nil
	}
	in := min(t.DurationFrames, s.DurationFrames/2)
	out := min(t.DurationFrames, s.DurationFrames-in)
	var filters []string
	if in > 0 {
		filters = append(filters, fmt.Sprintf("fade=t=in:s=0:n=%d", in))
	}
	if out > 0 {
		filters = append(filters, fmt.Sprintf("fade=t=out:s=%d:n=%d", s.DurationFrames-out, out))
	}
	return filters
}

// color converts css hex colors to the 0xRRGGBB form ffmpeg expects.
// Named colors are passed through.
func color(c string) string {
	if strings.HasPrefix(c, "#") {
		return "0x" + strings.TrimPrefix(c, "#")
	}
	if c == "" {
		return "black"
	}
	return c
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
