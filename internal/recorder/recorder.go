// Package recorder records browser scenes. It runs the steps of a scene
// strictly in order against a fresh browser session and notes when each
// step started and ended.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jakopako/scenecaster/internal/browser"
	"github.com/jakopako/scenecaster/internal/log"
	"github.com/jakopako/scenecaster/internal/types"
	"github.com/jakopako/scenecaster/internal/utils"
)

// highlightPause keeps the highlight ring on screen before the click.
const highlightPause = 500 * time.Millisecond

// Session is a recorded browser page.
type Session interface {
	Page
	InjectStylesheet(ctx context.Context, css string) error
	Highlight(ctx context.Context, selector, color string) (func(context.Context) error, error)
	BoundingBox(ctx context.Context, selector string) (types.Rect, bool)
	URL(ctx context.Context) string
	StartedAt() time.Time
	// EndedAt is the end of the capture, valid once Close returned.
	EndedAt() time.Time
	Close(ctx context.Context) (string, error)
}

// LaunchFunc opens a new recorded session.
type LaunchFunc func(ctx context.Context, opts browser.Options) (Session, error)

// LaunchBrowser launches a chromium session.
func LaunchBrowser(ctx context.Context, opts browser.Options) (Session, error) {
	s, err := browser.Launch(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Options are set per recording.
type Options struct {
	Headless         bool
	SlowMo           time.Duration
	WorkDir          string
	GlobalCSS        string
	StorageStatePath string
	HighlightColor   string
}

// Recorder records browser scenes. Base holds the browser settings that
// are the same for every recording, eg the chrome binary and timeouts.
type Recorder struct {
	launch LaunchFunc
	base   browser.Options
	now    func() time.Time
}

func New(launch LaunchFunc, base browser.Options) *Recorder {
	if launch == nil {
		launch = LaunchBrowser
	}
	return &Recorder{launch: launch, base: base, now: time.Now}
}

// Record produces the recording of one scene for one variant. The browser
// session is closed on every path before Record returns. A failing step
// aborts the recording with a *RecordingError.
func (r *Recorder) Record(ctx context.Context, scene *types.BrowserScene, variant types.OutputVariant, opts Options) (*types.RecordingResult, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("scene", scene.ID), slog.String("variant", variant.ID))
	ctx = log.ContextWithLogger(ctx, logger)

	bo := r.base
	bo.Width, bo.Height = variant.EffectiveViewport()
	bo.Headless = opts.Headless
	bo.SlowMo = opts.SlowMo
	bo.StorageStatePath = opts.StorageStatePath
	bo.VideoDir = filepath.Join(opts.WorkDir, "recordings",
		utils.SanitizeFilename(scene.ID), utils.SanitizeFilename(variant.ID), uuid.NewString())

	logger.Info("recording scene", slog.Int("width", bo.Width), slog.Int("height", bo.Height))
	var timestamps []types.ActionTimestamp
	videoPath, span, err := r.withSession(ctx, bo, func(sess Session) error {
		var err error
		timestamps, err = r.runSteps(ctx, sess, scene, variant, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	result := &types.RecordingResult{
		SceneID:    scene.ID,
		VariantID:  variant.ID,
		VideoPath:  videoPath,
		DurationMs: span.Milliseconds(),
		Timestamps: timestamps,
	}
	logger.Info("recorded scene", slog.Int64("durationMs", result.DurationMs), slog.Int("steps", len(timestamps)))
	return result, nil
}

// withSession launches a session, runs fn and always closes the session.
// It returns the path of the finalized video and the length of the
// capture. Encoding the video after the capture stopped is not part of it.
func (r *Recorder) withSession(ctx context.Context, opts browser.Options, fn func(Session) error) (videoPath string, span time.Duration, err error) {
	sess, err := r.launch(ctx, opts)
	if err != nil {
		return "", 0, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		v, closeErr := sess.Close(context.WithoutCancel(ctx))
		if err != nil {
			if closeErr != nil {
				log.LoggerFromContext(ctx).Warn(fmt.Sprintf("error closing browser session: %v", closeErr))
			}
			return
		}
		if closeErr != nil {
			err = fmt.Errorf("failed to finalize recording: %w", closeErr)
			return
		}
		videoPath = v
		end := sess.EndedAt()
		if end.IsZero() {
			end = r.now()
		}
		span = end.Sub(sess.StartedAt())
	}()
	return "", 0, fn(sess)
}

func (r *Recorder) runSteps(ctx context.Context, sess Session, scene *types.BrowserScene, variant types.OutputVariant, opts Options) ([]types.ActionTimestamp, error) {
	logger := log.LoggerFromContext(ctx)
	started := sess.StartedAt()
	elapsed := func() int64 { return r.now().Sub(started).Milliseconds() }

	if css := combineCSS(opts.GlobalCSS, scene.CustomCSS); css != "" {
		if err := sess.InjectStylesheet(ctx, css); err != nil {
			return nil, fmt.Errorf("failed to inject css into scene %s: %w", scene.ID, err)
		}
	}
	color := opts.HighlightColor
	if color == "" {
		color = "#3b82f6"
	}

	overrides := scene.SelectorOverrides[variant.ID]
	timestamps := make([]types.ActionTimestamp, 0, len(scene.Steps))
	for i, raw := range scene.Steps {
		step := ResolveSelectors(raw, overrides)
		fail := func(err error) error {
			return newRecordingError(err, scene.ID, i, step, sess.URL(ctx))
		}
		start := elapsed()
		logger.Debug(fmt.Sprintf("executing step %d: %s", i+1, step.Action()))

		var removeHighlight func(context.Context) error
		if click, ok := step.(types.ClickStep); ok && click.Highlight {
			if err := waitFor(ctx, sess, click.WaitFor); err != nil {
				return nil, fail(err)
			}
			remove, err := sess.Highlight(ctx, click.Selector, color)
			if err != nil {
				logger.Warn(fmt.Sprintf("could not highlight %q: %v", click.Selector, err))
			} else {
				removeHighlight = remove
				if err := sess.Sleep(ctx, highlightPause); err != nil {
					return nil, fail(err)
				}
			}
		}

		if err := Execute(ctx, sess, step); err != nil {
			return nil, fail(err)
		}

		var target *types.Rect
		if sel, ok := types.StepSelector(step); ok {
			if box, found := sess.BoundingBox(ctx, sel); found {
				target = &box
			}
		}
		if removeHighlight != nil {
			if err := removeHighlight(ctx); err != nil {
				logger.Warn(fmt.Sprintf("could not remove highlight: %v", err))
			}
		}

		if err := sess.Sleep(ctx, seconds(step.Common().Duration)); err != nil {
			return nil, fail(err)
		}
		timestamps = append(timestamps, types.ActionTimestamp{
			StepIndex:  i,
			StartMs:    start,
			EndMs:      elapsed(),
			Caption:    step.Common().Caption,
			TargetRect: target,
			ActionType: step.Action(),
		})
	}
	return timestamps, nil
}

func combineCSS(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n")
}
