// Package browser drives a chromium instance through chromedp for the
// duration of one recording. The page is captured with the devtools
// screencast and encoded to a video file when the session is closed.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/jakopako/scenecaster/internal/log"
)

const (
	networkQuietPeriod = 500 * time.Millisecond
	videoFilename      = "recording.webm"
)

// Options configures a browser session.
type Options struct {
	Headless   bool
	SlowMo     time.Duration
	Width      int
	Height     int
	ChromePath string
	UserAgent  string
	// VideoDir receives the encoded recording. It is created if needed.
	VideoDir   string
	VideoCodec string
	FFmpegPath string
	// StorageStatePath points to a json file with cookies and local
	// storage in the format written by playwright's storageState.
	StorageStatePath  string
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
}

func (o *Options) setDefaults() {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 30 * time.Second
	}
	if o.VideoCodec == "" {
		o.VideoCodec = "libvpx-vp9"
	}
}

// Session is a single browser tab that is being recorded.
type Session struct {
	opts        Options
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *slog.Logger

	network    *networkTracker
	screencast *screencast
	startedAt  time.Time
	endedAt    time.Time

	closeOnce sync.Once
	videoPath string
	closeErr  error
}

// Launch starts a browser with the configured viewport and starts
// capturing the page. The returned session must be closed.
func Launch(ctx context.Context, opts Options) (*Session, error) {
	opts.setDefaults()
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid viewport %dx%d", opts.Width, opts.Height)
	}
	logger := log.LoggerFromContext(ctx).With(slog.String("component", "browser"))

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(opts.Width, opts.Height),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("hide-scrollbars", true),
	)
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	framesDir := filepath.Join(opts.VideoDir, "frames")
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, err
	}

	s := &Session{
		opts:        opts,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		logger:      logger,
		network:     newNetworkTracker(),
		screencast:  newScreencast(framesDir),
	}
	chromedp.ListenTarget(tabCtx, s.handleEvent)

	var storage *StorageState
	if opts.StorageStatePath != "" {
		var err error
		if storage, err = LoadStorageState(opts.StorageStatePath); err != nil {
			s.abort()
			return nil, err
		}
	}

	actions := []chromedp.Action{
		network.Enable(),
		emulation.SetDeviceMetricsOverride(int64(opts.Width), int64(opts.Height), 1, false),
	}
	if log.Debug {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			protocolVersion, product, _, _, _, err := cdpbrowser.GetVersion().Do(ctx)
			if err != nil {
				logger.Warn("failed to get chrome version", slog.String("err", err.Error()))
				return nil
			}
			logger.Debug(fmt.Sprintf("chrome version: protocolVersion=%s, product=%s", protocolVersion, product))
			return nil
		}))
	}
	if storage != nil {
		actions = append(actions, storage.actions()...)
	}
	actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.StartScreencast().
			WithFormat(page.ScreencastFormatJpeg).
			WithQuality(90).
			WithMaxWidth(int64(opts.Width)).
			WithMaxHeight(int64(opts.Height)).
			WithEveryNthFrame(1).
			Do(ctx)
	}))

	// the first run allocates the browser and binds it to the given context
	if err := chromedp.Run(tabCtx); err != nil {
		s.abort()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	runCtx, cancel := context.WithTimeout(tabCtx, opts.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		s.abort()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	s.startedAt = time.Now()
	logger.Debug("browser session started", slog.Int("width", opts.Width), slog.Int("height", opts.Height), slog.Bool("headless", opts.Headless))
	return s, nil
}

func (s *Session) handleEvent(ev any) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		s.network.started(string(ev.RequestID))
	case *network.EventLoadingFinished:
		s.network.finished(string(ev.RequestID))
	case *network.EventLoadingFailed:
		s.network.finished(string(ev.RequestID))
	case *page.EventScreencastFrame:
		if !s.screencast.begin() {
			return
		}
		// acknowledging blocks, so it must not happen in the listener
		go func() {
			defer s.screencast.pending.Done()
			s.handleFrame(ev)
		}()
	}
}

func (s *Session) handleFrame(ev *page.EventScreencastFrame) {
	ts := time.Now()
	if ev.Metadata != nil && ev.Metadata.Timestamp != nil {
		ts = ev.Metadata.Timestamp.Time()
	}
	if err := s.screencast.addEncoded(ev.Data, ts); err != nil {
		s.logger.Warn(fmt.Sprintf("dropping screencast frame: %v", err))
	}
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return
	}
	if err := page.ScreencastFrameAck(ev.SessionID).Do(cdp.WithExecutor(s.ctx, c.Target)); err != nil && s.ctx.Err() == nil {
		s.logger.Debug(fmt.Sprintf("screencast ack failed: %v", err))
	}
}

// StartedAt is the instant the capture started. Video time 0 corresponds
// to it.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// EndedAt is the instant the capture stopped. It is zero until Close has
// been called. The encoded video spans StartedAt to EndedAt.
func (s *Session) EndedAt() time.Time {
	return s.endedAt
}

// Close stops the capture, shuts the browser down and encodes the video.
// It returns the path of the video. Calling Close more than once returns
// the result of the first call.
func (s *Session) Close(ctx context.Context) (string, error) {
	s.closeOnce.Do(func() {
		s.videoPath, s.closeErr = s.close(ctx)
	})
	return s.videoPath, s.closeErr
}

func (s *Session) close(ctx context.Context) (string, error) {
	stopCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(stopCtx, page.StopScreencast()); err != nil {
		s.logger.Debug(fmt.Sprintf("failed to stop screencast: %v", err))
	}
	s.screencast.stop()
	if s.screencast.count() == 0 {
		// pages that never repaint produce no screencast frames
		var buf []byte
		err := chromedp.Run(stopCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatJpeg).WithQuality(90).Do(ctx)
			return err
		}))
		if err == nil {
			err = s.screencast.add(buf, s.startedAt)
		}
		if err != nil {
			s.logger.Warn(fmt.Sprintf("could not capture fallback frame: %v", err))
		}
	}
	end := time.Now()
	s.endedAt = end
	s.abort()

	if !log.Debug {
		defer os.RemoveAll(s.screencast.dir)
	}
	out := filepath.Join(s.opts.VideoDir, videoFilename)
	if err := s.screencast.encode(ctx, s.opts.FFmpegPath, s.opts.VideoCodec, out, s.startedAt, end); err != nil {
		return "", fmt.Errorf("failed to encode recording: %w", err)
	}
	s.logger.Debug("recording encoded", slog.String("path", out), slog.Int("frames", s.screencast.count()))
	return out, nil
}

// abort shuts the browser down without encoding anything.
func (s *Session) abort() {
	s.cancelTab()
	s.cancelAlloc()
}

// run executes actions against the tab, bounded by timeout and by ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// slowMo pauses after an action if slow motion is configured.
func (s *Session) slowMo(ctx context.Context) error {
	if s.opts.SlowMo <= 0 {
		return nil
	}
	return s.Sleep(ctx, s.opts.SlowMo)
}

// Sleep blocks for d or until ctx is done.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return errors.New("browser has been closed")
	case <-t.C:
		return nil
	}
}
