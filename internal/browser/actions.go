package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/jakopako/scenecaster/internal/types"
)

// NavigationError is returned if a page cannot be loaded.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// TimeoutError is returned if an element does not reach the expected
// state in time.
type TimeoutError struct {
	Selector string
	State    types.WaitState
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timeout %dms exceeded waiting for %q to be %s", e.Timeout.Milliseconds(), e.Selector, e.State)
}

// InterceptedError is returned if another element would receive a click.
type InterceptedError struct {
	Selector string
	Other    string
}

func (e *InterceptedError) Error() string {
	return fmt.Sprintf("element click intercepted: %s would receive the pointer event instead of %q", e.Other, e.Selector)
}

// Navigate loads url and waits for the network to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	start := time.Now()
	if err := s.run(ctx, s.opts.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	idleCtx, cancel := context.WithTimeout(ctx, max(s.opts.NavigationTimeout-time.Since(start), 0))
	defer cancel()
	if err := s.network.waitIdle(idleCtx, networkQuietPeriod); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("network did not settle after page load", slog.String("url", url))
	}
	return s.slowMo(ctx)
}

// WaitFor blocks until the first element matching selector is in state.
func (s *Session) WaitFor(ctx context.Context, selector string, state types.WaitState, timeout time.Duration) error {
	expr, err := waitExpression(selector, state)
	if err != nil {
		return err
	}
	var ok bool
	err = s.run(ctx, timeout+time.Second, chromedp.Poll(expr, &ok,
		chromedp.WithPollingInterval(50*time.Millisecond),
		chromedp.WithPollingTimeout(timeout)))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, chromedp.ErrPollingTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return &TimeoutError{Selector: selector, State: state, Timeout: timeout}
		}
		return err
	}
	return nil
}

// Click waits for the element to be visible, scrolls it into view and
// clicks its center with the mouse.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.WaitFor(ctx, selector, types.WaitVisible, s.opts.ActionTimeout); err != nil {
		return err
	}
	var target struct {
		Found bool    `json:"found"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
		OK    bool    `json:"ok"`
		Hit   string  `json:"hit"`
	}
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Evaluate(clickTargetScript(selector), &target)); err != nil {
		return err
	}
	if !target.Found {
		return &TimeoutError{Selector: selector, State: types.WaitVisible, Timeout: s.opts.ActionTimeout}
	}
	if !target.OK {
		return &InterceptedError{Selector: selector, Other: target.Hit}
	}
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.MouseClickXY(target.X, target.Y)); err != nil {
		return err
	}
	return s.slowMo(ctx)
}

// Clear empties the value of an input or textarea.
func (s *Session) Clear(ctx context.Context, selector string) error {
	var found bool
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Evaluate(clearScript(selector), &found)); err != nil {
		return err
	}
	if !found {
		return &TimeoutError{Selector: selector, State: types.WaitAttached, Timeout: s.opts.ActionTimeout}
	}
	return s.slowMo(ctx)
}

// Type sends text to the focused element one character at a time.
func (s *Session) Type(ctx context.Context, text string, delay time.Duration) error {
	for _, r := range text {
		if err := s.run(ctx, s.opts.ActionTimeout, chromedp.KeyEvent(string(r))); err != nil {
			return err
		}
		if err := s.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return s.slowMo(ctx)
}

// ScrollIntoView scrolls the element matching selector into the viewport
// if it is not visible yet.
func (s *Session) ScrollIntoView(ctx context.Context, selector string, smooth bool) error {
	if err := s.WaitFor(ctx, selector, types.WaitAttached, s.opts.ActionTimeout); err != nil {
		return err
	}
	var scrolled bool
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Evaluate(scrollIntoViewScript(selector, smooth), &scrolled)); err != nil {
		return err
	}
	if scrolled && smooth {
		if err := s.Sleep(ctx, smoothScrollSettle); err != nil {
			return err
		}
	}
	return s.slowMo(ctx)
}

// ScrollBy scrolls the window by x and y pixels.
func (s *Session) ScrollBy(ctx context.Context, x, y float64, smooth bool) error {
	var res bool
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Evaluate(scrollByScript(x, y, smooth), &res)); err != nil {
		return err
	}
	if smooth {
		if err := s.Sleep(ctx, smoothScrollSettle); err != nil {
			return err
		}
	}
	return s.slowMo(ctx)
}

// InjectStylesheet adds css to the current document and to every document
// loaded later in this session.
func (s *Session) InjectStylesheet(ctx context.Context, css string) error {
	script := styleScript(css)
	return s.run(ctx, s.opts.ActionTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
		chromedp.Evaluate(script, nil),
	)
}

// Highlight draws a pulsing ring around the element. The returned
// function removes it again.
func (s *Session) Highlight(ctx context.Context, selector, color string) (func(context.Context) error, error) {
	id := "scenecaster-highlight-" + uuid.NewString()
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Evaluate(highlightScript(selector, color, id), nil)); err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		return s.run(ctx, s.opts.ActionTimeout, chromedp.Evaluate(removeElementScript(id), nil))
	}, nil
}

// BoundingBox returns the position of the element relative to the
// viewport. It reports false if there is no such element.
func (s *Session) BoundingBox(ctx context.Context, selector string) (types.Rect, bool) {
	var box struct {
		Found bool `json:"found"`
		types.Rect
	}
	if err := s.run(ctx, 2*time.Second, chromedp.Evaluate(boundingBoxScript(selector), &box)); err != nil {
		s.logger.Debug(fmt.Sprintf("no bounding box for %q: %v", selector, err))
		return types.Rect{}, false
	}
	return box.Rect, box.Found
}

// URL returns the url of the current page, empty if it cannot be
// determined.
func (s *Session) URL(ctx context.Context) string {
	var url string
	if err := s.run(ctx, 2*time.Second, chromedp.Location(&url)); err != nil {
		return ""
	}
	return url
}

// jsString quotes s as a javascript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
