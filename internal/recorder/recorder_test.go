package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jakopako/scenecaster/internal/browser"
	"github.com/jakopako/scenecaster/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type fakeSession struct {
	clock     *clock
	started   time.Time
	calls     []string
	failOn    string
	failErr   error
	closed    int
	ended     time.Time
	encode    time.Duration
	css       []string
	highlight int
	removed   int
}

func newFakeSession(c *clock) *fakeSession {
	return &fakeSession{clock: c, started: c.t}
}

func (f *fakeSession) call(name string) error {
	f.calls = append(f.calls, name)
	f.clock.t = f.clock.t.Add(10 * time.Millisecond)
	if f.failOn != "" && strings.HasPrefix(name, f.failOn) {
		return f.failErr
	}
	return nil
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	return f.call("navigate " + url)
}

func (f *fakeSession) WaitFor(_ context.Context, selector string, state types.WaitState, _ time.Duration) error {
	return f.call(fmt.Sprintf("waitFor %s %s", selector, state))
}

func (f *fakeSession) Click(_ context.Context, selector string) error {
	return f.call("click " + selector)
}

func (f *fakeSession) Clear(_ context.Context, selector string) error {
	return f.call("clear " + selector)
}

func (f *fakeSession) Type(_ context.Context, text string, _ time.Duration) error {
	return f.call("type " + text)
}

func (f *fakeSession) ScrollIntoView(_ context.Context, selector string, _ bool) error {
	return f.call("scrollIntoView " + selector)
}

func (f *fakeSession) ScrollBy(_ context.Context, x, y float64, _ bool) error {
	return f.call(fmt.Sprintf("scrollBy %.0f,%.0f", x, y))
}

func (f *fakeSession) Sleep(_ context.Context, d time.Duration) error {
	f.clock.t = f.clock.t.Add(d)
	return nil
}

func (f *fakeSession) InjectStylesheet(_ context.Context, css string) error {
	f.css = append(f.css, css)
	return nil
}

func (f *fakeSession) Highlight(_ context.Context, _, _ string) (func(context.Context) error, error) {
	f.highlight++
	return func(context.Context) error {
		f.removed++
		return nil
	}, nil
}

func (f *fakeSession) BoundingBox(_ context.Context, _ string) (types.Rect, bool) {
	return types.Rect{X: 10, Y: 20, Width: 100, Height: 40}, true
}

func (f *fakeSession) URL(context.Context) string { return "https://example.com/login" }

func (f *fakeSession) StartedAt() time.Time { return f.started }

func (f *fakeSession) EndedAt() time.Time { return f.ended }

// Close stops the capture at the current time and then spends f.encode
// finalizing the video.
func (f *fakeSession) Close(context.Context) (string, error) {
	f.closed++
	f.ended = f.clock.t
	f.clock.t = f.clock.t.Add(f.encode)
	return "/tmp/recording.webm", nil
}

func newTestRecorder(sess *fakeSession, c *clock) (*Recorder, *browser.Options) {
	var launched browser.Options
	r := New(func(_ context.Context, opts browser.Options) (Session, error) {
		launched = opts
		return sess, nil
	}, browser.Options{})
	r.now = c.now
	return r, &launched
}

func loginScene() *types.BrowserScene {
	return &types.BrowserScene{
		ID:  "login",
		URL: "https://example.com",
		Steps: types.StepList{
			types.NavigateStep{StepCommon: types.StepCommon{Duration: 1}, URL: "https://example.com/login"},
			types.ClickStep{StepCommon: types.StepCommon{Duration: 2, Caption: &types.Caption{Text: "Sign in"}}, Selector: "#btn"},
		},
		SelectorOverrides: map[string]map[string]string{"mobile": {"#btn": ".mobile-btn"}},
		CustomCSS:         ".cookie-banner { display: none; }",
	}
}

var (
	desktop = types.OutputVariant{ID: "desktop", Width: 1920, Height: 1080, AspectRatio: "16:9"}
	mobile  = types.OutputVariant{ID: "mobile", Width: 1080, Height: 1920, AspectRatio: "9:16", Viewport: &types.Viewport{Width: 390, Height: 844}}
)

func TestRecord(t *testing.T) {
	c := &clock{t: time.Unix(1700000000, 0)}
	sess := newFakeSession(c)
	r, launched := newTestRecorder(sess, c)

	res, err := r.Record(context.Background(), loginScene(), desktop, Options{WorkDir: t.TempDir(), GlobalCSS: "body { margin: 0; }"})
	require.NoError(t, err)

	assert.Equal(t, []string{"navigate https://example.com/login", "click #btn"}, sess.calls)
	assert.Equal(t, 1, sess.closed)
	assert.Equal(t, []string{"body { margin: 0; }\n.cookie-banner { display: none; }"}, sess.css)
	assert.Equal(t, 1920, launched.Width)
	assert.Equal(t, 1080, launched.Height)

	assert.Equal(t, "login", res.SceneID)
	assert.Equal(t, "desktop", res.VariantID)
	assert.Equal(t, "/tmp/recording.webm", res.VideoPath)
	require.Len(t, res.Timestamps, 2)

	first, second := res.Timestamps[0], res.Timestamps[1]
	assert.Equal(t, int64(0), first.StartMs)
	assert.Equal(t, int64(1010), first.EndMs)
	assert.Nil(t, first.TargetRect)
	assert.Equal(t, types.ActionNavigate, first.ActionType)

	assert.Equal(t, 1, second.StepIndex)
	assert.Equal(t, int64(1010), second.StartMs)
	assert.Equal(t, int64(3020), second.EndMs)
	require.NotNil(t, second.TargetRect)
	assert.Equal(t, 100.0, second.TargetRect.Width)
	assert.Equal(t, "Sign in", second.Caption.Text)
	assert.Equal(t, int64(3020), res.DurationMs)
}

func TestRecordDurationExcludesEncoding(t *testing.T) {
	c := &clock{t: time.Unix(1700000000, 0)}
	sess := newFakeSession(c)
	sess.encode = 6 * time.Second
	r, _ := newTestRecorder(sess, c)

	res, err := r.Record(context.Background(), loginScene(), desktop, Options{WorkDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, int64(3020), res.DurationMs)
	assert.Equal(t, res.Timestamps[len(res.Timestamps)-1].EndMs, res.DurationMs)
}

func TestRecordTimestampsAreOrdered(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	sess := newFakeSession(c)
	r, _ := newTestRecorder(sess, c)

	scene := loginScene()
	scene.Steps = append(scene.Steps,
		types.FillStep{StepCommon: types.StepCommon{Duration: 0.5}, Selector: "#email", Value: "a@b.c", TypeSpeed: 10},
		types.ScrollStep{StepCommon: types.StepCommon{Duration: 0}, Y: 400},
		types.WaitStep{StepCommon: types.StepCommon{Duration: 0}, Timeout: 300},
	)
	res, err := r.Record(context.Background(), scene, desktop, Options{WorkDir: t.TempDir()})
	require.NoError(t, err)
	require.Len(t, res.Timestamps, 5)

	for i, ts := range res.Timestamps {
		assert.Equal(t, i, ts.StepIndex)
		assert.LessOrEqual(t, ts.StartMs, ts.EndMs)
		if i > 0 {
			assert.LessOrEqual(t, res.Timestamps[i-1].EndMs, ts.StartMs)
		}
	}
	assert.Equal(t, []string{
		"navigate https://example.com/login",
		"click #btn",
		"click #email",
		"clear #email",
		"type a@b.c",
		"scrollBy 0,400",
	}, sess.calls)
}

func TestRecordSelectorOverrides(t *testing.T) {
	tests := []struct {
		variant types.OutputVariant
		want    string
	}{
		{mobile, "click .mobile-btn"},
		{desktop, "click #btn"},
	}
	for _, tc := range tests {
		t.Run(tc.variant.ID, func(t *testing.T) {
			c := &clock{t: time.Unix(0, 0)}
			sess := newFakeSession(c)
			r, launched := newTestRecorder(sess, c)

			_, err := r.Record(context.Background(), loginScene(), tc.variant, Options{WorkDir: t.TempDir()})
			require.NoError(t, err)
			assert.Equal(t, tc.want, sess.calls[1])
			w, h := tc.variant.EffectiveViewport()
			assert.Equal(t, w, launched.Width)
			assert.Equal(t, h, launched.Height)
		})
	}
}

func TestRecordHighlight(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	sess := newFakeSession(c)
	r, _ := newTestRecorder(sess, c)

	scene := loginScene()
	scene.Steps[1] = types.ClickStep{
		StepCommon: types.StepCommon{Duration: 0},
		Selector:   "#btn",
		Highlight:  true,
		WaitFor:    &types.WaitFor{Selector: "#btn", State: types.WaitVisible, Timeout: 5000},
	}
	res, err := r.Record(context.Background(), scene, desktop, Options{WorkDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 1, sess.highlight)
	assert.Equal(t, 1, sess.removed)
	assert.Equal(t, []string{
		"navigate https://example.com/login",
		"waitFor #btn visible",
		"waitFor #btn visible",
		"click #btn",
	}, sess.calls)
	// three page calls of 10ms each plus the highlight pause
	assert.Equal(t, int64(30)+highlightPause.Milliseconds(), res.Timestamps[1].EndMs-res.Timestamps[1].StartMs)
}

func TestRecordFailureClosesSession(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	sess := newFakeSession(c)
	sess.failOn = "click"
	sess.failErr = &browser.TimeoutError{Selector: "#btn", State: types.WaitVisible, Timeout: 5 * time.Second}
	r, _ := newTestRecorder(sess, c)

	res, err := r.Record(context.Background(), loginScene(), desktop, Options{WorkDir: t.TempDir()})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1, sess.closed)

	var recErr *RecordingError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, KindElementNotFound, recErr.Kind)
	assert.Equal(t, "login", recErr.SceneID)
	assert.Equal(t, 1, recErr.StepIndex)
	assert.Equal(t, "https://example.com/login", recErr.PageURL)
	assert.Contains(t, err.Error(), `scene "login", step 2`)
	assert.Contains(t, err.Error(), "--no-headless")
	assert.ErrorIs(t, err, sess.failErr)
}

func TestRecordLaunchFailure(t *testing.T) {
	r := New(func(context.Context, browser.Options) (Session, error) {
		return nil, errors.New("chrome not found")
	}, browser.Options{})
	_, err := r.Record(context.Background(), loginScene(), desktop, Options{WorkDir: t.TempDir()})
	assert.ErrorContains(t, err, "chrome not found")
}

func TestClassify(t *testing.T) {
	click := types.ClickStep{Selector: "#btn"}
	nav := types.NavigateStep{URL: "https://example.com"}
	tests := []struct {
		name string
		err  error
		step types.Step
		want ErrorKind
	}{
		{"navigation error", &browser.NavigationError{URL: "https://example.com", Err: errors.New("net::ERR_NAME_NOT_RESOLVED")}, nav, KindNavigation},
		{"timeout error", &browser.TimeoutError{Selector: "#btn", State: types.WaitVisible}, click, KindElementNotFound},
		{"intercepted", &browser.InterceptedError{Selector: "#btn", Other: "div.modal"}, click, KindIntercepted},
		{"deadline on navigate", fmt.Errorf("load: %w", context.DeadlineExceeded), nav, KindNavigation},
		{"deadline on click", fmt.Errorf("click: %w", context.DeadlineExceeded), click, KindElementNotFound},
		{"message net err", errors.New("page load failed: net::ERR_CONNECTION_REFUSED"), nav, KindNavigation},
		{"message overlay", errors.New("an overlay covers the element"), click, KindIntercepted},
		{"unknown", errors.New("something else"), click, KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.err, tc.step))
		})
	}
}

func TestRecordingErrorMessages(t *testing.T) {
	e := newRecordingError(&browser.NavigationError{URL: "http://localhost:3000", Err: errors.New("net::ERR_CONNECTION_REFUSED")},
		"intro", 0, types.NavigateStep{URL: "http://localhost:3000"}, "")
	assert.Equal(t, KindNavigation, e.Kind)
	assert.Contains(t, e.Error(), `Failed to load URL "http://localhost:3000" in scene "intro", step 1.`)
	assert.Contains(t, e.Error(), "Ensure the site is running")

	e = newRecordingError(&browser.InterceptedError{Selector: "#buy", Other: "div.cookie"}, "checkout", 2, types.ClickStep{Selector: "#buy"}, "https://shop.example")
	assert.Contains(t, e.Error(), `Element "#buy" is covered by another element`)
	assert.Contains(t, e.Error(), "customCss")
}

func TestResolveSelectors(t *testing.T) {
	overrides := map[string]string{"#btn": ".mobile-btn", "#menu": ".burger"}
	orig := types.ClickStep{Selector: "#btn", WaitFor: &types.WaitFor{Selector: "#menu", State: types.WaitVisible}}

	got := ResolveSelectors(orig, overrides).(types.ClickStep)
	assert.Equal(t, ".mobile-btn", got.Selector)
	assert.Equal(t, ".burger", got.WaitFor.Selector)
	assert.Equal(t, "#btn", orig.Selector)
	assert.Equal(t, "#menu", orig.WaitFor.Selector)

	scroll := ResolveSelectors(types.ScrollStep{Y: 200}, overrides).(types.ScrollStep)
	assert.Equal(t, "", scroll.Selector)

	fill := ResolveSelectors(types.FillStep{Selector: "#email"}, overrides).(types.FillStep)
	assert.Equal(t, "#email", fill.Selector)

	assert.Equal(t, orig, ResolveSelectors(orig, nil))
}
