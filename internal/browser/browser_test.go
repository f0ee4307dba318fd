package browser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/jakopako/scenecaster/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameDurations(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	at := func(ms int) time.Time { return start.Add(time.Duration(ms) * time.Millisecond) }

	tests := []struct {
		name     string
		frames   []frame
		end      time.Time
		expected []time.Duration
	}{
		{
			name:     "first frame is stretched to the start and last one to the end",
			frames:   []frame{{ts: at(40)}, {ts: at(100)}, {ts: at(250)}},
			end:      at(1000),
			expected: []time.Duration{100 * time.Millisecond, 150 * time.Millisecond, 750 * time.Millisecond},
		},
		{
			name:     "frames before the start",
			frames:   []frame{{ts: at(-50)}, {ts: at(-10)}, {ts: at(500)}},
			end:      at(600),
			expected: []time.Duration{0, 500 * time.Millisecond, 100 * time.Millisecond},
		},
		{
			name:     "single frame",
			frames:   []frame{{ts: at(300)}},
			end:      at(2000),
			expected: []time.Duration{2 * time.Second},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := frameDurations(tt.frames, start, tt.end)
			assert.Equal(t, tt.expected, d)
			var total time.Duration
			for _, x := range d {
				total += x
			}
			assert.Equal(t, tt.end.Sub(start), total)
		})
	}
}

func TestScreencastAdd(t *testing.T) {
	sc := newScreencast(t.TempDir())
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sc.add([]byte{byte(i)}, time.Now()))
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, sc.count())
	files, err := filepath.Glob(filepath.Join(sc.dir, "frame_*.jpg"))
	require.NoError(t, err)
	assert.Len(t, files, 10)

	assert.Error(t, sc.addEncoded("not base64!", time.Now()))
	require.NoError(t, sc.addEncoded("aGVsbG8=", time.Now()))
	assert.Equal(t, 11, sc.count())
}

func TestScreencastStop(t *testing.T) {
	sc := newScreencast(t.TempDir())
	require.True(t, sc.begin())
	done := make(chan struct{})
	go func() {
		defer sc.pending.Done()
		assert.NoError(t, sc.add([]byte{1}, time.Now()))
		close(done)
	}()

	sc.stop()
	select {
	case <-done:
	default:
		t.Fatal("stop returned before the registered frame was written")
	}
	assert.Equal(t, 1, sc.count())

	// late frames are dropped
	assert.False(t, sc.begin())
	// the fallback screenshot is still accepted after stop
	require.NoError(t, sc.add([]byte{2}, time.Now()))
	assert.Equal(t, 2, sc.count())
}

func TestEncodeWithoutFrames(t *testing.T) {
	sc := newScreencast(t.TempDir())
	now := time.Now()
	err := sc.encode(context.Background(), "ffmpeg", "libvpx-vp9", filepath.Join(t.TempDir(), "out.webm"), now, now.Add(time.Second))
	assert.EqualError(t, err, "no frames were captured")
}

func TestEncodeArgs(t *testing.T) {
	args := strings.Join(encodeArgs("frames.txt", "libvpx-vp9", "out.webm"), " ")
	assert.Contains(t, args, "-f concat -safe 0 -i frames.txt")
	assert.Contains(t, args, "-c:v libvpx-vp9 -b:v 0 -crf 32")
	assert.True(t, strings.HasSuffix(args, "out.webm"))

	args = strings.Join(encodeArgs("frames.txt", "libx264", "out.mp4"), " ")
	assert.NotContains(t, args, "-b:v 0")
}

func TestNetworkTracker(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	n := newNetworkTracker()
	n.now = func() time.Time { return now }
	n.lastActivity = now

	n.started("1")
	n.started("2")
	now = now.Add(time.Second)
	assert.Equal(t, time.Duration(0), n.quietFor())

	n.finished("1")
	n.finished("unknown")
	assert.Equal(t, time.Duration(0), n.quietFor())

	n.finished("2")
	now = now.Add(300 * time.Millisecond)
	assert.Equal(t, 300*time.Millisecond, n.quietFor())

	// redirects reuse the request id
	n.started("3")
	n.started("3")
	n.finished("3")
	assert.Equal(t, time.Duration(0), n.quietFor())
}

func TestNetworkTrackerWaitIdle(t *testing.T) {
	n := newNetworkTracker()
	n.started("pending")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, n.waitIdle(ctx, 10*time.Millisecond), context.DeadlineExceeded)

	n.finished("pending")
	require.NoError(t, n.waitIdle(context.Background(), 10*time.Millisecond))
}

func TestWaitExpression(t *testing.T) {
	for state, cond := range waitConditions {
		expr, err := waitExpression(`a[href="/login"]`, state)
		require.NoError(t, err)
		assert.Contains(t, expr, `document.querySelector("a[href=\"/login\"]")`)
		assert.Contains(t, expr, "return "+cond+";")
	}
	_, err := waitExpression("#x", "gone")
	assert.Error(t, err)
}

func TestScripts(t *testing.T) {
	assert.Contains(t, scrollByScript(0, 400, true), `window.scrollBy({left: 0, top: 400, behavior: "smooth"})`)
	assert.Contains(t, scrollByScript(10, -5.5, false), `left: 10, top: -5.5, behavior: "instant"`)
	assert.Contains(t, styleScript("</style><script>"), `"\u003c/style\u003e\u003cscript\u003e"`)
	assert.Contains(t, highlightScript("#btn", "#3b82f6", "hl-1"), `"border: 3px solid " + "#3b82f6"`)
	assert.Contains(t, removeElementScript("hl-1"), `document.getElementById("hl-1")`)
}

func TestErrors(t *testing.T) {
	err := &TimeoutError{Selector: "#btn", State: types.WaitVisible, Timeout: 5 * time.Second}
	assert.Equal(t, `Timeout 5000ms exceeded waiting for "#btn" to be visible`, err.Error())

	nav := &NavigationError{URL: "https://example.invalid", Err: assert.AnError}
	assert.ErrorIs(t, nav, assert.AnError)
	assert.Contains(t, nav.Error(), "navigation to https://example.invalid failed")

	ic := &InterceptedError{Selector: "#btn", Other: `<div class="modal">`}
	assert.Contains(t, ic.Error(), "would receive the pointer event")
}

func TestStorageState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	content := `{
  "cookies": [
    {"name": "session", "value": "abc", "domain": ".example.com", "path": "/", "expires": -1, "httpOnly": true, "secure": true, "sameSite": "Lax"},
    {"name": "pref", "value": "dark", "domain": "example.com", "path": "", "expires": 1893456000.5, "httpOnly": false, "secure": false, "sameSite": "None"}
  ],
  "origins": [
    {"origin": "https://example.com", "localStorage": [{"name": "token", "value": "xyz"}]},
    {"origin": "https://empty.example.com", "localStorage": []}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := LoadStorageState(path)
	require.NoError(t, err)

	params := s.cookieParams()
	require.Len(t, params, 2)
	assert.Equal(t, "session", params[0].Name)
	assert.True(t, params[0].HTTPOnly)
	assert.Nil(t, params[0].Expires)
	assert.Equal(t, network.CookieSameSiteLax, params[0].SameSite)
	assert.Equal(t, "/", params[1].Path)
	require.NotNil(t, params[1].Expires)
	assert.Equal(t, int64(1893456000), params[1].Expires.Time().Unix())
	assert.Equal(t, network.CookieSameSiteNone, params[1].SameSite)

	script := s.localStorageScript()
	assert.Contains(t, script, `{"https://example.com":{"token":"xyz"}}`)
	assert.NotContains(t, script, "empty.example.com")
	assert.Len(t, s.actions(), 2)

	assert.Empty(t, (&StorageState{}).localStorageScript())
	assert.Empty(t, (&StorageState{}).actions())

	_, err = LoadStorageState(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
