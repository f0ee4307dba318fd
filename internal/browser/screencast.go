package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jakopako/scenecaster/internal/ffmpeg"
)

// captureFPS is the constant frame rate of encoded recordings.
const captureFPS = 30

type frame struct {
	path string
	ts   time.Time
}

// screencast collects the jpeg frames sent by the browser.
type screencast struct {
	dir     string
	pending sync.WaitGroup

	mu      sync.Mutex
	frames  []frame
	seq     int
	stopped bool
}

func newScreencast(dir string) *screencast {
	return &screencast{dir: dir}
}

// begin registers an incoming frame. It reports false once the capture
// has been stopped, in which case the frame is dropped.
func (sc *screencast) begin() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.stopped {
		return false
	}
	sc.pending.Add(1)
	return true
}

// stop refuses further frames and waits for the registered ones to be
// written.
func (sc *screencast) stop() {
	sc.mu.Lock()
	sc.stopped = true
	sc.mu.Unlock()
	sc.pending.Wait()
}

func (sc *screencast) addEncoded(data string, ts time.Time) error {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return err
	}
	return sc.add(b, ts)
}

func (sc *screencast) add(b []byte, ts time.Time) error {
	sc.mu.Lock()
	path := filepath.Join(sc.dir, fmt.Sprintf("frame_%06d.jpg", sc.seq))
	sc.seq++
	sc.mu.Unlock()

	if err := os.WriteFile(path, b, 0644); err != nil {
		return err
	}
	sc.mu.Lock()
	sc.frames = append(sc.frames, frame{path: path, ts: ts})
	sc.mu.Unlock()
	return nil
}

func (sc *screencast) count() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.frames)
}

// frameDurations returns how long each frame stays on screen so that the
// video starts at start and ends at end. Frames are expected in timestamp
// order. The first frame is shown from start, the last one until end.
func frameDurations(frames []frame, start, end time.Time) []time.Duration {
	durations := make([]time.Duration, len(frames))
	for i := range frames {
		from := frames[i].ts
		if i == 0 || from.Before(start) {
			from = start
		}
		to := end
		if i+1 < len(frames) {
			to = frames[i+1].ts
		}
		if to.Before(from) {
			to = from
		}
		durations[i] = to.Sub(from)
	}
	return durations
}

// encode writes all frames into a video that spans start to end.
func (sc *screencast) encode(ctx context.Context, ffmpegPath, codec, out string, start, end time.Time) error {
	sc.mu.Lock()
	frames := append([]frame(nil), sc.frames...)
	sc.mu.Unlock()
	if len(frames) == 0 {
		return errors.New("no frames were captured")
	}
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].ts.Before(frames[j].ts) })

	durations := frameDurations(frames, start, end)
	entries := make([]ffmpeg.ConcatEntry, 0, len(frames)+1)
	for i, f := range frames {
		if durations[i] <= 0 {
			continue
		}
		entries = append(entries, ffmpeg.ConcatEntry{File: f.path, Duration: durations[i]})
	}
	if len(entries) == 0 {
		entries = append(entries, ffmpeg.ConcatEntry{File: frames[len(frames)-1].path, Duration: time.Second / captureFPS})
	}
	// the concat demuxer ignores the duration of the last entry unless the
	// file is listed once more
	entries = append(entries, ffmpeg.ConcatEntry{File: entries[len(entries)-1].File})

	list := filepath.Join(sc.dir, "frames.txt")
	if err := ffmpeg.WriteConcatList(list, entries); err != nil {
		return err
	}
	return ffmpeg.Run(ctx, ffmpegPath, encodeArgs(list, codec, out)...)
}

func encodeArgs(list, codec, out string) []string {
	args := []string{
		"-y",
		"-f", "concat", "-safe", "0", "-i", list,
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-fps_mode", "cfr", "-r", fmt.Sprint(captureFPS),
		"-pix_fmt", "yuv420p",
		"-c:v", codec,
	}
	if codec == "libvpx-vp9" || codec == "libvpx" {
		args = append(args, "-b:v", "0", "-crf", "32", "-deadline", "realtime", "-cpu-used", "8")
	}
	return append(args, out)
}
