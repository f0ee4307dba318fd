// Package ffmpeg runs the ffmpeg binary. It is shared by the screencast
// encoder and the ffmpeg renderer.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jakopako/scenecaster/internal/log"
)

const DefaultBinary = "ffmpeg"

// maxOutput limits how much of ffmpeg's output ends up in error messages.
const maxOutput = 2000

// Run executes ffmpeg with the given arguments.
func Run(ctx context.Context, bin string, args ...string) error {
	if bin == "" {
		bin = DefaultBinary
	}
	logger := log.LoggerFromContext(ctx)
	logger.Debug("running ffmpeg", slog.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg error: %v, output: %s", err, tail(out))
	}
	return nil
}

func tail(out []byte) string {
	out = bytes.TrimSpace(out)
	if len(out) > maxOutput {
		out = out[len(out)-maxOutput:]
	}
	return string(out)
}

// ConcatEntry is one input of a concat demuxer list. A zero Duration
// leaves the input at its natural length.
type ConcatEntry struct {
	File     string
	Duration time.Duration
}

// WriteConcatList writes a file usable with `-f concat -safe 0 -i path`.
func WriteConcatList(path string, entries []ConcatEntry) error {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, e := range entries {
		abs, err := filepath.Abs(e.File)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
		if e.Duration > 0 {
			fmt.Fprintf(&b, "duration %.3f\n", e.Duration.Seconds())
		}
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

var filterReplacer = strings.NewReplacer(
	`\`, `\\\\`,
	`'`, `\\\'`,
	`:`, `\\:`,
	`,`, `\,`,
	`;`, `\;`,
	`[`, `\[`,
	`]`, `\]`,
)

// EscapeValue escapes s for use as an unquoted filter option value inside
// a filtergraph. Both the option parser and the graph parser unescape it.
func EscapeValue(s string) string {
	return filterReplacer.Replace(s)
}
