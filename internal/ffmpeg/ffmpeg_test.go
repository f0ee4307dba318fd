package ffmpeg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frames.txt")
	entries := []ConcatEntry{
		{File: filepath.Join(dir, "frame_000000.jpg"), Duration: 40 * time.Millisecond},
		{File: filepath.Join(dir, "it's.jpg")},
	}
	if err := WriteConcatList(path, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content := string(b)
	expected := []string{
		"ffconcat version 1.0\n",
		"frame_000000.jpg'\nduration 0.040\n",
		`it'\''s.jpg'`,
	}
	for _, e := range expected {
		if !strings.Contains(content, e) {
			t.Errorf("concat list %q does not contain %q", content, e)
		}
	}
}

func TestEscapeValue(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Welcome", "Welcome"},
		{"Step 1: Login", `Step 1\\: Login`},
		{"/fonts/it's.ttf", `/fonts/it\\\'s.ttf`},
		{"a, b", `a\, b`},
	}
	for _, tt := range tests {
		if got := EscapeValue(tt.input); got != tt.expected {
			t.Errorf("EscapeValue(%q) = %q; want %q", tt.input, got, tt.expected)
		}
	}
}

func TestTail(t *testing.T) {
	long := strings.Repeat("x", maxOutput+10)
	if got := tail([]byte(long)); len(got) != maxOutput {
		t.Errorf("tail() returned %d bytes; want %d", len(got), maxOutput)
	}
}
