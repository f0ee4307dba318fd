package log

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerFromContext(t *testing.T) {
	if LoggerFromContext(context.Background()) != slog.Default() {
		t.Errorf("expected default logger for empty context")
	}

	logger := slog.Default().With(slog.String("scene", "intro"))
	ctx := ContextWithLogger(context.Background(), logger)
	if got := LoggerFromContext(ctx); got != logger {
		t.Errorf("LoggerFromContext() = %v; want %v", got, logger)
	}
}

func TestLevel(t *testing.T) {
	defer func() { Debug = false }()

	Debug = false
	if level() != slog.LevelInfo {
		t.Errorf("level() = %v; want %v", level(), slog.LevelInfo)
	}
	Debug = true
	if level() != slog.LevelDebug {
		t.Errorf("level() = %v; want %v", level(), slog.LevelDebug)
	}
}
