// Package log sets up the default slog logger and passes loggers around via contexts.
package log

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey struct{}

var loggerCtxKey = ctxKey{}

// Debug is set by the command line and switches the log level to debug.
// Some components also keep additional artifacts (eg raw screencast frames)
// when it is set.
var Debug bool

func level() slog.Level {
	if Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func InitializeDefaultLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level()}))
	slog.SetDefault(logger)
}

func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerCtxKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
