package debugctx

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

const (
	// LevelDebug carries request and polling decisions.
	LevelDebug = 1
	// LevelTrace carries wire bodies.
	LevelTrace = 2
)

type loggerKey struct{}

// NewLogger returns a logger that writes "debug:" prefixed key/value lines to
// writer. Lines above verbosity are dropped.
func NewLogger(writer io.Writer, verbosity int) logr.Logger {
	if writer == nil {
		return logr.Discard()
	}

	return funcr.New(func(prefix, args string) {
		line := strings.TrimSpace(args)
		if prefix != "" {
			line = strings.TrimSpace(prefix + ": " + line)
		}
		if line == "" {
			return
		}
		_, _ = fmt.Fprintf(writer, "debug: %s\n", line)
	}, funcr.Options{Verbosity: verbosity})
}

func WithLogger(ctx context.Context, logger logr.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger stored in ctx or a discarding logger.
func Logger(ctx context.Context) logr.Logger {
	if ctx == nil {
		return logr.Discard()
	}

	logger, ok := ctx.Value(loggerKey{}).(logr.Logger)
	if !ok {
		return logr.Discard()
	}
	return logger
}

func Enabled(ctx context.Context) bool {
	return Logger(ctx).V(LevelDebug).Enabled()
}

// Printf keeps the free-form debug line used by the command layer.
func Printf(ctx context.Context, format string, args ...any) {
	logger := Logger(ctx).V(LevelDebug)
	if !logger.Enabled() {
		return
	}

	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	if message == "" {
		return
	}
	logger.Info(message)
}
