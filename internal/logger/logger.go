// Package logger provides structured logging using log/slog.
// It sets up a JSON handler with service-level context and carries a job
// id through context.Context so every line of one feature or collect job
// can be correlated.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey string

const jobIDKey ctxKey = "job_id"

// Init creates a JSON logger for the given service on stdout and installs
// it as the slog default.
func Init(service string, level slog.Level) *slog.Logger {
	return InitWriter(os.Stdout, service, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

// ParseLevel converts debug|info|warn|error to a slog.Level. Unknown → info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithJobID stores a job id in the context.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// JobID extracts the job id from context. Returns "" if not set.
func JobID(ctx context.Context) string {
	if v, ok := ctx.Value(jobIDKey).(string); ok {
		return v
	}
	return ""
}

// NewJobID names a job after its market, e.g. "BTC:4h#3".
func NewJobID(symbol, interval string, seq int) string {
	return fmt.Sprintf("%s:%s#%d", symbol, interval, seq)
}

// LogWithJob returns slog attributes including the job id from context.
// Usage: slog.Info("msg", logger.LogWithJob(ctx)...)
func LogWithJob(ctx context.Context) []any {
	id := JobID(ctx)
	if id == "" {
		return nil
	}
	return []any{slog.String("job_id", id)}
}
