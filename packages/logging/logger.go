// Package logging builds the zerolog loggers used across hookline.
//
// Loggers are configured from config.LogConfig: level, format (json or
// console) and output (stdout, stderr or a file path). Components receive a
// zerolog.Logger value and derive child loggers with their own fields.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
)

type contextKey string

// CallIDKey stores the id of the in-flight call on a context.
const CallIDKey contextKey = "call_id"

// New creates a logger from cfg. The returned closer releases the log file
// when output is a path; it is a no-op otherwise.
func New(cfg config.LogConfig) (zerolog.Logger, io.Closer, error) {
	var (
		writer io.Writer
		closer io.Closer = nopCloser{}
	)
	switch cfg.Output {
	case "stderr", "":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return zerolog.Nop(), closer, err
		}
		writer, closer = f, f
	}
	return NewWithWriter(writer, cfg), closer, nil
}

// NewWithWriter creates a logger writing to w. Output and file handling in
// cfg are ignored.
func NewWithWriter(w io.Writer, cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Nop returns a disabled logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Component derives a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// WithCallID returns a context carrying the call id.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CallIDKey, id)
}

// CallIDFromContext retrieves the call id from ctx.
func CallIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(CallIDKey).(string); ok {
		return id
	}
	return ""
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
