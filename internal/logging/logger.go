// Package logging defines the structured-logging interface used across
// authkeeper, with slog and zap backends.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/zap"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key-value pairs, e.g.:
//
//	log.Info(ctx, "login failed", "user_id", id, "reason", "INVALID_PASSWORD")
type Logger interface {
	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}

const (
	FormatJSON = "json"
	FormatText = "text"
	FormatZap  = "zap"
)

// New builds the logger selected by format. json and text go through slog
// and write to w; zap uses zap's production configuration (stderr). Every
// backend replaces credential values with Redacted.
func New(format string, w io.Writer) (Logger, error) {
	switch format {
	case "", FormatJSON, FormatText:
		return NewSlogLogger(slog.New(newSlogHandler(format, w, slog.LevelInfo))), nil
	case FormatZap:
		z, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		return NewZapLogger(z), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
