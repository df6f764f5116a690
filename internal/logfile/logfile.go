// Package logfile tees structured logs into an append-only file that the
// server can expose read-only.
package logfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Open creates the parent directory if needed and opens path for appending.
func Open(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Tee returns a logger writing every record accepted by base to both base
// and file. The file always gets JSON lines.
func Tee(base *slog.Logger, file *os.File) *slog.Logger {
	return slog.New(teeHandler{
		primary:   base.Handler(),
		secondary: slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

type teeHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.primary.Enabled(ctx, level)
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	return errors.Join(
		t.primary.Handle(ctx, r.Clone()),
		t.secondary.Handle(ctx, r),
	)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{primary: t.primary.WithAttrs(attrs), secondary: t.secondary.WithAttrs(attrs)}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{primary: t.primary.WithGroup(name), secondary: t.secondary.WithGroup(name)}
}
