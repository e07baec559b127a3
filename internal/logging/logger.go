package logging

import (
	"io"
	"log/slog"
)

// NewLogger returns a structured slog.Logger writing text records to w.
// Debug records are only emitted when verbose is set.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
