package slogx

import (
	"log/slog"
	"testing"
)

type TestWriter struct {
	t testing.TB
}

func (w *TestWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()

	size := len(p)
	if size > 0 && p[size-1] == '\n' {
		p = p[:size-1]
	}

	w.t.Logf("%s", p)

	return size, nil
}

// NewTestLogger returns a debug logger writing through t.Logf, without timestamps.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()

	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}

	return slog.New(ContextHandler{slog.NewTextHandler(&TestWriter{t: t}, opts)})
}
