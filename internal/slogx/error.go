package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns an attribute carrying the error and, when available, its stack.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Any("error", nil)
	}

	return slog.Group("error",
		slog.String("message", err.Error()),
		slog.String("stack", fmt.Sprintf("%+v", err)),
	)
}
