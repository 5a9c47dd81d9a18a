package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	sloghttp "github.com/samber/slog-http"

	"github.com/bornholm/trainyard/internal/slogx"
)

type Server struct {
	opts *Options
}

func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mux := &http.ServeMux{}
	for mountpoint, handler := range s.opts.Mounts {
		mount(mux, mountpoint, handler)
	}

	var handler http.Handler = mux

	if basePath := strings.TrimSuffix(s.opts.BasePath, "/"); basePath != "" {
		handler = http.StripPrefix(basePath, handler)
	}

	handler = sloghttp.Recovery(handler)
	handler = sloghttp.NewWithConfig(s.opts.Logger, sloghttp.Config{
		DefaultLevel:     slog.LevelDebug,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
		Filters: []sloghttp.Filter{
			sloghttp.IgnorePathSuffix("/health"),
		},
	})(handler)

	server := http.Server{
		Addr:              s.opts.Address,
		Handler:           handler,
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()

		// Log streams never end on their own, close them once the grace period is over
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.opts.Logger.WarnContext(ctx, "could not gracefully shutdown server", slogx.Error(err))

			if err := server.Close(); err != nil {
				s.opts.Logger.ErrorContext(ctx, "could not close server", slogx.Error(errors.WithStack(err)))
			}
		}
	}()

	s.opts.Logger.InfoContext(ctx, "http server listening", slog.String("address", s.opts.Address))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithStack(err)
	}

	return nil
}

// mount strips the prefix of subtree mounts ("/api/"). Exact mounts
// ("/health") are passed the request untouched.
func mount(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		return
	}

	trimmed := strings.TrimSuffix(prefix, "/")

	if len(trimmed) > 0 {
		mux.Handle(prefix, http.StripPrefix(trimmed, handler))
	} else {
		mux.Handle(prefix, handler)
	}
}

func NewServer(funcs ...OptionFunc) *Server {
	opts := NewOptions(funcs...)
	return &Server{
		opts: opts,
	}
}
