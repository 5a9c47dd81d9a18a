package http

import (
	"log/slog"
	"net/http"
	"time"
)

type Options struct {
	Address           string
	BasePath          string
	Mounts            map[string]http.Handler
	Logger            *slog.Logger
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type OptionFunc func(opts *Options)

func NewOptions(funcs ...OptionFunc) *Options {
	opts := &Options{
		Address:           ":3002",
		BasePath:          "/",
		Mounts:            map[string]http.Handler{},
		Logger:            slog.Default(),
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
	for _, fn := range funcs {
		fn(opts)
	}
	return opts
}

func WithMount(prefix string, handler http.Handler) OptionFunc {
	return func(opts *Options) {
		opts.Mounts[prefix] = handler
	}
}

// WithBasePath serves every mount below the given path, for deployments
// behind a reverse proxy sub-path.
func WithBasePath(basePath string) OptionFunc {
	return func(opts *Options) {
		opts.BasePath = basePath
	}
}

func WithAddress(addr string) OptionFunc {
	return func(opts *Options) {
		opts.Address = addr
	}
}

func WithLogger(logger *slog.Logger) OptionFunc {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func WithShutdownTimeout(timeout time.Duration) OptionFunc {
	return func(opts *Options) {
		opts.ShutdownTimeout = timeout
	}
}
