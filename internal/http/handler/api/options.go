package api

import "time"

type Options struct {
	MaxScriptSize    int64
	MaxRuntimeSize   int64
	MaxFormMemory    int64
	StreamKeepAlive  time.Duration
	ScriptExtensions []string
}

type OptionFunc func(opts *Options)

func NewOptions(funcs ...OptionFunc) *Options {
	opts := &Options{
		MaxScriptSize:    5 << 20,
		MaxRuntimeSize:   20 << 30,
		MaxFormMemory:    32 << 20,
		StreamKeepAlive:  15 * time.Second,
		ScriptExtensions: []string{".py"},
	}
	for _, fn := range funcs {
		fn(opts)
	}
	return opts
}

func WithMaxScriptSize(size int64) OptionFunc {
	return func(opts *Options) {
		opts.MaxScriptSize = size
	}
}

func WithMaxRuntimeSize(size int64) OptionFunc {
	return func(opts *Options) {
		opts.MaxRuntimeSize = size
	}
}

func WithStreamKeepAlive(interval time.Duration) OptionFunc {
	return func(opts *Options) {
		opts.StreamKeepAlive = interval
	}
}
