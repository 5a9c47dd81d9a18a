package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/config"
	"github.com/bornholm/trainyard/internal/setup"
	"github.com/bornholm/trainyard/internal/slogx"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf, err := config.Parse()
	if err != nil {
		slog.ErrorContext(ctx, "could not parse config", slog.Any("error", errors.WithStack(err)))
		os.Exit(1)
	}

	handlerOptions := &slog.HandlerOptions{
		Level:     slog.Level(conf.Logger.Level),
		AddSource: true,
	}

	var handler slog.Handler
	switch conf.Logger.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, handlerOptions)
	default:
		handler = slog.NewTextHandler(os.Stderr, handlerOptions)
	}

	logger := slog.New(slogx.ContextHandler{
		Handler: handler,
	})

	slog.SetDefault(logger)

	slog.DebugContext(ctx, "using configuration", slog.Any("config", conf))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.InfoContext(ctx, "use ctrl+c to interrupt")
		<-sig
		cancel()
	}()

	server, err := setup.NewHTTPServerFromConfig(ctx, conf)
	if err != nil {
		slog.ErrorContext(ctx, "could not setup http server", slogx.Error(errors.WithStack(err)))
		os.Exit(1)
	}

	if err := setup.SeedFromConfig(ctx, conf); err != nil {
		slog.ErrorContext(ctx, "could not seed store", slogx.Error(errors.WithStack(err)))
		os.Exit(1)
	}

	if err := setup.StartLogRelay(ctx, conf); err != nil {
		slog.ErrorContext(ctx, "could not start log relay", slogx.Error(errors.WithStack(err)))
		os.Exit(1)
	}

	if err := setup.StartTempCleanup(ctx, conf); err != nil {
		slog.ErrorContext(ctx, "could not start temporary files cleanup", slogx.Error(errors.WithStack(err)))
		os.Exit(1)
	}

	slog.InfoContext(ctx, "starting server", slog.String("address", conf.HTTP.Address))

	if err := server.Run(ctx); err != nil {
		slog.Error("could not run server", slogx.Error(errors.WithStack(err)))
		os.Exit(1)
	}
}
