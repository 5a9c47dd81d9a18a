package setup

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/config"
	"github.com/bornholm/trainyard/internal/relay"
	"github.com/bornholm/trainyard/internal/slogx"
)

const relayRetryDelay = 5 * time.Second

var getRelayFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*relay.Relay, error) {
	return relay.New(slog.Default()), nil
})

// StartLogRelay subscribes to the worker log channels and fans their
// messages out to the relay until ctx is done. The subscription is retried
// while the queue is unreachable.
func StartLogRelay(ctx context.Context, conf *config.Config) error {
	logRelay, err := getRelayFromConfig(ctx, conf)
	if err != nil {
		return errors.WithStack(err)
	}

	queueClient, err := getQueueClientFromConfig(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "could not configure queue client")
	}

	go func() {
		logger := slog.Default().With("component", "log-relay", "pattern", conf.Redis.LogPattern)

		for {
			logger.InfoContext(ctx, "starting log relay")

			stream, err := queueClient.PSubscribe(ctx, conf.Redis.LogPattern)
			if err != nil {
				logger.ErrorContext(ctx, "could not subscribe to log channels", slogx.Error(err))
			} else if err := logRelay.Run(ctx, stream); err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorContext(ctx, "log relay failed", slogx.Error(errors.WithStack(err)))
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(relayRetryDelay):
			}
		}
	}()

	return nil
}
