package setup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/config"
)

// createFromConfigOnce memoizes a factory so every consumer of a service
// shares the same instance. A failed creation is not retried.
func createFromConfigOnce[T any](factory func(ctx context.Context, conf *config.Config) (T, error)) func(ctx context.Context, conf *config.Config) (T, error) {
	var (
		once    sync.Once
		service T
		onceErr error
	)

	return func(ctx context.Context, conf *config.Config) (T, error) {
		once.Do(func() {
			srv, err := factory(ctx, conf)
			if err != nil {
				onceErr = errors.Wrapf(err, "could not create %T", service)
				return
			}

			slog.DebugContext(ctx, "service created", slog.String("type", fmt.Sprintf("%T", srv)))

			service = srv
		})
		if onceErr != nil {
			return *new(T), onceErr
		}

		return service, nil
	}
}
