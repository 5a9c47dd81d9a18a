package setup

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/config"
	"github.com/bornholm/trainyard/internal/slogx"
	"github.com/bornholm/trainyard/internal/store/repository/seed"
)

func SeedFromConfig(ctx context.Context, conf *config.Config) error {
	if !conf.Seed.Enabled || len(conf.Seed.DefaultRuntimes) == 0 {
		return nil
	}

	st, err := getStoreFromConfig(ctx, conf)
	if err != nil {
		return errors.WithStack(err)
	}

	runtimes, err := getRuntimeRegistryFromConfig(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "could not configure runtime registry")
	}

	seeders, err := runtimes.DefaultSeeders(ctx, conf.Seed.DefaultRuntimes)
	if err != nil {
		// Missing images are reported but do not prevent the others from being seeded
		slog.WarnContext(ctx, "some default runtimes could not be resolved", slogx.Error(err))
	}

	repo := seed.NewRepository(st, slog.Default())

	executed, err := repo.Seed(ctx, false, seeders...)
	if err != nil {
		return errors.Wrap(err, "could not execute store seeding")
	}

	if len(executed) > 0 {
		slog.InfoContext(ctx, "store seeded", slog.Any("seeds", executed))
	}

	return nil
}
