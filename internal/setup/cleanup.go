package setup

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/config"
	"github.com/bornholm/trainyard/internal/slogx"
)

const (
	tempCleanupInterval = time.Hour
	tempMaxAge          = 24 * time.Hour
)

// StartTempCleanup periodically removes the staging files left behind by
// interrupted uploads.
func StartTempCleanup(ctx context.Context, conf *config.Config) error {
	storages, err := getFileStoragesFromConfig(ctx, conf)
	if err != nil {
		return errors.WithStack(err)
	}

	sweep := func() {
		var merr *multierror.Error

		for _, storage := range storages {
			if err := storage.CleanupTempFiles(tempMaxAge); err != nil {
				merr = multierror.Append(merr, errors.Wrapf(err, "could not clean up '%s'", storage.GetBasePath()))
			}
		}

		if err := merr.ErrorOrNil(); err != nil {
			slog.WarnContext(ctx, "temporary files cleanup incomplete", slogx.Error(err))
		}
	}

	go func() {
		ticker := time.NewTicker(tempCleanupInterval)
		defer ticker.Stop()

		sweep()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()

	return nil
}
