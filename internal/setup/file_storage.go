package setup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/config"
	"github.com/bornholm/trainyard/internal/file"
)

const (
	datasetsDir = "datasets"
	scriptsDir  = "scripts"
	runtimesDir = "runtimes"
)

var (
	getDatasetStorageFromConfig = createFromConfigOnce(newFileStorageFactory(datasetsDir))
	getScriptStorageFromConfig  = createFromConfigOnce(newFileStorageFactory(scriptsDir))
	getRuntimeStorageFromConfig = createFromConfigOnce(newFileStorageFactory(runtimesDir))
)

func newFileStorageFactory(area string) func(ctx context.Context, conf *config.Config) (*file.Storage, error) {
	return func(ctx context.Context, conf *config.Config) (*file.Storage, error) {
		storage := file.NewStorage(filepath.Join(conf.Storage.File.Dir, area), slog.Default())

		if err := storage.EnsureDirectoryExists(); err != nil {
			return nil, errors.WithStack(err)
		}

		return storage, nil
	}
}

func getFileStoragesFromConfig(ctx context.Context, conf *config.Config) ([]*file.Storage, error) {
	factories := []func(ctx context.Context, conf *config.Config) (*file.Storage, error){
		getDatasetStorageFromConfig,
		getScriptStorageFromConfig,
		getRuntimeStorageFromConfig,
	}

	storages := make([]*file.Storage, 0, len(factories))

	for _, factory := range factories {
		storage, err := factory(ctx, conf)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		storages = append(storages, storage)
	}

	return storages, nil
}

func ensureDirectory(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0750); err != nil {
		return errors.Wrapf(err, "could not ensure directory '%s'", dirPath)
	}

	return nil
}
