package setup

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/config"
	"github.com/bornholm/trainyard/internal/crypto"
	"github.com/bornholm/trainyard/internal/dataset"
	"github.com/bornholm/trainyard/internal/job"
	"github.com/bornholm/trainyard/internal/model"
	"github.com/bornholm/trainyard/internal/runtime"
	"github.com/bornholm/trainyard/internal/runtime/docker"
	datasetRepository "github.com/bornholm/trainyard/internal/store/repository/dataset"
	jobRepository "github.com/bornholm/trainyard/internal/store/repository/job"
	modelRepository "github.com/bornholm/trainyard/internal/store/repository/model"
	runtimeRepository "github.com/bornholm/trainyard/internal/store/repository/runtime"
	scriptRepository "github.com/bornholm/trainyard/internal/store/repository/script"
	"github.com/bornholm/trainyard/internal/vault"
)

var getDatasetStoreFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*dataset.Store, error) {
	st, err := getStoreFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	files, err := getDatasetStorageFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return dataset.NewStore(datasetRepository.NewRepository(st), files, slog.Default()), nil
})

var getVaultFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*vault.Vault, error) {
	key, err := crypto.ParseKey(conf.Crypto.ScriptKey)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse script encryption key, generate one with the keygen command")
	}

	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	st, err := getStoreFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	files, err := getScriptStorageFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return vault.New(scriptRepository.NewRepository(st), files, sealer, slog.Default()), nil
})

var getDaemonFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*docker.Daemon, error) {
	daemon, err := docker.NewDaemon(slog.Default())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return daemon, nil
})

var getModelRegistryFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*model.Registry, error) {
	st, err := getStoreFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return model.NewRegistry(modelRepository.NewRepository(st), slog.Default()), nil
})

var getRuntimeRegistryFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*runtime.Registry, error) {
	st, err := getStoreFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	daemon, err := getDaemonFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure container daemon")
	}

	return runtime.NewRegistry(runtimeRepository.NewRepository(st), daemon, slog.Default()), nil
})

var getJobControllerFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*job.Controller, error) {
	st, err := getStoreFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	models, err := getModelRegistryFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	queueClient, err := getQueueClientFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure queue client")
	}

	daemon, err := getDaemonFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure container daemon")
	}

	return job.NewController(jobRepository.NewRepository(st), models, queueClient, daemon, slog.Default()), nil
})
