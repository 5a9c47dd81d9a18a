package setup

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/config"
	"github.com/bornholm/trainyard/internal/crypto"
	"github.com/bornholm/trainyard/internal/http"
	"github.com/bornholm/trainyard/internal/http/handler/api"
	"github.com/bornholm/trainyard/internal/http/handler/health"
	"github.com/bornholm/trainyard/internal/http/handler/metrics"
	"github.com/bornholm/trainyard/internal/http/handler/worker"
	"github.com/bornholm/trainyard/internal/http/pprof"
)

const healthCheckTimeout = 3 * time.Second

func NewHTTPServerFromConfig(ctx context.Context, conf *config.Config) (*http.Server, error) {
	st, err := getStoreFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure store from config")
	}

	datasets, err := getDatasetStoreFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure dataset store")
	}

	scripts, err := getVaultFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure script vault")
	}

	jobs, err := getJobControllerFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure job controller")
	}

	runtimes, err := getRuntimeRegistryFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure runtime registry")
	}

	models, err := getModelRegistryFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure model registry")
	}

	logRelay, err := getRelayFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure log relay")
	}

	runtimeFiles, err := getRuntimeStorageFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure runtime file storage")
	}

	daemon, err := getDaemonFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure container daemon")
	}

	queueClient, err := getQueueClientFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure queue client")
	}

	workerToken := conf.Worker.Token
	if workerToken == "" {
		workerToken, err = crypto.RandomToken(32)
		if err != nil {
			return nil, errors.Wrap(err, "could not generate worker token")
		}

		slog.WarnContext(ctx, "no worker token configured, a random one was generated and workers will not be able to authenticate until TRAINYARD_WORKER_TOKEN is set")
	}

	apiHandler := api.NewHandler(
		datasets, scripts, jobs, runtimes, models, logRelay, runtimeFiles,
		slog.Default(),
		api.WithMaxScriptSize(conf.Upload.MaxScriptSize),
		api.WithMaxRuntimeSize(conf.Upload.MaxRuntimeSize),
	)

	healthHandler := health.NewHandler(
		map[string]health.Pinger{
			"store":  st,
			"daemon": daemon,
			"queue":  queueClient,
		},
		conf.Storage.File.Dir,
		healthCheckTimeout,
		slog.Default(),
	)

	options := []http.OptionFunc{
		http.WithAddress(conf.HTTP.Address),
		http.WithBasePath(conf.HTTP.BaseURL),
		http.WithLogger(slog.Default()),
		http.WithMount("/api/", apiHandler),
		http.WithMount("/worker/", worker.NewHandler(jobs, workerToken, slog.Default())),
		http.WithMount("/metrics/", metrics.NewHandler(nil)),
		http.WithMount("/health", healthHandler),
		http.WithMount("/pprof/", pprof.NewHandler()),
	}

	// Create HTTP server

	server := http.NewServer(options...)

	return server, nil
}
