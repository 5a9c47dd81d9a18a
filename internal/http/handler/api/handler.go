package api

import (
	"log/slog"
	"net/http"

	"github.com/bornholm/trainyard/internal/dataset"
	"github.com/bornholm/trainyard/internal/file"
	"github.com/bornholm/trainyard/internal/job"
	"github.com/bornholm/trainyard/internal/model"
	"github.com/bornholm/trainyard/internal/relay"
	"github.com/bornholm/trainyard/internal/runtime"
	"github.com/bornholm/trainyard/internal/vault"
)

type Handler struct {
	mux          *http.ServeMux
	datasets     *dataset.Store
	scripts      *vault.Vault
	jobs         *job.Controller
	runtimes     *runtime.Registry
	models       *model.Registry
	relay        *relay.Relay
	runtimeFiles *file.Storage
	opts         *Options
	logger       *slog.Logger
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func NewHandler(datasets *dataset.Store, scripts *vault.Vault, jobs *job.Controller, runtimes *runtime.Registry, models *model.Registry, relay *relay.Relay, runtimeFiles *file.Storage, logger *slog.Logger, funcs ...OptionFunc) *Handler {
	h := &Handler{
		mux:          http.NewServeMux(),
		datasets:     datasets,
		scripts:      scripts,
		jobs:         jobs,
		runtimes:     runtimes,
		models:       models,
		relay:        relay,
		runtimeFiles: runtimeFiles,
		opts:         NewOptions(funcs...),
		logger:       logger.With("component", "api-handler"),
	}

	h.mux.HandleFunc("POST /datasets/upload", h.handleDatasetUpload)
	h.mux.HandleFunc("GET /datasets/diff", h.handleDatasetDiff)
	h.mux.HandleFunc("GET /datasets", h.handleDatasetList)
	h.mux.HandleFunc("GET /datasets/{id}", h.handleDatasetGet)
	h.mux.HandleFunc("GET /datasets/{id}/download", h.handleDatasetDownload)
	h.mux.HandleFunc("DELETE /datasets/{id}", h.handleDatasetDelete)

	h.mux.HandleFunc("POST /scripts", h.handleScriptUpload)
	h.mux.HandleFunc("GET /scripts", h.handleScriptList)
	h.mux.HandleFunc("GET /scripts/{id}/content", h.handleScriptContent)
	h.mux.HandleFunc("GET /scripts/{id}/versions", h.handleScriptVersions)
	h.mux.HandleFunc("DELETE /scripts/{id}", h.handleScriptDelete)

	h.mux.HandleFunc("POST /jobs", h.handleJobCreate)
	h.mux.HandleFunc("GET /jobs", h.handleJobList)
	h.mux.HandleFunc("GET /jobs/{id}", h.handleJobGet)
	h.mux.HandleFunc("GET /jobs/{id}/logs", h.handleJobLogs)
	h.mux.HandleFunc("GET /jobs/{id}/stream", h.handleJobStream)
	h.mux.HandleFunc("POST /jobs/{id}/stop", h.handleJobStop)
	h.mux.HandleFunc("POST /jobs/{id}/restart", h.handleJobRestart)

	h.mux.HandleFunc("GET /runtimes", h.handleRuntimeList)
	h.mux.HandleFunc("GET /runtimes/scan", h.handleRuntimeScan)
	h.mux.HandleFunc("POST /runtimes/register", h.handleRuntimeRegister)
	h.mux.HandleFunc("POST /runtimes/upload", h.handleRuntimeUpload)
	h.mux.HandleFunc("DELETE /runtimes/{id}", h.handleRuntimeDelete)

	h.mux.HandleFunc("GET /models", h.handleModelList)
	h.mux.HandleFunc("GET /models/{id}", h.handleModelGet)
	h.mux.HandleFunc("GET /models/versions/{versionID}/artifacts", h.handleModelArtifacts)

	return h
}

var _ http.Handler = &Handler{}
