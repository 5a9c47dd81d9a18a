// Package job drives the lifecycle of training jobs: creation against a
// resolved model target, dispatch to the worker queue, forced stop and
// restart.
package job

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/metrics"
	"github.com/bornholm/trainyard/internal/model"
	"github.com/bornholm/trainyard/internal/queue"
	"github.com/bornholm/trainyard/internal/slogx"
	"github.com/bornholm/trainyard/internal/store"
	repository "github.com/bornholm/trainyard/internal/store/repository/job"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

type Dispatcher interface {
	Dispatch(ctx context.Context, message *queue.JobMessage) error
}

type ContainerKiller interface {
	KillContainer(ctx context.Context, containerID string) error
}

type ModelRegistry interface {
	ResolveTarget(ctx context.Context, action model.Action, modelName string, modelID uint) (store.Intent, error)
	MaxVersion(ctx context.Context, modelID uint) (int, error)
	RecordVersion(ctx context.Context, modelID uint, version int, path string, jobID uint) (*store.ModelVersion, error)
}

type Controller struct {
	repository *repository.Repository
	models     ModelRegistry
	dispatcher Dispatcher
	killer     ContainerKiller
	logger     *slog.Logger
	now        func() time.Time
}

func NewController(repository *repository.Repository, models ModelRegistry, dispatcher Dispatcher, killer ContainerKiller, logger *slog.Logger) *Controller {
	return &Controller{
		repository: repository,
		models:     models,
		dispatcher: dispatcher,
		killer:     killer,
		logger:     logger.With("component", "job-controller"),
		now:        time.Now,
	}
}

type Request struct {
	ScriptID    uint           `json:"scriptId"`
	DatasetID   uint           `json:"datasetId"`
	RuntimeID   uint           `json:"runtimeId"`
	Params      map[string]any `json:"params"`
	ModelAction model.Action   `json:"modelAction"`
	ModelName   string         `json:"modelName,omitempty"`
	ModelID     uint           `json:"modelId,omitempty"`
}

// Create resolves the job's model target, persists the job then enqueues
// it. When enqueueing fails the job is returned along with the error and
// stays QUEUED.
func (c *Controller) Create(ctx context.Context, req Request) (*store.Job, error) {
	if req.ScriptID == 0 || req.DatasetID == 0 || req.RuntimeID == 0 {
		return nil, failure.InvalidInput("script, dataset and runtime are required")
	}

	if !req.ModelAction.IsValid() {
		return nil, failure.InvalidInput("invalid model action '%s'", req.ModelAction)
	}

	intent, err := c.models.ResolveTarget(ctx, req.ModelAction, req.ModelName, req.ModelID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	params := queue.StripReserved(req.Params)
	if len(params) != len(req.Params) {
		c.logger.WarnContext(ctx, "ignoring reserved hyperparameters supplied by caller")
	}

	job := &store.Job{
		Status:    store.JobStatusQueued,
		ScriptID:  req.ScriptID,
		DatasetID: req.DatasetID,
		RuntimeID: req.RuntimeID,
		Params:    params,
		Intent:    intent,
	}

	if err := c.repository.Create(ctx, job); err != nil {
		return nil, errors.WithStack(err)
	}

	metrics.JobCreatedCount.WithLabelValues("submit").Inc()

	ctx = slogx.WithAttrs(ctx, slog.Uint64("job_id", uint64(job.ID)))

	c.logger.InfoContext(ctx, "job created",
		slog.Uint64("target_model_id", uint64(intent.ModelID)),
		slog.Int("target_version", intent.Version),
	)

	if err := c.dispatch(ctx, job); err != nil {
		return job, errors.WithStack(err)
	}

	return job, nil
}

func (c *Controller) dispatch(ctx context.Context, job *store.Job) error {
	if err := c.dispatcher.Dispatch(ctx, queue.NewJobMessage(job)); err != nil {
		metrics.JobDispatchFailureCount.Inc()
		c.logger.ErrorContext(ctx, "could not enqueue job, it stays queued", slogx.Error(err))

		if errors.Is(err, failure.ErrUpstreamUnavailable) {
			return errors.WithStack(err)
		}

		return failure.UpstreamUnavailable(err, "could not enqueue job %d", job.ID)
	}

	return nil
}

// Stop cancels a job that is not terminal yet, killing its container when
// one is known. A job reaching a terminal state concurrently is left as is.
func (c *Controller) Stop(ctx context.Context, id uint) (*store.Job, error) {
	ctx = slogx.WithAttrs(ctx, slog.Uint64("job_id", uint64(id)))

	job, err := c.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if job.Status.IsTerminal() {
		return nil, failure.InvalidState("job %d is already %s", id, job.Status)
	}

	if job.ContainerID != "" && c.killer != nil {
		if err := c.killer.KillContainer(ctx, job.ContainerID); err != nil {
			c.logger.WarnContext(ctx, "could not kill job container", slog.String("container_id", job.ContainerID), slogx.Error(err))
		}
	}

	updated, err := c.repository.Cancel(ctx, id, store.ExitCodeKilled, c.now())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if !updated {
		return nil, failure.InvalidState("job %d reached a terminal state before it could be stopped", id)
	}

	metrics.JobStoppedCount.Inc()

	c.logger.InfoContext(ctx, "job stopped")

	job, err = c.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return job, nil
}

// Restart creates and enqueues a new attempt of the job. Its target version
// is moved past any version recorded since the original was created.
func (c *Controller) Restart(ctx context.Context, id uint) (*store.Job, error) {
	ctx = slogx.WithAttrs(ctx, slog.Uint64("restarted_from", uint64(id)))

	previous, err := c.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if previous.Intent.ModelID == 0 {
		return nil, failure.InvalidState("job %d has no model target", id)
	}

	intent := previous.Intent

	maxVersion, err := c.models.MaxVersion(ctx, intent.ModelID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if maxVersion >= intent.Version {
		intent.Version = maxVersion + 1
	}

	restartedFrom := previous.ID

	job := &store.Job{
		Status:          store.JobStatusQueued,
		ScriptID:        previous.ScriptID,
		DatasetID:       previous.DatasetID,
		RuntimeID:       previous.RuntimeID,
		Params:          queue.StripReserved(previous.Params),
		Intent:          intent,
		RestartedFromID: &restartedFrom,
	}

	if err := c.repository.Create(ctx, job); err != nil {
		return nil, errors.WithStack(err)
	}

	metrics.JobCreatedCount.WithLabelValues("restart").Inc()

	ctx = slogx.WithAttrs(ctx, slog.Uint64("job_id", uint64(job.ID)))

	c.logger.InfoContext(ctx, "job restarted",
		slog.Int("previous_target_version", previous.Intent.Version),
		slog.Int("target_version", intent.Version),
	)

	if err := c.dispatch(ctx, job); err != nil {
		return job, errors.WithStack(err)
	}

	return job, nil
}

// List returns jobs, most recent first. A non positive limit selects
// DefaultPageSize, larger ones are capped to MaxPageSize.
func (c *Controller) List(ctx context.Context, limit, offset int) ([]*store.Job, error) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	jobs, err := c.repository.List(ctx, limit, offset)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return jobs, nil
}

func (c *Controller) Get(ctx context.Context, id uint) (*store.Job, error) {
	job, err := c.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return job, nil
}

// Logs opens the job's log file. A job without logs yields an empty reader.
func (c *Controller) Logs(ctx context.Context, id uint) (io.ReadCloser, error) {
	job, err := c.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	empty := io.NopCloser(strings.NewReader(""))

	if job.LogPath == "" {
		return empty, nil
	}

	file, err := os.Open(job.LogPath)
	if err != nil {
		if os.IsNotExist(err) {
			return empty, nil
		}
		return nil, errors.Wrapf(err, "could not open logs of job %d", id)
	}

	return file, nil
}
