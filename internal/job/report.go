package job

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/metrics"
	"github.com/bornholm/trainyard/internal/slogx"
	"github.com/bornholm/trainyard/internal/store"
)

// Report is a status update sent by a worker.
type Report struct {
	Status      store.JobStatus `json:"status"`
	ContainerID string          `json:"containerId,omitempty"`
	LogPath     string          `json:"logPath,omitempty"`
	ExitCode    *int            `json:"exitCode,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// allowedSources lists, per reported status, the statuses a job may be in
// to accept it.
var allowedSources = map[store.JobStatus][]store.JobStatus{
	store.JobStatusRunning:   {store.JobStatusQueued, store.JobStatusRunning},
	store.JobStatusCompleted: {store.JobStatusQueued, store.JobStatusRunning},
	store.JobStatusFailed:    {store.JobStatusQueued, store.JobStatusRunning},
}

// ReportStatus applies a worker status update.
func (c *Controller) ReportStatus(ctx context.Context, id uint, report Report) (*store.Job, error) {
	ctx = slogx.WithAttrs(ctx, slog.Uint64("job_id", uint64(id)))

	sources, allowed := allowedSources[report.Status]
	if !allowed {
		return nil, failure.InvalidInput("status '%s' cannot be reported by a worker", report.Status)
	}

	job, err := c.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if job.Status.IsTerminal() {
		return nil, failure.InvalidState("job %d is already %s", id, job.Status)
	}

	now := c.now()

	updates := map[string]any{
		"status": report.Status,
	}

	if report.ContainerID != "" {
		updates["container_id"] = report.ContainerID
	}

	if report.LogPath != "" {
		updates["log_path"] = report.LogPath
	}

	if report.ExitCode != nil {
		updates["exit_code"] = *report.ExitCode
	}

	if msg := strings.TrimSpace(report.Error); msg != "" {
		updates["error_message"] = msg
	}

	if job.StartedAt == nil {
		updates["started_at"] = now
	}

	if report.Status.IsTerminal() {
		updates["completed_at"] = now
	}

	updated, err := c.repository.Transition(ctx, id, sources, updates)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if !updated {
		return nil, failure.InvalidState("job %d changed state concurrently", id)
	}

	if report.Status.IsTerminal() {
		metrics.JobFinishedCount.WithLabelValues(string(report.Status)).Inc()
	}

	c.logger.InfoContext(ctx, "job status reported", slog.String("status", string(report.Status)), slog.String("previous_status", string(job.Status)))

	job, err = c.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return job, nil
}

// RecordModelVersion registers the model version produced by the job, as
// targeted by its intent.
func (c *Controller) RecordModelVersion(ctx context.Context, id uint, path string) (*store.ModelVersion, error) {
	ctx = slogx.WithAttrs(ctx, slog.Uint64("job_id", uint64(id)))

	job, err := c.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if job.Intent.ModelID == 0 {
		return nil, failure.InvalidState("job %d has no model target", id)
	}

	if job.Status == store.JobStatusCancelled {
		return nil, failure.InvalidState("job %d was cancelled", id)
	}

	version, err := c.models.RecordVersion(ctx, job.Intent.ModelID, job.Intent.Version, path, job.ID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return version, nil
}
