package docker

import (
	"context"
	"io"
	"log/slog"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/runtime"
)

// Daemon implements runtime.Daemon using the Docker client
type Daemon struct {
	client *client.Client
	logger *slog.Logger
}

// NewDaemon creates a client configured from the DOCKER_* environment variables
func NewDaemon(logger *slog.Logger) (*Daemon, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Docker client")
	}

	return &Daemon{
		client: cli,
		logger: logger.With("component", "docker-daemon"),
	}, nil
}

func (d *Daemon) ListImages(ctx context.Context) ([]runtime.Image, error) {
	summaries, err := d.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, d.wrap(err, "failed to list images")
	}

	images := make([]runtime.Image, 0, len(summaries))
	for _, s := range summaries {
		images = append(images, runtime.Image{
			ID:       s.ID,
			RepoTags: s.RepoTags,
			Size:     s.Size,
		})
	}

	return images, nil
}

// LoadImage streams an image archive to the daemon and waits for the load
// to complete.
func (d *Daemon) LoadImage(ctx context.Context, archive io.Reader) error {
	d.logger.Info("loading image archive")

	resp, err := d.client.ImageLoad(ctx, archive, client.ImageLoadWithQuiet(true))
	if err != nil {
		return d.wrap(err, "failed to load image")
	}
	defer resp.Body.Close()

	if err := drainProgress(resp.Body); err != nil {
		return errors.Wrap(err, "image load failed")
	}

	d.logger.Info("image archive loaded")

	return nil
}

func (d *Daemon) RemoveImage(ctx context.Context, dockerID string) error {
	_, err := d.client.ImageRemove(ctx, dockerID, image.RemoveOptions{
		PruneChildren: true,
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return failure.NotFound("image '%s'", dockerID)
		}
		return d.wrap(err, "failed to remove image %s", dockerID)
	}

	d.logger.Debug("image removed", "docker_id", dockerID)

	return nil
}

// KillContainer sends SIGKILL to the container. An already gone container
// is not an error.
func (d *Daemon) KillContainer(ctx context.Context, containerID string) error {
	if err := d.client.ContainerKill(ctx, containerID, "SIGKILL"); err != nil {
		if errdefs.IsNotFound(err) {
			d.logger.Debug("container already gone", "container_id", containerID)
			return nil
		}
		return d.wrap(err, "failed to kill container %s", containerID)
	}

	d.logger.Debug("container killed", "container_id", containerID)

	return nil
}

func (d *Daemon) Ping(ctx context.Context) error {
	if _, err := d.client.Ping(ctx); err != nil {
		return failure.UpstreamUnavailable(err, "docker daemon ping failed")
	}

	return nil
}

func (d *Daemon) Close() error {
	return errors.WithStack(d.client.Close())
}

func (d *Daemon) wrap(err error, format string, args ...any) error {
	if client.IsErrConnectionFailed(err) {
		return failure.UpstreamUnavailable(err, format, args...)
	}

	return errors.Wrapf(err, format, args...)
}

// drainProgress reads the daemon's JSON progress stream to its end and
// returns the first error it reports.
func drainProgress(body io.Reader) error {
	if err := jsonmessage.DisplayJSONMessagesStream(body, io.Discard, 0, false, nil); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

var _ runtime.Daemon = &Daemon{}
