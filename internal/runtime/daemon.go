package runtime

import (
	"context"
	"io"
)

// Image is an image known to the container daemon.
type Image struct {
	ID       string
	RepoTags []string
	Size     int64
}

// Daemon is the container daemon the runtimes live in.
type Daemon interface {
	ListImages(ctx context.Context) ([]Image, error)
	LoadImage(ctx context.Context, archive io.Reader) error
	RemoveImage(ctx context.Context, dockerID string) error
	KillContainer(ctx context.Context, containerID string) error
	Ping(ctx context.Context) error
}
