// Package runtime keeps the registry of container images jobs may run in
// consistent with the images actually present in the container daemon.
package runtime

import (
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/metrics"
	"github.com/bornholm/trainyard/internal/store"
	repository "github.com/bornholm/trainyard/internal/store/repository/runtime"
	"github.com/bornholm/trainyard/internal/store/repository/seed"
)

const untagged = "<none>:<none>"

type Registry struct {
	repository *repository.Repository
	daemon     Daemon
	logger     *slog.Logger
}

func NewRegistry(repository *repository.Repository, daemon Daemon, logger *slog.Logger) *Registry {
	return &Registry{
		repository: repository,
		daemon:     daemon,
		logger:     logger.With("component", "runtime-registry"),
	}
}

// Candidate is a daemon image not registered yet.
type Candidate struct {
	Name      string     `json:"name"`
	Tag       string     `json:"tag"`
	DockerID  string     `json:"dockerId"`
	SizeBytes store.Size `json:"sizeBytes"`
}

// Scan lists the tagged daemon images absent from the registry. It does not
// modify anything.
func (r *Registry) Scan(ctx context.Context) ([]*Candidate, error) {
	images, err := r.daemon.ListImages(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	ids := make([]string, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ID)
	}

	known, err := r.repository.KnownDockerIDs(ctx, ids)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	candidates := make([]*Candidate, 0)

	for _, img := range images {
		if _, exists := known[img.ID]; exists {
			continue
		}

		repoTag, ok := firstRepoTag(img.RepoTags)
		if !ok {
			continue
		}

		repo, tag := SplitRepoTag(repoTag)

		candidates = append(candidates, &Candidate{
			Name:      repo,
			Tag:       tag,
			DockerID:  img.ID,
			SizeBytes: store.Size(img.Size),
		})
	}

	return candidates, nil
}

// Register records the candidates still present in the daemon. Failures are
// collected per candidate and returned alongside the registered runtimes.
func (r *Registry) Register(ctx context.Context, candidates []*Candidate) ([]*store.RuntimeImage, error) {
	images, err := r.daemon.ListImages(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	inventory := make(map[string]Image, len(images))
	for _, img := range images {
		inventory[img.ID] = img
	}

	registered := make([]*store.RuntimeImage, 0, len(candidates))

	var merr *multierror.Error

	for _, c := range candidates {
		if c == nil || c.DockerID == "" {
			merr = multierror.Append(merr, failure.InvalidInput("candidate without docker id"))
			continue
		}

		img, exists := inventory[c.DockerID]
		if !exists {
			merr = multierror.Append(merr, failure.InvalidInput("image '%s' is not present in the daemon", c.DockerID))
			continue
		}

		repo, tag := c.Name, c.Tag
		if repo == "" {
			if repoTag, ok := firstRepoTag(img.RepoTags); ok {
				repo, tag = SplitRepoTag(repoTag)
			}
		}

		runtime := &store.RuntimeImage{
			Name:      repo,
			Tag:       tag,
			DockerID:  img.ID,
			SizeBytes: store.Size(img.Size),
		}

		created, err := r.repository.CreateIfAbsent(ctx, runtime)
		if err != nil {
			merr = multierror.Append(merr, errors.Wrapf(err, "could not register image '%s'", c.DockerID))
			continue
		}

		if !created {
			r.logger.DebugContext(ctx, "runtime already registered", slog.String("docker_id", c.DockerID))
			continue
		}

		metrics.RuntimeRegisteredCount.Inc()

		r.logger.InfoContext(ctx, "runtime registered", slog.Uint64("runtime_id", uint64(runtime.ID)), slog.String("name", repo), slog.String("tag", tag))

		registered = append(registered, runtime)
	}

	return registered, merr.ErrorOrNil()
}

// Ingest loads an image archive into the daemon, then removes the archive.
// The archive may be gzip compressed; the daemon receives it as uploaded.
// It returns the repository tags declared by the archive.
func (r *Registry) Ingest(ctx context.Context, archivePath string) ([]string, error) {
	defer func() {
		if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
			r.logger.WarnContext(ctx, "could not remove image archive", slog.String("path", archivePath), slog.Any("error", err))
		}
	}()

	manifest, err := tarball.LoadManifest(func() (io.ReadCloser, error) {
		return openArchive(archivePath)
	})
	if err != nil {
		return nil, failure.InvalidInput("malformed image archive: %s", err)
	}

	repoTags := make([]string, 0)
	for _, descriptor := range manifest {
		repoTags = append(repoTags, descriptor.RepoTags...)
	}

	r.logger.InfoContext(ctx, "loading image archive", slog.String("path", archivePath), slog.Any("repo_tags", repoTags))

	archive, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	defer archive.Close()

	if err := r.daemon.LoadImage(ctx, archive); err != nil {
		return nil, errors.WithStack(err)
	}

	return repoTags, nil
}

type gzipArchive struct {
	*gzip.Reader
	file *os.File
}

func (a *gzipArchive) Close() error {
	if err := a.Reader.Close(); err != nil {
		a.file.Close()
		return errors.WithStack(err)
	}

	return errors.WithStack(a.file.Close())
}

// openArchive opens an image archive, transparently decompressing it when
// its content is gzip.
func openArchive(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "could not detect type of '%s'", path)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, errors.WithStack(err)
	}

	if !mtype.Is("application/gzip") {
		return file, nil
	}

	reader, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, errors.WithStack(err)
	}

	return &gzipArchive{Reader: reader, file: file}, nil
}

// Delete removes the runtime from the registry and, if asked, from the
// daemon. A daemon failure is logged and does not prevent the removal of
// the record.
func (r *Registry) Delete(ctx context.Context, id uint, alsoFromDaemon bool) error {
	runtime, err := r.repository.GetByID(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	if alsoFromDaemon {
		if err := r.daemon.RemoveImage(ctx, runtime.DockerID); err != nil {
			r.logger.WarnContext(ctx, "could not remove image from daemon", slog.String("docker_id", runtime.DockerID), slog.Any("error", err))
		}
	}

	if err := r.repository.Delete(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	r.logger.InfoContext(ctx, "runtime deleted", slog.Uint64("runtime_id", uint64(id)), slog.Bool("from_daemon", alsoFromDaemon))

	return nil
}

func (r *Registry) List(ctx context.Context) ([]*store.RuntimeImage, error) {
	runtimes, err := r.repository.List(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return runtimes, nil
}

func (r *Registry) Get(ctx context.Context, id uint) (*store.RuntimeImage, error) {
	runtime, err := r.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return runtime, nil
}

// DefaultSeeders returns one seeder per configured reference found in the
// daemon. Each seeder registers its image as a default runtime.
func (r *Registry) DefaultSeeders(ctx context.Context, refs []string) ([]*seed.Seeder, error) {
	images, err := r.daemon.ListImages(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	byRef := make(map[string]Image)
	for _, img := range images {
		for _, repoTag := range img.RepoTags {
			if normalized, err := normalizeRef(repoTag); err == nil {
				byRef[normalized] = img
			}
		}
	}

	seeders := make([]*seed.Seeder, 0, len(refs))

	var merr *multierror.Error

	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}

		normalized, err := normalizeRef(ref)
		if err != nil {
			merr = multierror.Append(merr, failure.InvalidInput("invalid default runtime reference '%s': %s", ref, err))
			continue
		}

		img, exists := byRef[normalized]
		if !exists {
			r.logger.WarnContext(ctx, "default runtime not present in daemon", slog.String("ref", ref))
			continue
		}

		repo, tag := SplitRepoTag(ref)

		runtime := &store.RuntimeImage{
			Name:      repo,
			Tag:       tag,
			DockerID:  img.ID,
			SizeBytes: store.Size(img.Size),
			IsDefault: true,
		}

		seeders = append(seeders, seed.New("default-runtime:"+normalized, func(ctx context.Context, db *gorm.DB) error {
			if err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "docker_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"is_default"}),
			}).Create(runtime).Error; err != nil {
				return errors.WithStack(err)
			}

			r.logger.InfoContext(ctx, "default runtime seeded", slog.String("ref", ref), slog.String("docker_id", runtime.DockerID))

			return nil
		}))
	}

	return seeders, merr.ErrorOrNil()
}

func firstRepoTag(repoTags []string) (string, bool) {
	for _, t := range repoTags {
		if t != "" && t != untagged {
			return t, true
		}
	}

	return "", false
}

// SplitRepoTag splits "registry:5000/repo:tag" into its repository and tag.
// A reference without tag gets the "latest" tag.
func SplitRepoTag(repoTag string) (string, string) {
	if at := strings.Index(repoTag, "@"); at >= 0 {
		repoTag = repoTag[:at]
	}

	colon := strings.LastIndex(repoTag, ":")
	if colon < 0 || colon < strings.LastIndex(repoTag, "/") {
		return repoTag, "latest"
	}

	return repoTag[:colon], repoTag[colon+1:]
}

func normalizeRef(ref string) (string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return parsed.Name(), nil
}
