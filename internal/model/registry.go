// Package model tracks trained models and their ordered versions.
package model

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/store"
	repository "github.com/bornholm/trainyard/internal/store/repository/model"
)

type Action string

const (
	ActionNewModel   Action = "NEW_MODEL"
	ActionNewVersion Action = "NEW_VERSION"
)

func (a Action) IsValid() bool {
	return a == ActionNewModel || a == ActionNewVersion
}

type Registry struct {
	repository *repository.Repository
	logger     *slog.Logger
}

func NewRegistry(repository *repository.Repository, logger *slog.Logger) *Registry {
	return &Registry{
		repository: repository,
		logger:     logger.With("component", "model-registry"),
	}
}

// ResolveTarget returns the model and version a new job should produce,
// creating the model when a new one is requested.
func (r *Registry) ResolveTarget(ctx context.Context, action Action, modelName string, modelID uint) (store.Intent, error) {
	switch action {
	case ActionNewModel:
		modelName = strings.TrimSpace(modelName)
		if modelName == "" {
			return store.Intent{}, failure.InvalidInput("model name is required")
		}

		model := &store.Model{Name: modelName}
		if err := r.repository.Create(ctx, model); err != nil {
			return store.Intent{}, errors.WithStack(err)
		}

		r.logger.InfoContext(ctx, "model created", slog.Uint64("model_id", uint64(model.ID)), slog.String("model_name", model.Name))

		return store.Intent{
			ModelID:   model.ID,
			ModelName: model.Name,
			Version:   1,
		}, nil

	case ActionNewVersion:
		if modelID == 0 {
			return store.Intent{}, failure.InvalidInput("model id is required to create a new version")
		}

		model, err := r.repository.GetByID(ctx, modelID)
		if err != nil {
			return store.Intent{}, errors.WithStack(err)
		}

		maxVersion, err := r.repository.MaxVersion(ctx, model.ID)
		if err != nil {
			return store.Intent{}, errors.WithStack(err)
		}

		return store.Intent{
			ModelID:   model.ID,
			ModelName: model.Name,
			Version:   maxVersion + 1,
		}, nil

	default:
		return store.Intent{}, failure.InvalidInput("invalid model action '%s'", action)
	}
}

func (r *Registry) MaxVersion(ctx context.Context, modelID uint) (int, error) {
	maxVersion, err := r.repository.MaxVersion(ctx, modelID)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return maxVersion, nil
}

func (r *Registry) List(ctx context.Context) ([]*store.Model, error) {
	models, err := r.repository.List(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return models, nil
}

func (r *Registry) Get(ctx context.Context, id uint) (*store.Model, error) {
	model, err := r.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return model, nil
}

// RecordVersion stores a version produced by a job.
func (r *Registry) RecordVersion(ctx context.Context, modelID uint, version int, path string, jobID uint) (*store.ModelVersion, error) {
	if version < 1 {
		return nil, failure.InvalidInput("invalid model version %d", version)
	}

	if strings.TrimSpace(path) == "" {
		return nil, failure.InvalidInput("model version path is required")
	}

	modelVersion := &store.ModelVersion{
		ModelID: modelID,
		Version: version,
		Path:    path,
		JobID:   jobID,
	}

	if err := r.repository.CreateVersion(ctx, modelVersion); err != nil {
		return nil, errors.WithStack(err)
	}

	r.logger.InfoContext(ctx, "model version recorded",
		slog.Uint64("model_id", uint64(modelID)),
		slog.Int("version", version),
		slog.Uint64("job_id", uint64(jobID)),
	)

	return modelVersion, nil
}

type Artifact struct {
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	SizeBytes store.Size `json:"sizeBytes"`
}

// Artifacts lists the regular files stored below the version's path. A
// version whose path does not exist yet has no artifacts.
func (r *Registry) Artifacts(ctx context.Context, versionID uint) ([]*Artifact, error) {
	version, err := r.repository.GetVersion(ctx, versionID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	artifacts := make([]*Artifact, 0)

	info, err := os.Stat(version.Path)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.WarnContext(ctx, "model version path is missing", slog.Uint64("version_id", uint64(versionID)), slog.String("path", version.Path))
			return artifacts, nil
		}
		return nil, errors.WithStack(err)
	}

	if !info.IsDir() {
		return append(artifacts, &Artifact{
			Name:      info.Name(),
			Path:      info.Name(),
			SizeBytes: store.Size(info.Size()),
		}), nil
	}

	err = filepath.WalkDir(version.Path, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}

		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return errors.WithStack(err)
		}

		rel, err := filepath.Rel(version.Path, path)
		if err != nil {
			return errors.WithStack(err)
		}

		artifacts = append(artifacts, &Artifact{
			Name:      entry.Name(),
			Path:      filepath.ToSlash(rel),
			SizeBytes: store.Size(info.Size()),
		})

		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return artifacts, nil
}
