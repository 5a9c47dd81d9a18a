package model

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/store"
)

func orderVersions(db *gorm.DB) *gorm.DB {
	return db.Order("version DESC")
}

// Create inserts a new model, failing with a conflict if the name is taken.
func (r *Repository) Create(ctx context.Context, model *store.Model) error {
	return r.store.WithRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		var count int64
		if err := db.Model(&store.Model{}).Where("name = ?", model.Name).Count(&count).Error; err != nil {
			return errors.WithStack(err)
		}

		if count > 0 {
			return failure.Conflict("model '%s' already exists", model.Name)
		}

		if err := db.Create(model).Error; err != nil {
			if store.IsUniqueViolation(err) {
				return failure.Conflict("model '%s' already exists", model.Name)
			}
			return errors.WithStack(err)
		}

		return nil
	}, store.RetryCodes...)
}

func (r *Repository) GetByID(ctx context.Context, id uint) (*store.Model, error) {
	var model store.Model
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Preload("Versions", orderVersions).First(&model, id).Error; err != nil {
			return store.NotFound(err, "model %d", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model, nil
}

// List returns every model with its versions, newest version first.
func (r *Repository) List(ctx context.Context) ([]*store.Model, error) {
	var models []*store.Model
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Preload("Versions", orderVersions).Order("name ASC").Find(&models).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models, nil
}

// MaxVersion returns the highest recorded version of the model, or 0.
func (r *Repository) MaxVersion(ctx context.Context, modelID uint) (int, error) {
	var maxVersion int
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Model(&store.ModelVersion{}).Where("model_id = ?", modelID).Select("COALESCE(MAX(version), 0)").Scan(&maxVersion).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return maxVersion, nil
}

// CreateVersion records a produced model version. A version already taken
// for the model, or a job that already produced a version, is a conflict.
func (r *Repository) CreateVersion(ctx context.Context, version *store.ModelVersion) error {
	return r.store.WithRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		var count int64
		if err := db.Model(&store.Model{}).Where("id = ?", version.ModelID).Count(&count).Error; err != nil {
			return errors.WithStack(err)
		}

		if count == 0 {
			return failure.NotFound("model %d", version.ModelID)
		}

		if err := db.Create(version).Error; err != nil {
			if store.IsUniqueViolation(err) {
				return failure.Conflict("version %d of model %d already recorded or job %d already produced a version", version.Version, version.ModelID, version.JobID)
			}
			return errors.WithStack(err)
		}

		return nil
	}, store.RetryCodes...)
}

func (r *Repository) GetVersion(ctx context.Context, id uint) (*store.ModelVersion, error) {
	var version store.ModelVersion
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.First(&version, id).Error; err != nil {
			return store.NotFound(err, "model version %d", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &version, nil
}
