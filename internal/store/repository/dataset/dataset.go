package dataset

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/store"
)

// CreateFirstVersion inserts the dataset as version 1 of a new logical name.
func (r *Repository) CreateFirstVersion(ctx context.Context, dataset *store.Dataset) error {
	return r.store.WithRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		var count int64
		if err := db.Model(&store.Dataset{}).Where("name = ?", dataset.Name).Count(&count).Error; err != nil {
			return errors.WithStack(err)
		}

		if count > 0 {
			return failure.Conflict("dataset '%s' already exists", dataset.Name)
		}

		dataset.Version = 1

		if err := db.Create(dataset).Error; err != nil {
			return errors.WithStack(err)
		}

		return nil
	}, store.RetryCodes...)
}

// CreateNextVersion inserts the dataset with the version following the
// highest existing one for its name (1 if none).
func (r *Repository) CreateNextVersion(ctx context.Context, dataset *store.Dataset) error {
	return r.store.WithRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		var maxVersion int
		if err := db.Model(&store.Dataset{}).Where("name = ?", dataset.Name).Select("COALESCE(MAX(version), 0)").Scan(&maxVersion).Error; err != nil {
			return errors.WithStack(err)
		}

		dataset.Version = maxVersion + 1

		if err := db.Create(dataset).Error; err != nil {
			return errors.WithStack(err)
		}

		return nil
	}, store.RetryCodes...)
}

func (r *Repository) GetByID(ctx context.Context, id uint) (*store.Dataset, error) {
	var dataset store.Dataset
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.First(&dataset, id).Error; err != nil {
			return store.NotFound(err, "dataset %d", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dataset, nil
}

// FindByHash returns a dataset sharing the given content hash, or nil.
func (r *Repository) FindByHash(ctx context.Context, hash string) (*store.Dataset, error) {
	var datasets []*store.Dataset
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Where("hash = ?", hash).Order("id ASC").Limit(1).Find(&datasets).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(datasets) == 0 {
		return nil, nil
	}

	return datasets[0], nil
}

func (r *Repository) CountByHash(ctx context.Context, hash string) (int64, error) {
	var count int64
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Model(&store.Dataset{}).Where("hash = ?", hash).Count(&count).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repository) List(ctx context.Context) ([]*store.Dataset, error) {
	var datasets []*store.Dataset
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Order("uploaded_at DESC, id DESC").Find(&datasets).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return datasets, nil
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Delete(&store.Dataset{}, id).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
}
