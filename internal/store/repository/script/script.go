package script

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/store"
)

// CreateFirstVersion inserts the script as the latest version 1 of a new name.
func (r *Repository) CreateFirstVersion(ctx context.Context, script *store.Script) error {
	return r.store.WithRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		var count int64
		if err := db.Model(&store.Script{}).Where("name = ?", script.Name).Count(&count).Error; err != nil {
			return errors.WithStack(err)
		}

		if count > 0 {
			return failure.Conflict("script '%s' already exists", script.Name)
		}

		script.Version = 1
		script.IsLatest = true

		if err := db.Create(script).Error; err != nil {
			return errors.WithStack(err)
		}

		return nil
	}, store.RetryCodes...)
}

// CreateNextVersion demotes every existing version of the script's name and
// inserts the script as the new latest version.
func (r *Repository) CreateNextVersion(ctx context.Context, script *store.Script) error {
	return r.store.WithRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		var maxVersion int
		if err := db.Model(&store.Script{}).Where("name = ?", script.Name).Select("COALESCE(MAX(version), 0)").Scan(&maxVersion).Error; err != nil {
			return errors.WithStack(err)
		}

		if err := db.Model(&store.Script{}).Where("name = ? AND is_latest = ?", script.Name, true).Update("is_latest", false).Error; err != nil {
			return errors.WithStack(err)
		}

		script.Version = maxVersion + 1
		script.IsLatest = true

		if err := db.Create(script).Error; err != nil {
			return errors.WithStack(err)
		}

		return nil
	}, store.RetryCodes...)
}

func (r *Repository) GetByID(ctx context.Context, id uint) (*store.Script, error) {
	var script store.Script
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.First(&script, id).Error; err != nil {
			return store.NotFound(err, "script %d", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &script, nil
}

// List returns every script ordered by name and descending version.
func (r *Repository) List(ctx context.Context) ([]*store.Script, error) {
	var scripts []*store.Script
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Order("name ASC, version DESC").Find(&scripts).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scripts, nil
}

// ListByName returns the version chain of a script name, newest first.
func (r *Repository) ListByName(ctx context.Context, name string) ([]*store.Script, error) {
	var scripts []*store.Script
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Where("name = ?", name).Order("version DESC").Find(&scripts).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scripts, nil
}

// Delete removes the script and, if it was the latest of its name, promotes
// the highest remaining version.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.store.WithRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		var script store.Script
		if err := db.First(&script, id).Error; err != nil {
			return store.NotFound(err, "script %d", id)
		}

		if err := db.Delete(&store.Script{}, id).Error; err != nil {
			return errors.WithStack(err)
		}

		if !script.IsLatest {
			return nil
		}

		var remaining []*store.Script
		if err := db.Where("name = ?", script.Name).Order("version DESC").Limit(1).Find(&remaining).Error; err != nil {
			return errors.WithStack(err)
		}

		if len(remaining) == 0 {
			return nil
		}

		if err := db.Model(remaining[0]).Update("is_latest", true).Error; err != nil {
			return errors.WithStack(err)
		}

		return nil
	}, store.RetryCodes...)
}
