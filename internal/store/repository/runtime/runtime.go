package runtime

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/bornholm/trainyard/internal/store"
)

func (r *Repository) List(ctx context.Context) ([]*store.RuntimeImage, error) {
	var images []*store.RuntimeImage
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Order("is_default DESC, name ASC, tag ASC").Find(&images).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

func (r *Repository) GetByID(ctx context.Context, id uint) (*store.RuntimeImage, error) {
	var image store.RuntimeImage
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.First(&image, id).Error; err != nil {
			return store.NotFound(err, "runtime %d", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// KnownDockerIDs returns the subset of the given docker image ids already registered.
func (r *Repository) KnownDockerIDs(ctx context.Context, dockerIDs []string) (map[string]struct{}, error) {
	known := make(map[string]struct{}, len(dockerIDs))
	if len(dockerIDs) == 0 {
		return known, nil
	}

	var ids []string
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Model(&store.RuntimeImage{}).Where("docker_id IN ?", dockerIDs).Pluck("docker_id", &ids).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		known[id] = struct{}{}
	}

	return known, nil
}

// CreateIfAbsent inserts the image unless its docker id is already
// registered. It reports whether a row was created.
func (r *Repository) CreateIfAbsent(ctx context.Context, image *store.RuntimeImage) (bool, error) {
	created := false
	err := r.store.WithRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		var count int64
		if err := db.Model(&store.RuntimeImage{}).Where("docker_id = ?", image.DockerID).Count(&count).Error; err != nil {
			return errors.WithStack(err)
		}

		if count > 0 {
			return nil
		}

		if err := db.Create(image).Error; err != nil {
			if store.IsUniqueViolation(err) {
				return nil
			}
			return errors.WithStack(err)
		}

		created = true

		return nil
	}, store.RetryCodes...)
	if err != nil {
		return false, err
	}

	return created, nil
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Delete(&store.RuntimeImage{}, id).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
}
