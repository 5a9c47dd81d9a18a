package job

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/bornholm/trainyard/internal/store"
)

var terminalStatuses = []store.JobStatus{
	store.JobStatusCompleted,
	store.JobStatusFailed,
	store.JobStatusCancelled,
}

func (r *Repository) Create(ctx context.Context, job *store.Job) error {
	return r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Create(job).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
}

func (r *Repository) GetByID(ctx context.Context, id uint) (*store.Job, error) {
	var job store.Job
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Preload("ProducedModelVersion").First(&job, id).Error; err != nil {
			return store.NotFound(err, "job %d", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List retrieves jobs, newest first, with optional pagination
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*store.Job, error) {
	var jobs []*store.Job
	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		query := db.Preload("ProducedModelVersion").Order("created_at DESC, id DESC")
		if limit > 0 {
			query = query.Limit(limit)
		}
		if offset > 0 {
			query = query.Offset(offset)
		}
		if err := query.Find(&jobs).Error; err != nil {
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Cancel moves the job to CANCELLED only if it is not already terminal. It
// reports whether the row was updated.
func (r *Repository) Cancel(ctx context.Context, id uint, exitCode int, completedAt time.Time) (bool, error) {
	var updated bool
	err := r.store.WithRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		result := db.Model(&store.Job{}).
			Where("id = ? AND status NOT IN ?", id, terminalStatuses).
			Updates(map[string]any{
				"status":       store.JobStatusCancelled,
				"exit_code":    exitCode,
				"completed_at": completedAt,
			})
		if result.Error != nil {
			return errors.WithStack(result.Error)
		}

		updated = result.RowsAffected > 0

		return nil
	}, store.RetryCodes...)
	if err != nil {
		return false, err
	}

	return updated, nil
}

// Transition applies the given column updates if the job status is still one
// of the expected ones. It reports whether the row was updated.
func (r *Repository) Transition(ctx context.Context, id uint, from []store.JobStatus, updates map[string]any) (bool, error) {
	var updated bool
	err := r.store.WithRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		result := db.Model(&store.Job{}).
			Where("id = ? AND status IN ?", id, from).
			Updates(updates)
		if result.Error != nil {
			return errors.WithStack(result.Error)
		}

		updated = result.RowsAffected > 0

		return nil
	}, store.RetryCodes...)
	if err != nil {
		return false, err
	}

	return updated, nil
}
