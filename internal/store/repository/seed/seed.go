package seed

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bornholm/trainyard/internal/store"
)

type ExecFunc func(ctx context.Context, db *gorm.DB) error

type Seeder struct {
	id   string
	exec ExecFunc
}

func (s *Seeder) ID() string {
	return s.id
}

func New(id string, exec ExecFunc) *Seeder {
	return &Seeder{
		id:   id,
		exec: exec,
	}
}

// Seed runs each seeder in its own transaction, skipping the ones already
// recorded unless force is set. It returns the identifiers of the seeders
// that ran. A failing seeder aborts the run, previous ones stay applied.
func (r *Repository) Seed(ctx context.Context, force bool, seeders ...*Seeder) ([]string, error) {
	executed := make([]string, 0, len(seeders))

	for _, s := range seeders {
		ran := false

		err := r.store.WithRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
			ran = false

			var count int64
			if err := db.Model(&store.Seed{}).Where("id = ?", s.id).Count(&count).Error; err != nil {
				return errors.WithStack(err)
			}

			if !force && count > 0 {
				return nil
			}

			if err := s.exec(ctx, db); err != nil {
				return errors.WithStack(err)
			}

			if err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"executed_at"}),
			}).Create(store.NewSeed(s.id, time.Now())).Error; err != nil {
				return errors.WithStack(err)
			}

			ran = true

			return nil
		}, store.RetryCodes...)
		if err != nil {
			return executed, errors.Wrapf(err, "could not execute seeder '%s'", s.id)
		}

		if !ran {
			r.logger.DebugContext(ctx, "seeder already executed", slog.String("seed_id", s.id))
			continue
		}

		r.logger.InfoContext(ctx, "seeder executed", slog.String("seed_id", s.id))

		executed = append(executed, s.id)
	}

	return executed, nil
}

// Executed returns the recorded seeds, most recent first.
func (r *Repository) Executed(ctx context.Context) ([]*store.Seed, error) {
	var seeds []*store.Seed

	err := r.store.WithDatabase(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.Order("executed_at DESC").Find(&seeds).Error; err != nil {
			return errors.WithStack(err)
		}

		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return seeds, nil
}
