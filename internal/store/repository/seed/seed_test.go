package seed

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bornholm/trainyard/internal/slogx"
	"github.com/bornholm/trainyard/internal/store/storetest"
)

func TestSeedRunsOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(storetest.New(t), slogx.NewTestLogger(t))

	calls := map[string]int{}
	counting := func(id string) *Seeder {
		return New(id, func(ctx context.Context, db *gorm.DB) error {
			calls[id]++
			return nil
		})
	}

	executed, err := repo.Seed(ctx, false, counting("a"), counting("b"))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, executed)

	executed, err = repo.Seed(ctx, false, counting("a"), counting("b"))
	require.NoError(t, err)
	require.Empty(t, executed)

	executed, err = repo.Seed(ctx, true, counting("a"))
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, executed)

	require.Equal(t, map[string]int{"a": 2, "b": 1}, calls)

	seeds, err := repo.Executed(ctx)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
}

func TestSeedFailureIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(storetest.New(t), slogx.NewTestLogger(t))

	failing := New("broken", func(ctx context.Context, db *gorm.DB) error {
		return errors.New("boom")
	})

	executed, err := repo.Seed(ctx, false, New("ok", func(ctx context.Context, db *gorm.DB) error { return nil }), failing)
	require.Error(t, err)
	require.Equal(t, []string{"ok"}, executed)

	seeds, err := repo.Executed(ctx)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	require.Equal(t, "ok", seeds[0].ID)
}
