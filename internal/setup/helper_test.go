package setup

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/bornholm/trainyard/internal/config"
)

type counter struct {
	value int
}

func TestCreateFromConfigOnce(t *testing.T) {
	calls := 0

	get := createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*counter, error) {
		calls++
		return &counter{value: calls}, nil
	})

	first, err := get(context.Background(), &config.Config{})
	require.NoError(t, err)

	second, err := get(context.Background(), &config.Config{})
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, calls)
}

func TestCreateFromConfigOnceKeepsError(t *testing.T) {
	calls := 0

	get := createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*counter, error) {
		calls++
		return nil, errors.New("unavailable")
	})

	_, err := get(context.Background(), &config.Config{})
	require.ErrorContains(t, err, "unavailable")

	_, err = get(context.Background(), &config.Config{})
	require.ErrorContains(t, err, "unavailable")

	require.Equal(t, 1, calls)
}

func TestVaultRequiresKey(t *testing.T) {
	conf := &config.Config{}
	conf.Storage.Database.DSN = t.TempDir() + "/store.sqlite"
	conf.Storage.File.Dir = t.TempDir()

	_, err := getVaultFromConfig(context.Background(), conf)
	require.Error(t, err)
}
