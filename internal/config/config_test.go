package config

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	conf, err := Parse()
	require.NoError(t, err)

	require.Equal(t, ":3002", conf.HTTP.Address)
	require.Equal(t, slog.LevelInfo, conf.Logger.Level)
	require.Equal(t, "trainyard:jobs", conf.Redis.Queue)
	require.Equal(t, "logs:*", conf.Redis.LogPattern)
	require.Equal(t, int64(5<<20), conf.Upload.MaxScriptSize)
	require.True(t, conf.Seed.Enabled)
}

func TestParseFromEnvironment(t *testing.T) {
	t.Setenv("TRAINYARD_REDIS_ADDR", "redis:6379")
	t.Setenv("TRAINYARD_REDIS_PASSWORD", "hunter2")
	t.Setenv("TRAINYARD_WORKER_TOKEN", "w0rk3r")
	t.Setenv("TRAINYARD_CRYPTO_SCRIPT_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("TRAINYARD_SEED_DEFAULT_RUNTIMES", "python:3.11,pytorch/pytorch:latest")
	t.Setenv("TRAINYARD_LOGGER_LEVEL", "debug")

	conf, err := Parse()
	require.NoError(t, err)

	require.Equal(t, "redis:6379", conf.Redis.Addr)
	require.Equal(t, "w0rk3r", conf.Worker.Token)
	require.Equal(t, []string{"python:3.11", "pytorch/pytorch:latest"}, conf.Seed.DefaultRuntimes)
	require.Equal(t, slog.LevelDebug, conf.Logger.Level)

	dump := fmt.Sprintf("%+v", conf)

	require.NotContains(t, dump, "hunter2")
	require.NotContains(t, dump, "w0rk3r")
	require.NotContains(t, dump, "0123456789abcdef")
	require.Contains(t, dump, "redis:6379")
}
