package setup

import (
	"context"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/config"
	"github.com/bornholm/trainyard/internal/queue"
)

var getRedisClientFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	return client, nil
})

var getQueueClientFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*queue.Client, error) {
	client, err := getRedisClientFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return queue.NewClient(client, conf.Redis.Queue, slog.Default()), nil
})
