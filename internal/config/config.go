package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

type Config struct {
	Logger  Logger  `envPrefix:"LOGGER_"`
	HTTP    HTTP    `envPrefix:"HTTP_"`
	Storage Storage `envPrefix:"STORAGE_"`
	Crypto  Crypto  `envPrefix:"CRYPTO_"`
	Redis   Redis   `envPrefix:"REDIS_"`
	Worker  Worker  `envPrefix:"WORKER_"`
	Seed    Seed    `envPrefix:"SEED_"`
	Upload  Upload  `envPrefix:"UPLOAD_"`
}

func Parse() (*Config, error) {
	conf, err := env.ParseAsWithOptions[Config](env.Options{
		Prefix: "TRAINYARD_",
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &conf, nil
}
