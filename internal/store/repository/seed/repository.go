// Package seed runs idempotent store initializers once per identifier.
package seed

import (
	"log/slog"

	"github.com/bornholm/trainyard/internal/store"
)

type Repository struct {
	store  *store.Store
	logger *slog.Logger
}

func NewRepository(store *store.Store, logger *slog.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger.With("component", "seed-repository"),
	}
}
