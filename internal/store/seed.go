package store

import (
	"time"
)

// Seed records the execution of an initializer, see repository/seed.
type Seed struct {
	ID         string    `gorm:"primarykey" json:"id"`
	ExecutedAt time.Time `json:"executedAt"`
}

func NewSeed(id string, executedAt time.Time) *Seed {
	return &Seed{
		ID:         id,
		ExecutedAt: executedAt,
	}
}
