package store

import "time"

// RuntimeImage is a container image registered as usable by jobs.
type RuntimeImage struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"index" json:"name"`
	Tag       string    `json:"tag"`
	DockerID  string    `gorm:"uniqueIndex" json:"dockerId"`
	SizeBytes Size      `json:"sizeBytes"`
	IsDefault bool      `json:"isDefault"`
	AddedAt   time.Time `gorm:"autoCreateTime" json:"addedAt"`
}
