package store

import "time"

type Model struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"createdAt"`

	Versions []*ModelVersion `gorm:"constraint:OnDelete:CASCADE;" json:"versions"`
}

// ModelVersion is produced by exactly one job.
type ModelVersion struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ModelID   uint      `gorm:"uniqueIndex:idx_model_version" json:"modelId"`
	Version   int       `gorm:"uniqueIndex:idx_model_version" json:"version"`
	Path      string    `json:"path"`
	JobID     uint      `gorm:"uniqueIndex" json:"jobId"`
	CreatedAt time.Time `json:"createdAt"`
}
