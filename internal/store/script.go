package store

import "time"

type Script struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	Name          string    `gorm:"uniqueIndex:idx_script_name_version" json:"name"`
	Version       int       `gorm:"uniqueIndex:idx_script_name_version" json:"version"`
	Category      string    `gorm:"index" json:"category"`
	Filename      string    `json:"filename"`
	IntegrityHash string    `json:"integrityHash"`
	EncryptedPath string    `json:"encryptedPath"`
	IsLatest      bool      `gorm:"index" json:"isLatest"`
	CreatedAt     time.Time `json:"createdAt"`
}
