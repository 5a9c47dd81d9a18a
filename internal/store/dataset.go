package store

import "time"

// Dataset is a logical (name, version) pointing at content-addressed bytes.
// Several datasets may share the same hash, and therefore the same path.
type Dataset struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	Name       string    `gorm:"index" json:"name"`
	Version    int       `json:"version"`
	Filename   string    `json:"filename"`
	Hash       string    `gorm:"index" json:"hash"`
	Path       string    `json:"path"`
	SizeBytes  Size      `json:"sizeBytes"`
	MimeType   string    `json:"mimeType"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploadedAt"`
}
