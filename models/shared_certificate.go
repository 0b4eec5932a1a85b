package models

import "time"

// SharedCertificate records certificate PNGs published through the share
// fallback path so the background cleaner can age them out.
type SharedCertificate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	FilePath  string    `gorm:"size:1024;not null" json:"file_path"` // filesystem path of the published PNG
	URL       string    `gorm:"size:1024;not null" json:"url"`       // public URL like /static/shares/...
	ExpireAt  time.Time `gorm:"index" json:"expire_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
