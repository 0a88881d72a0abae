package models

import (
	"time"

	"github.com/google/uuid"
)

// Material is an uploaded study file and its metadata record.
// StoredName is the sanitized, collision-free object key in blob storage;
// DisplayName keeps the name the uploader chose.
type Material struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	DisplayName string    `gorm:"type:varchar(256);not null" json:"display_name"`
	StoredName  string    `gorm:"type:varchar(256);uniqueIndex;not null" json:"stored_name"`
	Subject     string    `gorm:"type:varchar(100);not null;index" json:"subject"`
	FileType    string    `gorm:"type:varchar(20);not null;index" json:"file_type"`
	Description string    `gorm:"type:varchar(500)" json:"description"`
	LikeCount   int       `gorm:"not null;default:0" json:"like_count"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`

	Uploader User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"uploader"`
}
