package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// DefaultProfilePicture is the placeholder shown until a user uploads their own.
const DefaultProfilePicture = "default.png"

type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username       string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	PasswordHash   string    `gorm:"type:varchar(255);not null" json:"-"` // Never expose password hash in JSON
	Role           Role      `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	ProfilePicture string    `gorm:"type:varchar(256);not null" json:"profile_picture"`

	// Counters feeding badge derivation. Incremented with atomic
	// UPDATE expressions at the repository layer, never read-modify-write.
	LoginCount  int `gorm:"not null;default:0" json:"login_count"`
	UploadCount int `gorm:"not null;default:0" json:"upload_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
