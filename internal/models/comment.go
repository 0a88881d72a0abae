package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxCommentLength bounds comment bodies.
const MaxCommentLength = 500

// Comment belongs to a material and optionally replies to another comment
// on the same material (ParentID nil for top-level comments).
type Comment struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	MaterialID uuid.UUID  `gorm:"type:uuid;not null;index" json:"material_id"`
	ParentID   *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Text       string     `gorm:"type:varchar(500);not null" json:"text"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`

	Author   User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"author"`
	Material Material `gorm:"foreignKey:MaterialID;constraint:OnDelete:CASCADE" json:"-"`
}
