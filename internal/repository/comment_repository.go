package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/models"
	"gorm.io/gorm"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) CreateComment(comment *models.Comment) error {
	return r.db.Create(comment).Error
}

func (r *CommentRepository) GetCommentByID(id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.Where("id = ?", id).First(&comment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &comment, nil
}

// ListByMaterial returns every comment on a material, newest first.
// The service layer assembles the reply tree from the flat list.
func (r *CommentRepository) ListByMaterial(materialID uuid.UUID) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.
		Preload("Author").
		Where("material_id = ?", materialID).
		Order("created_at DESC").
		Find(&comments).Error

	return comments, err
}
