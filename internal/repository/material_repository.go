package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/models"
	"gorm.io/gorm"
)

// MaterialFilter narrows dashboard listings. Zero-value fields mean
// "no constraint on that dimension", not "match empty".
type MaterialFilter struct {
	Subject  string // exact match
	FileType string // exact match
	Search   string // case-insensitive substring over name OR description
}

type MaterialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

func (r *MaterialRepository) CreateMaterial(material *models.Material) error {
	return r.db.Create(material).Error
}

func (r *MaterialRepository) GetMaterialByID(id uuid.UUID) (*models.Material, error) {
	var material models.Material
	err := r.db.Preload("Uploader").Where("id = ?", id).First(&material).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &material, nil
}

func (r *MaterialRepository) GetMaterialByStoredName(storedName string) (*models.Material, error) {
	var material models.Material
	err := r.db.Where("stored_name = ?", storedName).First(&material).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &material, nil
}

// ListMaterials resolves a dashboard query, most recent uploads first.
// LOWER(...) LIKE keeps the substring match case-insensitive on both
// postgres and sqlite.
func (r *MaterialRepository) ListMaterials(filter MaterialFilter) ([]models.Material, error) {
	query := r.db.Preload("Uploader").Order("created_at DESC")

	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}
	if filter.FileType != "" {
		query = query.Where("file_type = ?", filter.FileType)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(
			"LOWER(display_name) LIKE ? OR LOWER(description) LIKE ?",
			pattern, pattern,
		)
	}

	var materials []models.Material
	err := query.Find(&materials).Error
	return materials, err
}

// DistinctSubjects returns the subjects currently in use, for filter dropdowns.
func (r *MaterialRepository) DistinctSubjects() ([]string, error) {
	var subjects []string
	err := r.db.Model(&models.Material{}).Distinct().Order("subject").Pluck("subject", &subjects).Error
	return subjects, err
}

// DistinctFileTypes returns the file types currently in use.
func (r *MaterialRepository) DistinctFileTypes() ([]string, error) {
	var types []string
	err := r.db.Model(&models.Material{}).Distinct().Order("file_type").Pluck("file_type", &types).Error
	return types, err
}

// IncrementLikes bumps the like counter atomically and returns the new
// count. Concurrent likes serialize on the UPDATE, so no increment is lost.
func (r *MaterialRepository) IncrementLikes(id uuid.UUID) (int, error) {
	result := r.db.Model(&models.Material{}).
		Where("id = ?", id).
		UpdateColumn("like_count", gorm.Expr("like_count + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var material models.Material
	if err := r.db.Select("like_count").Where("id = ?", id).First(&material).Error; err != nil {
		return 0, err
	}
	return material.LikeCount, nil
}

// DeleteMaterialCascade removes a material and its comments in one
// transaction. Blob removal is the caller's job; the record must go
// first so no request can observe a material whose bytes are gone.
func (r *MaterialRepository) DeleteMaterialCascade(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("material_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Material{}, "id = ?", id).Error
	})
}
