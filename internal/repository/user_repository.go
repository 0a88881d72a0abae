package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", username).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (r *UserRepository) GetUserByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.Where("id = ?", id).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// CountUsers returns the total number of accounts. Used for the
// first-account admin bootstrap check.
func (r *UserRepository) CountUsers() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

// IncrementLoginCount bumps the counter with an atomic UPDATE so
// concurrent logins cannot lose updates.
func (r *UserRepository) IncrementLoginCount(id uuid.UUID) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("login_count", gorm.Expr("login_count + 1")).Error
}

// IncrementUploadCount bumps the counter with an atomic UPDATE.
func (r *UserRepository) IncrementUploadCount(id uuid.UUID) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("upload_count", gorm.Expr("upload_count + 1")).Error
}

func (r *UserRepository) UpdatePassword(id uuid.UUID, passwordHash string) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash).Error
}

func (r *UserRepository) UpdateProfilePicture(id uuid.UUID, storedName string) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", id).
		Update("profile_picture", storedName).Error
}

// GetAllUsers returns every account, newest first.
func (r *UserRepository) GetAllUsers() ([]*models.User, error) {
	var users []*models.User
	err := r.db.Order("created_at DESC").Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUserCascade removes a user together with their materials and
// comments (both authored comments and comments on their materials) in
// one transaction. It returns the stored names of the user's material
// blobs so the caller can clean up the object store afterwards.
func (r *UserRepository) DeleteUserCascade(id uuid.UUID) ([]string, error) {
	var storedNames []string

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var materials []models.Material
		if err := tx.Where("user_id = ?", id).Find(&materials).Error; err != nil {
			return err
		}

		materialIDs := make([]uuid.UUID, 0, len(materials))
		for _, m := range materials {
			materialIDs = append(materialIDs, m.ID)
			storedNames = append(storedNames, m.StoredName)
		}

		if len(materialIDs) > 0 {
			if err := tx.Where("material_id IN ?", materialIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}

		// Replies by other users to this user's comments elsewhere are
		// kept and promoted to top level, so no reply is left pointing
		// at a deleted parent.
		var commentIDs []uuid.UUID
		if err := tx.Model(&models.Comment{}).Where("user_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Model(&models.Comment{}).Where("parent_id IN ?", commentIDs).Update("parent_id", nil).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Material{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", id).Error
	})

	if err != nil {
		return nil, err
	}
	return storedNames, nil
}
