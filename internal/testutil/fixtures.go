package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/utils"
)

// CreateTestUser creates a user with a hashed password
func CreateTestUser(username, password string, role models.Role) (*models.User, error) {
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:             uuid.New(),
		Username:       username,
		PasswordHash:   hashedPassword,
		Role:           role,
		ProfilePicture: models.DefaultProfilePicture,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}, nil
}

// DefaultTestUser returns a default test user (regular user)
func DefaultTestUser() (*models.User, error) {
	return CreateTestUser("testuser", "Test123456", models.RoleUser)
}

// DefaultAdminUser returns a default admin user
func DefaultAdminUser() (*models.User, error) {
	return CreateTestUser("admin", "Admin123456", models.RoleAdmin)
}

// CreateTestMaterial creates a material owned by the given user
func CreateTestMaterial(userID uuid.UUID, displayName, subject string) *models.Material {
	id := uuid.New()
	return &models.Material{
		ID:          id,
		UserID:      userID,
		DisplayName: displayName,
		StoredName:  "test_" + id.String()[:8] + "_" + displayName,
		Subject:     subject,
		FileType:    "pdf",
		Description: "test material",
		CreatedAt:   time.Now(),
	}
}

// CreateTestComment creates a top-level comment on a material
func CreateTestComment(userID, materialID uuid.UUID, text string) *models.Comment {
	return &models.Comment{
		ID:         uuid.New(),
		UserID:     userID,
		MaterialID: materialID,
		Text:       text,
		CreatedAt:  time.Now(),
	}
}
