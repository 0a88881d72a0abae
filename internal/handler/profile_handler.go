package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studyshare/backend/internal/service"
	"github.com/studyshare/backend/pkg/logger"
	"go.uber.org/zap"
)

type ProfileHandler struct {
	authService *service.AuthService
}

func NewProfileHandler(authService *service.AuthService) *ProfileHandler {
	return &ProfileHandler{
		authService: authService,
	}
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// Get returns the caller's profile with derived badges.
// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	user, badges, err := h.authService.GetProfile(claims.UserID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   user,
		"badges": badges,
	})
}

// ChangePassword rotates the caller's password after verifying the
// current one.
// PUT /api/profile/password
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.authService.ChangePassword(claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// UpdatePicture replaces the caller's profile picture. Image types
// only; shares the upload body limit with materials.
// POST /api/profile/picture
func (h *ProfileHandler) UpdatePicture(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	fileHeader, err := c.FormFile("picture")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": service.ErrFileTooLarge.Error(),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error": service.ErrEmptyFile.Error(),
		})
		return
	}

	storedName, err := h.authService.UpdateProfilePicture(c.Request.Context(), claims.UserID, fileHeader)
	if err != nil {
		logger.Log.Warn("Profile picture update failed",
			zap.String("user_id", claims.UserID.String()),
			zap.Error(err),
		)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Profile picture updated",
		"profile_picture": storedName,
	})
}
