package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/repository"
	"github.com/studyshare/backend/internal/service"
	"github.com/studyshare/backend/pkg/logger"
	"go.uber.org/zap"
)

type MaterialHandler struct {
	materialService *service.MaterialService
	commentService  *service.CommentService
}

func NewMaterialHandler(materialService *service.MaterialService, commentService *service.CommentService) *MaterialHandler {
	return &MaterialHandler{
		materialService: materialService,
		commentService:  commentService,
	}
}

// Upload handles the multipart upload form.
// POST /api/materials
func (h *MaterialHandler) Upload(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		// The body limit middleware trips while the form is being
		// parsed, before anything is buffered or persisted.
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

	subject := c.PostForm("subject")
	description := c.PostForm("description")

	material, err := h.materialService.Upload(
		c.Request.Context(),
		claims.UserID,
		claims.Username,
		fileHeader,
		subject,
		description,
	)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Material uploaded successfully",
		"material": material,
	})
}

// List resolves the dashboard query. Absent parameters mean no
// constraint on that dimension.
// GET /api/materials?subject=&file_type=&search=
func (h *MaterialHandler) List(c *gin.Context) {
	filter := repository.MaterialFilter{
		Subject:  c.Query("subject"),
		FileType: c.Query("file_type"),
		Search:   c.Query("search"),
	}

	materials, err := h.materialService.List(filter)
	if err != nil {
		logger.Log.Error("Failed to list materials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list materials"})
		return
	}

	subjects, fileTypes, err := h.materialService.FilterOptions()
	if err != nil {
		logger.Log.Error("Failed to load filter options", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list materials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"materials":  materials,
		"count":      len(materials),
		"subjects":   subjects,
		"file_types": fileTypes,
	})
}

// Get returns one material with its comment thread.
// GET /api/materials/:id
func (h *MaterialHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid material ID"})
		return
	}

	material, err := h.materialService.Get(id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	comments, err := h.commentService.ListThread(id)
	if err != nil {
		logger.Log.Error("Failed to load comments",
			zap.String("material_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load comments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"material": material,
		"comments": comments,
	})
}

// Download serves the stored bytes as an attachment.
// GET /api/materials/:id/download
func (h *MaterialHandler) Download(c *gin.Context) {
	h.serveBlob(c, true)
}

// Preview serves the stored bytes inline.
// GET /api/materials/:id/preview
func (h *MaterialHandler) Preview(c *gin.Context) {
	h.serveBlob(c, false)
}

func (h *MaterialHandler) serveBlob(c *gin.Context, asAttachment bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid material ID"})
		return
	}

	rc, material, err := h.materialService.OpenBlob(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension("." + material.FileType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	disposition := "inline"
	if asAttachment {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", disposition+`; filename="`+material.DisplayName+`"`)
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, rc); err != nil {
		// Headers are gone; nothing to do but log.
		logger.Log.Warn("Blob stream interrupted",
			zap.String("material_id", id.String()),
			zap.Error(err),
		)
	}
}

// Like bumps the like counter.
// POST /api/materials/:id/like
func (h *MaterialHandler) Like(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid material ID"})
		return
	}

	count, err := h.materialService.Like(id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"like_count": count})
}

// Delete removes a material. Owner or admin only; exposed only on the
// DELETE verb so crawlers and prefetchers cannot trigger it.
// DELETE /api/materials/:id
func (h *MaterialHandler) Delete(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid material ID"})
		return
	}

	isAdmin := claims.Role == models.RoleAdmin
	if err := h.materialService.Delete(c.Request.Context(), id, claims.UserID, isAdmin); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Material deleted"})
}
