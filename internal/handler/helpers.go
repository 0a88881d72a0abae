package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studyshare/backend/internal/service"
	"github.com/studyshare/backend/internal/utils"
)

// currentClaims fetches the session claims placed in the context by the
// auth middleware.
func currentClaims(c *gin.Context) (*utils.Claims, bool) {
	claimsValue, exists := c.Get("claims")
	if !exists {
		return nil, false
	}
	claims, ok := claimsValue.(*utils.Claims)
	return claims, ok
}

// statusForError maps service sentinel errors onto the HTTP taxonomy:
// validation 400, auth 401/403, not-found 404, conflict 409,
// oversized 413, everything else 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyFile),
		errors.Is(err, service.ErrDisallowedExtension),
		errors.Is(err, service.ErrMissingSubject),
		errors.Is(err, service.ErrEmptyComment),
		errors.Is(err, service.ErrCommentTooLong),
		errors.Is(err, service.ErrInvalidParent),
		errors.Is(err, service.ErrSelfDeletion),
		errors.Is(err, service.ErrWrongPassword):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, service.ErrMaterialNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUsernameAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
