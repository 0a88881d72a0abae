package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studyshare/backend/internal/service"
	"github.com/studyshare/backend/pkg/logger"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
}

// Register creates an account. The session starts at login, not here.
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.Warn("Registration request parsing failed",
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	user, err := h.authService.Register(req.Username, req.Password)
	if err != nil {
		logger.Log.Warn("Registration failed",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		c.JSON(statusForError(err), gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

// Login verifies credentials and sets the session cookie. With
// remember=true the cookie persists for the long expiry; otherwise it
// is a browser-session cookie.
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.Warn("Login request parsing failed",
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	user, token, err := h.authService.Login(req.Username, req.Password, req.Remember)
	if err != nil {
		logger.Log.Warn("Login failed",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		c.JSON(statusForError(err), gin.H{
			"error": err.Error(),
		})
		return
	}

	maxAge := 0 // session cookie: gone when the browser closes
	if req.Remember {
		maxAge = int(h.authService.RememberExpiry().Seconds())
	}

	isProduction := h.authService.IsProduction()

	c.SetSameSite(http.SameSiteLaxMode) // CSRF protection
	c.SetCookie(
		"token",
		token,
		maxAge,
		"/",
		"",           // domain (empty = current domain)
		isProduction, // secure (HTTPS-only in production)
		true,         // httpOnly
	)

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user": gin.H{
			"id":              user.ID,
			"username":        user.Username,
			"role":            user.Role,
			"profile_picture": user.ProfilePicture,
			"badges":          service.BadgesFor(user),
		},
	})
}

// Logout clears the session cookie. The token itself simply expires;
// no server-side session state survives the logout.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("token", "", -1, "/", "", h.authService.IsProduction(), true)

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out",
	})
}
