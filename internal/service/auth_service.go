package service

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/journal"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/repository"
	"github.com/studyshare/backend/internal/storage"
	"github.com/studyshare/backend/internal/utils"
	"github.com/studyshare/backend/pkg/logger"
	"go.uber.org/zap"
)

var (
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrWrongPassword         = errors.New("current password is incorrect")
)

type AuthService struct {
	userRepo       *repository.UserRepository
	blobs          storage.BlobStore
	uploadJournal  *journal.Journal
	jwtSecret      string
	sessionExpiry  time.Duration
	rememberExpiry time.Duration
	environment    string
	maxUploadSize  int64
}

func NewAuthService(
	userRepo *repository.UserRepository,
	blobs storage.BlobStore,
	uploadJournal *journal.Journal,
	jwtSecret string,
	sessionExpiry, rememberExpiry time.Duration,
	environment string,
	maxUploadSize int64,
) *AuthService {
	return &AuthService{
		userRepo:       userRepo,
		blobs:          blobs,
		uploadJournal:  uploadJournal,
		jwtSecret:      jwtSecret,
		sessionExpiry:  sessionExpiry,
		rememberExpiry: rememberExpiry,
		environment:    environment,
		maxUploadSize:  maxUploadSize,
	}
}

// IsProduction returns true if running in production environment
func (s *AuthService) IsProduction() bool {
	return s.environment == "production"
}

// RememberExpiry exposes the long-lived session duration for cookie max-age.
func (s *AuthService) RememberExpiry() time.Duration {
	return s.rememberExpiry
}

// Register creates an account. The very first account is promoted to
// admin: that is the only admin bootstrap path in the system.
func (s *AuthService) Register(username, password string) (*models.User, error) {
	if err := validateRegisterInput(username, password); err != nil {
		logger.Log.Warn("Registration validation failed",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, err
	}

	existingUser, err := s.userRepo.GetUserByUsername(username)
	if err != nil {
		logger.Log.Error("Failed to check username existence",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, err
	}
	if existingUser != nil {
		return nil, ErrUsernameAlreadyExists
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		logger.Log.Error("Failed to hash password", zap.Error(err))
		return nil, err
	}

	role := models.RoleUser
	count, err := s.userRepo.CountUsers()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		role = models.RoleAdmin
	}

	user := &models.User{
		ID:             uuid.New(),
		Username:       username,
		PasswordHash:   hashedPassword,
		Role:           role,
		ProfilePicture: models.DefaultProfilePicture,
	}

	if err := s.userRepo.CreateUser(user); err != nil {
		logger.Log.Error("Failed to create user",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Log.Info("User registered",
		zap.String("user_id", user.ID.String()),
		zap.String("username", username),
		zap.String("role", string(user.Role)),
	)

	return user, nil
}

// Login verifies credentials, bumps the login counter and issues a
// session token. remember selects the long-lived expiry.
func (s *AuthService) Login(username, password string, remember bool) (*models.User, string, error) {
	user, err := s.userRepo.GetUserByUsername(username)
	if err != nil {
		logger.Log.Error("Failed to get user by username",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, "", err
	}
	if user == nil {
		// Same error as a bad password: don't leak which part was wrong.
		return nil, "", ErrInvalidCredentials
	}

	valid, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		logger.Log.Error("Failed to verify password",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, "", err
	}
	if !valid {
		logger.Log.Warn("Login failed: invalid password",
			zap.String("username", username),
		)
		return nil, "", ErrInvalidCredentials
	}

	if err := s.userRepo.IncrementLoginCount(user.ID); err != nil {
		logger.Log.Error("Failed to increment login count",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return nil, "", err
	}
	user.LoginCount++

	expiry := s.sessionExpiry
	if remember {
		expiry = s.rememberExpiry
	}

	token, err := utils.GenerateToken(user, s.jwtSecret, expiry)
	if err != nil {
		logger.Log.Error("Failed to generate session token",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return nil, "", err
	}

	logger.Log.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
		zap.Bool("remember", remember),
	)

	return user, token, nil
}

// GetProfile returns the user with their derived badges.
func (s *AuthService) GetProfile(userID uuid.UUID) (*models.User, []string, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}
	return user, BadgesFor(user), nil
}

// ChangePassword verifies the current password before rehashing.
func (s *AuthService) ChangePassword(userID uuid.UUID, current, newPassword string) error {
	if len(newPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if len(newPassword) > 128 {
		return errors.New("password too long")
	}

	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	valid, err := utils.VerifyPassword(current, user.PasswordHash)
	if err != nil {
		return err
	}
	if !valid {
		return ErrWrongPassword
	}

	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePassword(userID, hashed); err != nil {
		logger.Log.Error("Failed to update password",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return err
	}

	logger.Log.Info("Password changed", zap.String("user_id", userID.String()))
	return nil
}

// UpdateProfilePicture validates and stores a new avatar, then swaps
// the reference. The journal entry covers the window between blob write
// and reference update; the old avatar is removed best-effort.
func (s *AuthService) UpdateProfilePicture(ctx context.Context, userID uuid.UUID, fileHeader *multipart.FileHeader) (string, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	if fileHeader == nil || fileHeader.Filename == "" {
		return "", ErrEmptyFile
	}
	ext := utils.FileExtension(fileHeader.Filename)
	if !avatarExtensions[ext] {
		return "", ErrDisallowedExtension
	}
	if fileHeader.Size > s.maxUploadSize {
		return "", ErrFileTooLarge
	}

	storedName := utils.StoredName(user.Username, fileHeader.Filename)

	entry := journal.Entry{
		EntryID:   uuid.New().String(),
		Op:        journal.OpUpload,
		Kind:      storage.KindAvatar,
		ObjectKey: storedName,
		Timestamp: time.Now(),
	}
	if err := s.uploadJournal.Record(entry); err != nil {
		return "", err
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if err := s.blobs.Save(ctx, storage.KindAvatar, storedName, src, fileHeader.Size, contentType); err != nil {
		logger.Log.Error("Failed to store avatar",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return "", ErrStorageFailure
	}

	oldPicture := user.ProfilePicture
	if err := s.userRepo.UpdateProfilePicture(userID, storedName); err != nil {
		return "", err
	}

	if err := s.uploadJournal.Resolve(entry.EntryID); err != nil {
		logger.Log.Warn("Failed to resolve avatar journal entry",
			zap.String("entry_id", entry.EntryID),
			zap.Error(err),
		)
	}

	// Old avatar is disposable; a failed remove only leaks one blob.
	if oldPicture != "" && oldPicture != models.DefaultProfilePicture {
		if err := s.blobs.Delete(ctx, storage.KindAvatar, oldPicture); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			logger.Log.Warn("Failed to remove previous avatar",
				zap.String("object", oldPicture),
				zap.Error(err),
			)
		}
	}

	logger.Log.Info("Profile picture updated",
		zap.String("user_id", userID.String()),
		zap.String("stored_name", storedName),
	)

	return storedName, nil
}

func validateRegisterInput(username, password string) error {
	if len(username) < 3 {
		return errors.New("username must be at least 3 characters")
	}
	if len(username) > 50 {
		return errors.New("username must be at most 50 characters")
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if len(password) > 128 {
		return errors.New("password too long")
	}
	return nil
}
