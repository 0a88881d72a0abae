package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/journal"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/repository"
	"github.com/studyshare/backend/internal/storage"
	"github.com/studyshare/backend/pkg/logger"
	"go.uber.org/zap"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrSelfDeletion = errors.New("admins cannot delete their own account")
)

type AdminService struct {
	userRepo      *repository.UserRepository
	blobs         storage.BlobStore
	uploadJournal *journal.Journal
}

func NewAdminService(
	userRepo *repository.UserRepository,
	blobs storage.BlobStore,
	uploadJournal *journal.Journal,
) *AdminService {
	return &AdminService{
		userRepo:      userRepo,
		blobs:         blobs,
		uploadJournal: uploadJournal,
	}
}

// UserOverview is a user record plus derived badges, for the admin panel.
type UserOverview struct {
	*models.User
	Badges []string `json:"badges"`
}

// ListUsers returns every account with badges attached.
func (s *AdminService) ListUsers() ([]UserOverview, error) {
	users, err := s.userRepo.GetAllUsers()
	if err != nil {
		logger.Log.Error("Failed to fetch users", zap.Error(err))
		return nil, err
	}

	overviews := make([]UserOverview, 0, len(users))
	for _, user := range users {
		overviews = append(overviews, UserOverview{
			User:   user,
			Badges: BadgesFor(user),
		})
	}
	return overviews, nil
}

// DeleteUser removes an account together with its materials and
// comments. Refuses to delete the requesting admin's own account.
// Records go in one transaction; blobs are removed afterwards
// best-effort, with journal entries so failures retry at startup.
func (s *AdminService) DeleteUser(ctx context.Context, targetID, adminID uuid.UUID) error {
	if targetID == adminID {
		return ErrSelfDeletion
	}

	target, err := s.userRepo.GetUserByID(targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrUserNotFound
	}

	avatar := target.ProfilePicture

	storedNames, err := s.userRepo.DeleteUserCascade(targetID)
	if err != nil {
		logger.Log.Error("Failed to cascade-delete user",
			zap.String("user_id", targetID.String()),
			zap.Error(err),
		)
		return err
	}

	for _, storedName := range storedNames {
		s.removeBlob(ctx, storage.KindMaterial, storedName)
	}
	if avatar != "" && avatar != models.DefaultProfilePicture {
		s.removeBlob(ctx, storage.KindAvatar, avatar)
	}

	logger.Log.Info("User deleted by admin",
		zap.String("user_id", targetID.String()),
		zap.String("admin_id", adminID.String()),
		zap.Int("materials_removed", len(storedNames)),
	)

	return nil
}

// removeBlob journals and removes one blob; a failure leaves the entry
// pending for startup reconciliation.
func (s *AdminService) removeBlob(ctx context.Context, kind, objectKey string) {
	entry := journal.Entry{
		EntryID:   uuid.New().String(),
		Op:        journal.OpDelete,
		Kind:      kind,
		ObjectKey: objectKey,
		Timestamp: time.Now(),
	}
	if err := s.uploadJournal.Record(entry); err != nil {
		logger.Log.Warn("Failed to journal blob removal",
			zap.String("object_key", objectKey),
			zap.Error(err),
		)
	}

	err := s.blobs.Delete(ctx, kind, objectKey)
	if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		logger.Log.Warn("Failed to remove blob, will retry at startup",
			zap.String("object_key", objectKey),
			zap.Error(err),
		)
		return
	}

	if err := s.uploadJournal.Resolve(entry.EntryID); err != nil {
		logger.Log.Warn("Failed to resolve journal entry",
			zap.String("entry_id", entry.EntryID),
			zap.Error(err),
		)
	}
}
