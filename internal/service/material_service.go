package service

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/broker"
	"github.com/studyshare/backend/internal/journal"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/repository"
	"github.com/studyshare/backend/internal/storage"
	"github.com/studyshare/backend/internal/utils"
	"github.com/studyshare/backend/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrMaterialNotFound    = errors.New("material not found")
	ErrEmptyFile           = errors.New("no file provided")
	ErrDisallowedExtension = errors.New("file type not allowed")
	ErrFileTooLarge        = errors.New("file exceeds the upload size limit")
	ErrMissingSubject      = errors.New("subject is required")
	ErrNotAuthorized       = errors.New("not authorized for this material")
	ErrStorageFailure      = errors.New("storage operation failed")
)

// materialExtensions is the upload allow-list: document, archive and
// image types. Matched case-insensitively on the suffix.
var materialExtensions = map[string]bool{
	"pdf": true, "doc": true, "docx": true,
	"ppt": true, "pptx": true, "txt": true, "zip": true,
	"jpg": true, "jpeg": true, "png": true, "gif": true,
}

// avatarExtensions restricts profile pictures to image types.
var avatarExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
}

type MaterialService struct {
	materialRepo  *repository.MaterialRepository
	userRepo      *repository.UserRepository
	blobs         storage.BlobStore
	uploadJournal *journal.Journal
	events        broker.EventBroker
	maxUploadSize int64
}

func NewMaterialService(
	materialRepo *repository.MaterialRepository,
	userRepo *repository.UserRepository,
	blobs storage.BlobStore,
	uploadJournal *journal.Journal,
	events broker.EventBroker,
	maxUploadSize int64,
) *MaterialService {
	return &MaterialService{
		materialRepo:  materialRepo,
		userRepo:      userRepo,
		blobs:         blobs,
		uploadJournal: uploadJournal,
		events:        events,
		maxUploadSize: maxUploadSize,
	}
}

// Upload runs the full pipeline: validate, journal the intent, write
// the blob, then commit the metadata record. The metadata insert never
// happens before the bytes are durable, so a crash can orphan a blob
// (reaped by ReconcileJournal) but never a record.
func (s *MaterialService) Upload(
	ctx context.Context,
	userID uuid.UUID,
	username string,
	fileHeader *multipart.FileHeader,
	subject, description string,
) (*models.Material, error) {
	if fileHeader == nil || fileHeader.Filename == "" {
		return nil, ErrEmptyFile
	}
	if subject == "" {
		return nil, ErrMissingSubject
	}

	ext := utils.FileExtension(fileHeader.Filename)
	if !materialExtensions[ext] {
		logger.Log.Warn("Upload rejected: disallowed extension",
			zap.String("username", username),
			zap.String("filename", fileHeader.Filename),
		)
		return nil, ErrDisallowedExtension
	}

	// The transport layer already caps the request body; this guards
	// direct service callers.
	if fileHeader.Size > s.maxUploadSize {
		return nil, ErrFileTooLarge
	}

	displayName := utils.SanitizeFilename(fileHeader.Filename)
	storedName := utils.StoredName(username, fileHeader.Filename)

	entry := journal.Entry{
		EntryID:   uuid.New().String(),
		Op:        journal.OpUpload,
		Kind:      storage.KindMaterial,
		ObjectKey: storedName,
		Timestamp: time.Now(),
	}
	if err := s.uploadJournal.Record(entry); err != nil {
		return nil, err
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if err := s.blobs.Save(ctx, storage.KindMaterial, storedName, src, fileHeader.Size, contentType); err != nil {
		logger.Log.Error("Failed to store upload",
			zap.String("stored_name", storedName),
			zap.Error(err),
		)
		return nil, ErrStorageFailure
	}

	material := &models.Material{
		ID:          uuid.New(),
		UserID:      userID,
		DisplayName: displayName,
		StoredName:  storedName,
		Subject:     subject,
		FileType:    ext,
		Description: description,
	}

	if err := s.materialRepo.CreateMaterial(material); err != nil {
		logger.Log.Error("Failed to create material record",
			zap.String("stored_name", storedName),
			zap.Error(err),
		)
		// Leave the journal entry pending: reconciliation will remove
		// the now-orphaned blob.
		return nil, err
	}

	if err := s.uploadJournal.Resolve(entry.EntryID); err != nil {
		logger.Log.Warn("Failed to resolve upload journal entry",
			zap.String("entry_id", entry.EntryID),
			zap.Error(err),
		)
	}

	if err := s.userRepo.IncrementUploadCount(userID); err != nil {
		logger.Log.Warn("Failed to increment upload count",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}

	if err := s.events.Publish(broker.Event{
		Type:       broker.EventMaterialUploaded,
		MaterialID: material.ID.String(),
		Actor:      username,
		Title:      material.DisplayName,
		Timestamp:  time.Now().Format(time.RFC3339),
	}); err != nil {
		logger.Log.Warn("Failed to publish upload event", zap.Error(err))
	}

	logger.Log.Info("Material uploaded",
		zap.String("material_id", material.ID.String()),
		zap.String("username", username),
		zap.String("subject", subject),
		zap.String("file_type", ext),
		zap.Int64("size", fileHeader.Size),
	)

	return material, nil
}

// List resolves a dashboard query.
func (s *MaterialService) List(filter repository.MaterialFilter) ([]models.Material, error) {
	return s.materialRepo.ListMaterials(filter)
}

// FilterOptions returns the distinct subjects and file types in use.
func (s *MaterialService) FilterOptions() ([]string, []string, error) {
	subjects, err := s.materialRepo.DistinctSubjects()
	if err != nil {
		return nil, nil, err
	}
	types, err := s.materialRepo.DistinctFileTypes()
	if err != nil {
		return nil, nil, err
	}
	return subjects, types, nil
}

// Get returns a single material.
func (s *MaterialService) Get(id uuid.UUID) (*models.Material, error) {
	material, err := s.materialRepo.GetMaterialByID(id)
	if err != nil {
		return nil, err
	}
	if material == nil {
		return nil, ErrMaterialNotFound
	}
	return material, nil
}

// OpenBlob streams the stored bytes for download or preview.
func (s *MaterialService) OpenBlob(ctx context.Context, id uuid.UUID) (io.ReadCloser, *models.Material, error) {
	material, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Open(ctx, storage.KindMaterial, material.StoredName)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			// Record exists but bytes are gone, likely a delete racing
			// with this read.
			return nil, nil, ErrMaterialNotFound
		}
		return nil, nil, err
	}
	return rc, material, nil
}

// Like bumps the like counter and returns the new count.
func (s *MaterialService) Like(id uuid.UUID) (int, error) {
	count, err := s.materialRepo.IncrementLikes(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrMaterialNotFound
		}
		return 0, err
	}
	return count, nil
}

// Delete removes a material if the requester owns it or is an admin.
// Record first (transactionally with its comments), then the blob; a
// failed blob remove is degraded to a warning and retried at startup
// via the pending journal entry.
func (s *MaterialService) Delete(ctx context.Context, id, requesterID uuid.UUID, isAdmin bool) error {
	material, err := s.materialRepo.GetMaterialByID(id)
	if err != nil {
		return err
	}
	if material == nil {
		return ErrMaterialNotFound
	}

	if material.UserID != requesterID && !isAdmin {
		logger.Log.Warn("Unauthorized delete attempt",
			zap.String("material_id", id.String()),
			zap.String("requester_id", requesterID.String()),
		)
		return ErrNotAuthorized
	}

	entry := journal.Entry{
		EntryID:   uuid.New().String(),
		Op:        journal.OpDelete,
		Kind:      storage.KindMaterial,
		ObjectKey: material.StoredName,
		Timestamp: time.Now(),
	}
	if err := s.uploadJournal.Record(entry); err != nil {
		return err
	}

	if err := s.materialRepo.DeleteMaterialCascade(id); err != nil {
		logger.Log.Error("Failed to delete material record",
			zap.String("material_id", id.String()),
			zap.Error(err),
		)
		return err
	}

	if err := s.blobs.Delete(ctx, storage.KindMaterial, material.StoredName); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			logger.Log.Warn("Blob already missing on delete",
				zap.String("stored_name", material.StoredName),
			)
		} else {
			// Keep the journal entry pending so reconciliation retries.
			logger.Log.Warn("Failed to remove blob, will retry at startup",
				zap.String("stored_name", material.StoredName),
				zap.Error(err),
			)
			return nil
		}
	}

	if err := s.uploadJournal.Resolve(entry.EntryID); err != nil {
		logger.Log.Warn("Failed to resolve delete journal entry",
			zap.String("entry_id", entry.EntryID),
			zap.Error(err),
		)
	}

	logger.Log.Info("Material deleted",
		zap.String("material_id", id.String()),
		zap.String("requester_id", requesterID.String()),
		zap.Bool("as_admin", isAdmin),
	)

	return nil
}

// ReconcileJournal runs the startup cleanup pass over pending journal
// entries. Pending uploads whose metadata never committed lose their
// blob; pending deletes retry the blob removal. Both actions are
// idempotent, so replaying an already-handled entry is harmless.
func (s *MaterialService) ReconcileJournal(ctx context.Context) error {
	entries, err := s.uploadJournal.Pending()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	logger.Log.Info("Reconciling upload journal", zap.Int("pending", len(entries)))

	var resolved []string
	for _, entry := range entries {
		switch entry.Op {
		case journal.OpUpload:
			if entry.Kind == storage.KindMaterial {
				material, err := s.materialRepo.GetMaterialByStoredName(entry.ObjectKey)
				if err != nil {
					return err
				}
				if material != nil {
					// Metadata committed; the upload finished, only the
					// resolve step was lost.
					resolved = append(resolved, entry.EntryID)
					continue
				}
			}
			fallthrough
		case journal.OpDelete:
			err := s.blobs.Delete(ctx, entry.Kind, entry.ObjectKey)
			if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
				logger.Log.Warn("Reconciliation: blob removal failed, keeping entry",
					zap.String("object_key", entry.ObjectKey),
					zap.Error(err),
				)
				continue
			}
			resolved = append(resolved, entry.EntryID)
		}
	}

	if len(resolved) > 0 {
		if err := s.uploadJournal.Resolve(resolved...); err != nil {
			return err
		}
	}

	logger.Log.Info("Journal reconciliation finished",
		zap.Int("resolved", len(resolved)),
		zap.Int("kept", len(entries)-len(resolved)),
	)
	return nil
}
