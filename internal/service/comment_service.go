package service

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/broker"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/repository"
	"github.com/studyshare/backend/pkg/logger"
	"go.uber.org/zap"
)

var (
	ErrEmptyComment   = errors.New("comment text is required")
	ErrCommentTooLong = errors.New("comment exceeds the length limit")
	ErrInvalidParent  = errors.New("parent comment not found on this material")
)

type CommentService struct {
	commentRepo  *repository.CommentRepository
	materialRepo *repository.MaterialRepository
	events       broker.EventBroker
}

func NewCommentService(
	commentRepo *repository.CommentRepository,
	materialRepo *repository.MaterialRepository,
	events broker.EventBroker,
) *CommentService {
	return &CommentService{
		commentRepo:  commentRepo,
		materialRepo: materialRepo,
		events:       events,
	}
}

// Post adds a comment or reply to a material. A parent, when given,
// must be an existing comment on the same material; a reply pointing
// at a comment on another material is always rejected.
func (s *CommentService) Post(
	materialID, userID uuid.UUID,
	username, text string,
	parentID *uuid.UUID,
) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > models.MaxCommentLength {
		return nil, ErrCommentTooLong
	}

	material, err := s.materialRepo.GetMaterialByID(materialID)
	if err != nil {
		return nil, err
	}
	if material == nil {
		return nil, ErrMaterialNotFound
	}

	if parentID != nil {
		parent, err := s.commentRepo.GetCommentByID(*parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.MaterialID != materialID {
			return nil, ErrInvalidParent
		}
	}

	comment := &models.Comment{
		ID:         uuid.New(),
		UserID:     userID,
		MaterialID: materialID,
		ParentID:   parentID,
		Text:       text,
	}

	if err := s.commentRepo.CreateComment(comment); err != nil {
		logger.Log.Error("Failed to create comment",
			zap.String("material_id", materialID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.events.Publish(broker.Event{
		Type:       broker.EventCommentPosted,
		MaterialID: materialID.String(),
		Actor:      username,
		Title:      excerpt(text, 80),
		Timestamp:  time.Now().Format(time.RFC3339),
	}); err != nil {
		logger.Log.Warn("Failed to publish comment event", zap.Error(err))
	}

	logger.Log.Info("Comment posted",
		zap.String("comment_id", comment.ID.String()),
		zap.String("material_id", materialID.String()),
		zap.Bool("is_reply", parentID != nil),
	)

	return comment, nil
}

// CommentNode is a comment with its replies attached.
type CommentNode struct {
	models.Comment
	Replies []*CommentNode `json:"replies"`
}

// ListThread returns the material's top-level comments newest-first,
// each carrying its reply subtree.
func (s *CommentService) ListThread(materialID uuid.UUID) ([]*CommentNode, error) {
	comments, err := s.commentRepo.ListByMaterial(materialID)
	if err != nil {
		return nil, err
	}
	return buildThread(comments), nil
}

// buildThread groups a flat newest-first comment list by parent. The
// input ordering is preserved at every level.
func buildThread(comments []models.Comment) []*CommentNode {
	nodes := make(map[uuid.UUID]*CommentNode, len(comments))
	for i := range comments {
		nodes[comments[i].ID] = &CommentNode{Comment: comments[i], Replies: []*CommentNode{}}
	}

	roots := []*CommentNode{}
	for i := range comments {
		node := nodes[comments[i].ID]
		if comments[i].ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*comments[i].ParentID]; ok {
			parent.Replies = append(parent.Replies, node)
		} else {
			// Parent missing from the set (should not happen with
			// cascade deletes); surface the reply at top level rather
			// than dropping it.
			roots = append(roots, node)
		}
	}

	return roots
}

func excerpt(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
