package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/emilythestrangee/wikicomments/backend/internal/models"
)

// CommentStore persists comments and their revision history.
type CommentStore struct {
	db *gorm.DB
}

func NewCommentStore(db *gorm.DB) *CommentStore {
	return &CommentStore{db: db}
}

// GetComment loads a comment with its author.
func (s *CommentStore) GetComment(ctx context.Context, pk int) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).Preload("User").First(&comment, pk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading comment %d: %w", pk, err)
	}
	return &comment, nil
}

// SaveComment inserts or updates comment and records note in its history,
// in one transaction.
func (s *CommentStore) SaveComment(ctx context.Context, comment *models.Comment, editorID int, note string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if comment.ID == 0 {
			if err := tx.Omit("User").Create(comment).Error; err != nil {
				return fmt.Errorf("creating comment: %w", err)
			}
		} else if err := tx.Omit("User").Save(comment).Error; err != nil {
			return fmt.Errorf("saving comment %d: %w", comment.ID, err)
		}

		rev := models.CommentRevision{
			CommentID: comment.ID,
			EditorID:  editorID,
			Note:      note,
			IsRemoved: comment.IsRemoved,
		}
		if err := tx.Create(&rev).Error; err != nil {
			return fmt.Errorf("recording revision of comment %d: %w", comment.ID, err)
		}
		return nil
	})
}

// Revisions returns the history of a comment, oldest first.
func (s *CommentStore) Revisions(ctx context.Context, commentID int) ([]models.CommentRevision, error) {
	var revs []models.CommentRevision
	err := s.db.WithContext(ctx).
		Where("comment_id = ?", commentID).
		Order("created_at asc, id asc").
		Find(&revs).Error
	if err != nil {
		return nil, fmt.Errorf("loading revisions of comment %d: %w", commentID, err)
	}
	return revs, nil
}
