package grievances

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

// ListComments returns a grievance's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, grievanceID int, caller *models.Caller) ([]models.Comment, error) {
	if err := s.grievanceExists(ctx, grievanceID); err != nil {
		return nil, err
	}

	comments := []models.Comment{}
	err := s.db.WithContext(ctx).
		Where("grievance_id = ?", grievanceID).
		Preload("Author").
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to fetch comments")
	}

	if caller == nil || len(comments) == 0 {
		return comments, nil
	}
	ids := make([]int, len(comments))
	for i := range comments {
		ids[i] = comments[i].ID
	}
	kinds, err := s.votes.KindsByComment(ctx, s.db, caller.UserID, ids)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		if kind, ok := kinds[comments[i].ID]; ok {
			k := kind
			comments[i].UserVote = &k
		}
	}
	return comments, nil
}

func (s *Service) AddComment(ctx context.Context, caller *models.Caller, grievanceID int, body string) (*models.Comment, error) {
	if caller == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.InvalidInput("comment body is required")
	}
	if err := s.grievanceExists(ctx, grievanceID); err != nil {
		return nil, err
	}

	comment := models.Comment{Body: body, GrievanceID: grievanceID, AuthorID: caller.UserID}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, apperr.FromStore(err, "comment")
	}
	if err := s.db.WithContext(ctx).Preload("Author").First(&comment, comment.ID).Error; err != nil {
		return nil, apperr.FromStore(err, "comment")
	}
	return &comment, nil
}

// UpdateComment edits a comment body (author or admin).
func (s *Service) UpdateComment(ctx context.Context, caller *models.Caller, id int, body string) (*models.Comment, error) {
	if caller == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.InvalidInput("comment body is required")
	}

	var comment models.Comment
	if err := s.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, apperr.FromStore(err, "comment")
	}
	if !caller.Owns(comment.AuthorID) && !caller.IsAdmin() {
		return nil, apperr.Forbidden("you can only edit your own comments")
	}

	if err := s.db.WithContext(ctx).Model(&comment).Update("body", body).Error; err != nil {
		return nil, apperr.Internal(err, "failed to update comment")
	}
	if err := s.db.WithContext(ctx).Preload("Author").First(&comment, id).Error; err != nil {
		return nil, apperr.FromStore(err, "comment")
	}
	return &comment, nil
}

// DeleteComment removes a comment and its votes (author or admin).
func (s *Service) DeleteComment(ctx context.Context, caller *models.Caller, id int) error {
	if caller == nil {
		return apperr.Unauthorized("authentication required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.First(&comment, id).Error; err != nil {
			return apperr.FromStore(err, "comment")
		}
		if !caller.Owns(comment.AuthorID) && !caller.IsAdmin() {
			return apperr.Forbidden("you can only delete your own comments")
		}
		if err := tx.Where("comment_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return apperr.Internal(err, "failed to delete comment votes")
		}
		if err := tx.Delete(&comment).Error; err != nil {
			return apperr.Internal(err, "failed to delete comment")
		}
		return nil
	})
}
