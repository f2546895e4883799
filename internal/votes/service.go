// Package votes implements one-vote-per-user voting on grievances and comments
// and keeps the denormalized counters in step with the vote rows.
package votes

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/logger"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

// Result is what a caller observes right after voting.
type Result struct {
	Upvotes   int              `json:"upvotes"`
	Downvotes int              `json:"downvotes"`
	UserVote  *models.VoteKind `json:"userVote"`
}

type Service struct {
	db    *gorm.DB
	store *Store
	logg  logrus.FieldLogger
}

func NewService(db *gorm.DB, store *Store, logg logrus.FieldLogger) *Service {
	return &Service{db: db, store: store, logg: logg}
}

// VoteGrievance applies the toggle protocol to a grievance vote.
func (s *Service) VoteGrievance(ctx context.Context, userID, grievanceID int, kind models.VoteKind) (*Result, error) {
	return s.Toggle(ctx, userID, GrievanceTarget(grievanceID), kind)
}

// VoteComment applies the toggle protocol to a comment vote. Comments only
// carry upvotes, so a down vote is rejected.
func (s *Service) VoteComment(ctx context.Context, userID, commentID int, kind models.VoteKind) (*Result, error) {
	if kind != models.VoteUp {
		return nil, apperr.InvalidInput("comments only accept %q votes", models.VoteUp)
	}
	return s.Toggle(ctx, userID, CommentTarget(commentID), kind)
}

// Toggle turns one vote click into an insert, flip or removal of the user's
// vote row and recounts the target, all inside one transaction:
// no vote -> kind; same kind -> removed; other kind -> flipped to kind.
func (s *Service) Toggle(ctx context.Context, userID int, target Target, kind models.VoteKind) (*Result, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if _, err := models.ParseVoteKind(string(kind)); err != nil {
		return nil, apperr.InvalidInput("%s", err.Error())
	}

	var result Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureTarget(ctx, tx, target); err != nil {
			return err
		}

		existing, err := s.store.Get(ctx, tx, userID, target)
		if err != nil {
			return err
		}

		if existing != nil && existing.Kind == kind {
			if err := s.store.Remove(ctx, tx, userID, target); err != nil {
				return err
			}
			result.UserVote = nil
		} else {
			if err := s.store.Upsert(ctx, tx, userID, target, kind); err != nil {
				return err
			}
			k := kind
			result.UserVote = &k
		}

		counts, err := s.store.Recount(ctx, tx, target)
		if err != nil {
			return err
		}
		result.Upvotes = counts.Up
		if !target.IsComment() {
			result.Downvotes = counts.Down
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			logger.LogError(s.logg, "votes", "Toggle", map[string]any{
				"userId": userID, "grievanceId": target.GrievanceID, "commentId": target.CommentID,
			}, err)
		}
		return nil, err
	}
	return &result, nil
}

// RecountGrievance rewrites a grievance's counters from its vote rows. Admins
// use it after counters were edited outside the vote path.
func (s *Service) RecountGrievance(ctx context.Context, grievanceID int) (*Counts, error) {
	target := GrievanceTarget(grievanceID)
	var counts Counts
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureTarget(ctx, tx, target); err != nil {
			return err
		}
		var err error
		counts, err = s.store.Recount(ctx, tx, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &counts, nil
}

func (s *Service) ensureTarget(ctx context.Context, tx *gorm.DB, target Target) error {
	var err error
	if target.IsComment() {
		err = tx.WithContext(ctx).Select("id").Take(&models.Comment{}, target.CommentID).Error
	} else {
		err = tx.WithContext(ctx).Select("id").Take(&models.Grievance{}, target.GrievanceID).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if target.IsComment() {
			return apperr.NotFound("comment not found")
		}
		return apperr.NotFound("grievance not found")
	}
	if err != nil {
		return apperr.Internal(err, "failed to load vote target")
	}
	return nil
}
