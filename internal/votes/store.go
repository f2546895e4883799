package votes

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

// Target identifies what a vote applies to. Exactly one id is set.
type Target struct {
	GrievanceID int
	CommentID   int
}

func GrievanceTarget(id int) Target { return Target{GrievanceID: id} }

func CommentTarget(id int) Target { return Target{CommentID: id} }

// Validate enforces the exactly-one-target rule.
func (t Target) Validate() error {
	if (t.GrievanceID > 0) == (t.CommentID > 0) {
		return apperr.InvalidInput("vote target must be exactly one of grievance or comment")
	}
	return nil
}

func (t Target) IsComment() bool { return t.CommentID > 0 }

func (t Target) column() string {
	if t.IsComment() {
		return "comment_id"
	}
	return "grievance_id"
}

func (t Target) id() int {
	if t.IsComment() {
		return t.CommentID
	}
	return t.GrievanceID
}

// Counts are the reconciled counters for a target. Comments only use Up.
type Counts struct {
	Up   int `gorm:"column:up" json:"upvotes"`
	Down int `gorm:"column:down" json:"downvotes"`
}

// Store reads and writes user_votes rows. Every method takes the *gorm.DB to
// run on so callers can compose them inside one transaction.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Get returns the user's vote on target, or nil when there is none.
func (s *Store) Get(ctx context.Context, db *gorm.DB, userID int, target Target) (*models.Vote, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	var vote models.Vote
	err := db.WithContext(ctx).
		Where("user_id = ? AND "+target.column()+" = ?", userID, target.id()).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load vote")
	}
	return &vote, nil
}

// Upsert inserts the vote or overwrites the kind of an existing one. A
// concurrent insert for the same (user, target) resolves to an update through
// the unique index instead of a second row.
func (s *Store) Upsert(ctx context.Context, db *gorm.DB, userID int, target Target, kind models.VoteKind) error {
	if err := target.Validate(); err != nil {
		return err
	}
	vote := models.Vote{UserID: userID, Kind: kind}
	if target.IsComment() {
		vote.CommentID = &target.CommentID
	} else {
		vote.GrievanceID = &target.GrievanceID
	}

	// The nested transaction becomes a savepoint when db is already in one, so
	// a failed insert leaves the outer transaction usable for the fallback.
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: target.column()}},
			DoUpdates: clause.AssignmentColumns([]string{"vote_type", "updated_at"}),
		}).Create(&vote).Error
	})
	if err == nil {
		return nil
	}
	if !apperr.IsUniqueViolation(err) {
		return apperr.Internal(err, "failed to save vote")
	}

	// Lost an insert race the conflict clause did not cover; the row exists now.
	err = db.WithContext(ctx).Model(&models.Vote{}).
		Where("user_id = ? AND "+target.column()+" = ?", userID, target.id()).
		Update("vote_type", kind).Error
	if err != nil {
		return apperr.Internal(err, "failed to update vote")
	}
	return nil
}

// Remove deletes the user's vote on target. Missing votes are not an error.
func (s *Store) Remove(ctx context.Context, db *gorm.DB, userID int, target Target) error {
	if err := target.Validate(); err != nil {
		return err
	}
	err := db.WithContext(ctx).
		Where("user_id = ? AND "+target.column()+" = ?", userID, target.id()).
		Delete(&models.Vote{}).Error
	if err != nil {
		return apperr.Internal(err, "failed to remove vote")
	}
	return nil
}

// Count tallies the vote rows for target by kind.
func (s *Store) Count(ctx context.Context, db *gorm.DB, target Target) (Counts, error) {
	if err := target.Validate(); err != nil {
		return Counts{}, err
	}
	var counts Counts
	err := db.WithContext(ctx).Model(&models.Vote{}).
		Select("COUNT(*) FILTER (WHERE vote_type = ?) AS up, COUNT(*) FILTER (WHERE vote_type = ?) AS down",
			models.VoteUp, models.VoteDown).
		Where(target.column()+" = ?", target.id()).
		Scan(&counts).Error
	if err != nil {
		return Counts{}, apperr.Internal(err, "failed to count votes")
	}
	return counts, nil
}

// Recount writes the current tallies onto the target's denormalized counters.
// It is idempotent.
func (s *Store) Recount(ctx context.Context, db *gorm.DB, target Target) (Counts, error) {
	counts, err := s.Count(ctx, db, target)
	if err != nil {
		return Counts{}, err
	}

	var res *gorm.DB
	if target.IsComment() {
		res = db.WithContext(ctx).Model(&models.Comment{}).
			Where("id = ?", target.CommentID).
			UpdateColumn("upvotes", counts.Up)
	} else {
		res = db.WithContext(ctx).Model(&models.Grievance{}).
			Where("id = ?", target.GrievanceID).
			UpdateColumns(map[string]any{"upvotes": counts.Up, "downvotes": counts.Down})
	}
	if res.Error != nil {
		return Counts{}, apperr.Internal(res.Error, "failed to store vote counts")
	}
	if res.RowsAffected == 0 {
		if target.IsComment() {
			return Counts{}, apperr.NotFound("comment not found")
		}
		return Counts{}, apperr.NotFound("grievance not found")
	}
	return counts, nil
}

// KindsByGrievance returns userID's vote kind for each of the given grievances.
func (s *Store) KindsByGrievance(ctx context.Context, db *gorm.DB, userID int, ids []int) (map[int]models.VoteKind, error) {
	return s.kindsBy(ctx, db, "grievance_id", userID, ids)
}

// KindsByComment returns userID's vote kind for each of the given comments.
func (s *Store) KindsByComment(ctx context.Context, db *gorm.DB, userID int, ids []int) (map[int]models.VoteKind, error) {
	return s.kindsBy(ctx, db, "comment_id", userID, ids)
}

func (s *Store) kindsBy(ctx context.Context, db *gorm.DB, column string, userID int, ids []int) (map[int]models.VoteKind, error) {
	out := make(map[int]models.VoteKind, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		TargetID int             `gorm:"column:target_id"`
		Kind     models.VoteKind `gorm:"column:vote_type"`
	}
	err := db.WithContext(ctx).Model(&models.Vote{}).
		Select(column+" AS target_id, vote_type").
		Where("user_id = ? AND "+column+" IN ?", userID, ids).
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to load user votes")
	}
	for _, row := range rows {
		out[row.TargetID] = row.Kind
	}
	return out, nil
}
