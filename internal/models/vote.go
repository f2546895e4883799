package models

import (
	"fmt"
	"time"
)

// VoteKind is the direction of a single vote.
type VoteKind string

const (
	VoteUp   VoteKind = "up"
	VoteDown VoteKind = "down"
)

// ParseVoteKind validates a client supplied vote type.
func ParseVoteKind(s string) (VoteKind, error) {
	switch VoteKind(s) {
	case VoteUp, VoteDown:
		return VoteKind(s), nil
	default:
		return "", fmt.Errorf("vote type must be %q or %q, got %q", VoteUp, VoteDown, s)
	}
}

// Vote tracks one user's vote on either a grievance or a comment, never both.
type Vote struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	UserID      int       `gorm:"not null" json:"userId"`
	GrievanceID *int      `json:"grievanceId,omitempty"`
	CommentID   *int      `json:"commentId,omitempty"`
	Kind        VoteKind  `gorm:"column:vote_type;type:varchar(8);not null" json:"voteType"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Vote) TableName() string {
	return "user_votes"
}

type VoteRequest struct {
	VoteType string `json:"voteType" binding:"required"`
}
