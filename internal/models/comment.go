package models

import "time"

type Comment struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	GrievanceID int       `gorm:"index;not null" json:"grievanceId"`
	AuthorID    int       `gorm:"index;not null" json:"authorId"`
	Author      User      `gorm:"foreignKey:AuthorID" json:"author"`
	Upvotes     int       `gorm:"not null;default:0" json:"upvotes"` // reconciler owned
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	UserVote *VoteKind `gorm:"-" json:"userVote,omitempty"`
}

type CommentRequest struct {
	Body string `json:"body" binding:"required,max=2000"`
}
