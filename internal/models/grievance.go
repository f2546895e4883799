package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a grievance.
type Status string

const (
	StatusPending    Status = "pending"
	StatusUrgent     Status = "urgent"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{StatusPending, StatusUrgent, StatusInProgress, StatusResolved, StatusClosed}

// statusTransitions is the allowed transition graph. Every state may currently
// move to every other state, including reopening resolved or closed grievances.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusUrgent, StatusInProgress, StatusResolved, StatusClosed},
	StatusUrgent:     {StatusPending, StatusInProgress, StatusResolved, StatusClosed},
	StatusInProgress: {StatusPending, StatusUrgent, StatusResolved, StatusClosed},
	StatusResolved:   {StatusPending, StatusUrgent, StatusInProgress, StatusClosed},
	StatusClosed:     {StatusPending, StatusUrgent, StatusInProgress, StatusResolved},
}

// ParseStatus normalizes and validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := statusTransitions[st]; !ok {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// CanTransition reports whether a grievance may move from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		_, ok := statusTransitions[from]
		return ok
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsInitialStatus reports whether an author may create a grievance in st.
func IsInitialStatus(st Status) bool {
	return st == StatusPending || st == StatusUrgent
}

type Grievance struct {
	ID           int      `gorm:"primaryKey" json:"id"`
	Title        string   `gorm:"not null" json:"title"`
	Description  string   `gorm:"type:text;not null" json:"description"`
	Category     string   `gorm:"index;not null" json:"category"`
	Municipality string   `gorm:"index;not null" json:"municipality"`
	Location     string   `json:"location"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	AuthorID     int      `gorm:"index;not null" json:"authorId"`
	Author       User     `gorm:"foreignKey:AuthorID" json:"author"`
	Status       Status   `gorm:"type:varchar(16);index;not null;default:pending" json:"status"`

	// Maintained by the vote reconciler only.
	Upvotes   int `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int `gorm:"not null;default:0" json:"downvotes"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	UserVote      *VoteKind `gorm:"-" json:"userVote,omitempty"`
	PriorityScore *float64  `gorm:"-" json:"priorityScore,omitempty"`
}

// NetVotes is upvotes minus downvotes.
func (g Grievance) NetVotes() int {
	return g.Upvotes - g.Downvotes
}

type CreateGrievanceRequest struct {
	Title        string   `json:"title" binding:"required,max=200"`
	Description  string   `json:"description" binding:"required"`
	Category     string   `json:"category" binding:"required"`
	Municipality string   `json:"municipality"`
	Location     string   `json:"location"`
	Latitude     *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude    *float64 `json:"longitude" binding:"omitempty,longitude"`
	ImageURL     string   `json:"imageUrl" binding:"omitempty,url"`
	Status       string   `json:"status"`
}

// UpdateGrievanceRequest carries a partial update; nil fields are left unchanged.
type UpdateGrievanceRequest struct {
	Title       *string  `json:"title" binding:"omitempty,max=200"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Location    *string  `json:"location"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,longitude"`
	ImageURL    *string  `json:"imageUrl" binding:"omitempty,url"`
	Status      *string  `json:"status"`
}

// HasContent reports whether the update touches author-owned fields.
func (r UpdateGrievanceRequest) HasContent() bool {
	return r.Title != nil || r.Description != nil || r.Category != nil || r.Location != nil ||
		r.Latitude != nil || r.Longitude != nil || r.ImageURL != nil
}
