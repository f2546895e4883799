package models

import (
	"fmt"
	"time"
)

type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentInProgress AssignmentStatus = "in-progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentEscalated  AssignmentStatus = "escalated"
)

func ParseAssignmentStatus(s string) (AssignmentStatus, error) {
	switch st := AssignmentStatus(s); st {
	case AssignmentAssigned, AssignmentInProgress, AssignmentCompleted, AssignmentEscalated:
		return st, nil
	default:
		return "", fmt.Errorf("unknown assignment status %q", s)
	}
}

// Assignment links a grievance to the department (and optionally the admin) handling it.
type Assignment struct {
	ID           int              `gorm:"primaryKey" json:"id"`
	GrievanceID  int              `gorm:"index;not null" json:"grievanceId"`
	Grievance    *Grievance       `gorm:"foreignKey:GrievanceID" json:"grievance,omitempty"`
	DepartmentID int              `gorm:"index;not null" json:"departmentId"`
	Department   *Department      `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	AssigneeID   *int             `json:"assigneeId,omitempty"`
	Notes        string           `gorm:"type:text" json:"notes,omitempty"`
	Status       AssignmentStatus `gorm:"type:varchar(16);not null;default:assigned" json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

type CreateAssignmentRequest struct {
	DepartmentID *int   `json:"departmentId"`
	AssigneeID   *int   `json:"assigneeId"`
	Notes        string `json:"notes"`
}

type UpdateAssignmentRequest struct {
	Status     *string `json:"status"`
	AssigneeID *int    `json:"assigneeId"`
	Notes      *string `json:"notes"`
}
