package models

import (
	"time"

	"github.com/lib/pq"
)

// Department is a municipal unit that grievances get routed to.
type Department struct {
	ID           int            `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"not null;uniqueIndex:ux_departments_name_municipality" json:"name"`
	Municipality string         `gorm:"not null;uniqueIndex:ux_departments_name_municipality" json:"municipality"`
	Categories   pq.StringArray `gorm:"type:text[]" json:"categories"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type DepartmentRequest struct {
	Name         string   `json:"name" binding:"required"`
	Municipality string   `json:"municipality"`
	Categories   []string `json:"categories"`
}
