package models

// StatusStats counts grievances per status for one municipality ("" = all).
type StatusStats struct {
	Municipality string           `json:"municipality,omitempty"`
	Counts       map[Status]int64 `json:"counts"`
	Total        int64            `json:"total"`
}
