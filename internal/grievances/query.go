package grievances

import (
	"strings"

	"gorm.io/gorm"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// filterAll disables a filter field, same as leaving it empty.
	filterAll = "all"
)

type SortKey string

const (
	SortNewest      SortKey = "newest"
	SortOldest      SortKey = "oldest"
	SortUpvotesHigh SortKey = "upvotes-high"
	SortUpvotesLow  SortKey = "upvotes-low"
	SortUrgent      SortKey = "urgent"
)

var sortOrders = map[SortKey]string{
	SortNewest:      "created_at DESC",
	SortOldest:      "created_at ASC",
	SortUpvotesHigh: "(upvotes - downvotes) DESC",
	SortUpvotesLow:  "(upvotes - downvotes) ASC",
	SortUrgent:      "CASE WHEN status = 'urgent' THEN 0 ELSE 1 END, created_at DESC",
}

// Filter selects and orders grievances. Empty or "all" fields do not constrain.
type Filter struct {
	Category     string  `form:"category"`
	Municipality string  `form:"municipality"`
	Status       string  `form:"status"` // single status or comma separated list
	Search       string  `form:"search"`
	SortBy       SortKey `form:"sortBy"`
	Limit        int     `form:"limit"`
	Offset       int     `form:"offset"`
}

// Page is one slice of a filtered listing plus the unpaginated match count.
type Page struct {
	Grievances []models.Grievance `json:"grievances"`
	Total      int64              `json:"total"`
}

// Normalize trims values, applies defaults and validates sort, status and paging.
func (f Filter) Normalize() (Filter, error) {
	f.Category = strings.ToLower(normalizeAll(f.Category))
	f.Municipality = normalizeAll(f.Municipality)
	f.Status = normalizeAll(f.Status)
	f.Search = strings.TrimSpace(f.Search)

	if f.SortBy == "" {
		f.SortBy = SortNewest
	}
	if _, ok := sortOrders[f.SortBy]; !ok {
		return f, apperr.InvalidInput("unknown sortBy %q", f.SortBy)
	}
	if _, err := f.statuses(); err != nil {
		return f, err
	}

	if f.Limit < 0 || f.Offset < 0 {
		return f, apperr.InvalidInput("limit and offset must not be negative")
	}
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f, nil
}

func (f Filter) statuses() ([]models.Status, error) {
	if f.Status == "" {
		return nil, nil
	}
	var out []models.Status
	for _, raw := range strings.Split(f.Status, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		st, err := models.ParseStatus(raw)
		if err != nil {
			return nil, apperr.InvalidInput("%s", err.Error())
		}
		out = append(out, st)
	}
	return out, nil
}

func normalizeAll(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, filterAll) {
		return ""
	}
	return v
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// applyFilter adds the WHERE predicate shared by the listing and its count.
// f must already be normalized.
func applyFilter(q *gorm.DB, f Filter) *gorm.DB {
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Municipality != "" {
		q = q.Where("municipality = ?", f.Municipality)
	}
	if statuses, _ := f.statuses(); len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if f.Search != "" {
		pattern := "%" + likeEscaper.Replace(f.Search) + "%"
		q = q.Where("(title ILIKE ? OR description ILIKE ? OR location ILIKE ?)", pattern, pattern, pattern)
	}
	return q
}

func orderClause(sort SortKey) string {
	if order, ok := sortOrders[sort]; ok {
		return order
	}
	return sortOrders[SortNewest]
}
