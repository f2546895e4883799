package grievances

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

var (
	urgentMultiplier = decimal.NewFromInt(2)
	dailyAgePenalty  = decimal.New(1, -1) // 0.1 per full day
)

// PriorityScore ranks a grievance for admin triage:
//
//	max(0, (upvotes-downvotes) * (2 if urgent else 1) - floor(ageHours/24) * 0.1)
//
// Every non-positive result clamps to 0, so grievances with non-positive net
// votes are indistinguishable regardless of urgency or age.
func PriorityScore(g models.Grievance, now time.Time) float64 {
	score := decimal.NewFromInt(int64(g.NetVotes()))
	if g.Status == models.StatusUrgent {
		score = score.Mul(urgentMultiplier)
	}

	ageHours := now.Sub(g.CreatedAt).Hours()
	if ageHours > 0 {
		days := decimal.NewFromFloat(math.Floor(ageHours / 24))
		score = score.Sub(days.Mul(dailyAgePenalty))
	}

	if !score.IsPositive() {
		return 0
	}
	f, _ := score.Float64()
	return f
}

// priorityOrder sorts rows by the same formula as PriorityScore, evaluated by
// Postgres so ranking and paging cover every match. Ties go newest first.
func priorityOrder(now time.Time) clause.OrderBy {
	return clause.OrderBy{Expression: clause.Expr{
		SQL: `GREATEST(0, (upvotes - downvotes) * CASE WHEN status = 'urgent' THEN 2 ELSE 1 END` +
			` - FLOOR(GREATEST(EXTRACT(EPOCH FROM (?::timestamptz - created_at)), 0) / 86400) * 0.1) DESC,` +
			` created_at DESC, id DESC`,
		Vars:               []any{now},
		WithoutParentheses: true,
	}}
}

// ScorePriority sets PriorityScore on each grievance.
func ScorePriority(gs []models.Grievance, now time.Time) {
	for i := range gs {
		score := PriorityScore(gs[i], now)
		gs[i].PriorityScore = &score
	}
}
