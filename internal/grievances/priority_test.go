package grievances

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

var refNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func grievanceAged(up, down int, status models.Status, age time.Duration) models.Grievance {
	return models.Grievance{Upvotes: up, Downvotes: down, Status: status, CreatedAt: refNow.Add(-age)}
}

func TestPriorityScoreUrgentTwoDaysOld(t *testing.T) {
	g := grievanceAged(5, 2, models.StatusUrgent, 48*time.Hour)
	assert.Equal(t, 5.8, PriorityScore(g, refNow))
}

func TestPriorityScoreNegativeNetClampsToZero(t *testing.T) {
	for _, age := range []time.Duration{0, time.Hour, 24 * time.Hour, 30 * 24 * time.Hour} {
		g := grievanceAged(1, 3, models.StatusUrgent, age)
		assert.Zero(t, PriorityScore(g, refNow), "age %s", age)
	}
	assert.Zero(t, PriorityScore(grievanceAged(2, 2, models.StatusPending, 0), refNow))
}

func TestPriorityScoreAgePenaltyUsesWholeDays(t *testing.T) {
	assert.Equal(t, 3.0, PriorityScore(grievanceAged(3, 0, models.StatusPending, 23*time.Hour), refNow))
	assert.Equal(t, 2.9, PriorityScore(grievanceAged(3, 0, models.StatusPending, 25*time.Hour), refNow))
	assert.Equal(t, 2.7, PriorityScore(grievanceAged(3, 0, models.StatusPending, 72*time.Hour), refNow))
}

func TestPriorityScoreAgeCanZeroOutPositiveNet(t *testing.T) {
	g := grievanceAged(1, 0, models.StatusPending, 15*24*time.Hour)
	assert.Zero(t, PriorityScore(g, refNow))
}

func TestPriorityScoreFutureTimestampHasNoPenalty(t *testing.T) {
	g := grievanceAged(4, 0, models.StatusPending, -5*time.Hour)
	assert.Equal(t, 4.0, PriorityScore(g, refNow))
}

func TestScorePriorityAnnotatesEachGrievance(t *testing.T) {
	gs := []models.Grievance{
		{ID: 1, Upvotes: 1, Status: models.StatusPending, CreatedAt: refNow},
		{ID: 2, Upvotes: 3, Status: models.StatusUrgent, CreatedAt: refNow},
		{ID: 3, Downvotes: 4, Status: models.StatusUrgent, CreatedAt: refNow},
	}
	ScorePriority(gs, refNow)

	scores := make([]float64, len(gs))
	for i, g := range gs {
		require.NotNil(t, g.PriorityScore)
		scores[i] = *g.PriorityScore
	}
	assert.Equal(t, []float64{1, 6, 0}, scores)
	assert.Equal(t, []int{1, 2, 3}, []int{gs[0].ID, gs[1].ID, gs[2].ID}, "order is left to the query")
}
