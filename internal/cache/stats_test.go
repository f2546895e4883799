package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

func setupTestRedis(t *testing.T) (*StatsCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	c, err := Connect(context.Background(), "redis://"+s.Addr(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func sampleStats(municipality string, pending int64) *models.StatusStats {
	return &models.StatusStats{
		Municipality: municipality,
		Counts: map[models.Status]int64{
			models.StatusPending:  pending,
			models.StatusResolved: 1,
		},
		Total: pending + 1,
	}
}

func TestSetAndGet(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "springfield")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, sampleStats("springfield", 4)))
	got, ok, err := c.Get(ctx, "springfield")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleStats("springfield", 4), got)
}

func TestAllMunicipalitiesKey(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, sampleStats("", 9)))
	assert.True(t, s.Exists("stats:all"))

	got, ok, err := c.Get(ctx, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 10, got.Total)
}

func TestEntriesExpire(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, sampleStats("springfield", 1)))
	s.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "springfield")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, sampleStats("springfield", 1)))
	require.NoError(t, c.Set(ctx, sampleStats("shelbyville", 2)))
	require.NoError(t, c.Set(ctx, sampleStats("", 3)))

	require.NoError(t, c.Invalidate(ctx, "springfield", ""))

	_, ok, _ := c.Get(ctx, "springfield")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "shelbyville")
	assert.True(t, ok)
}

func TestCorruptEntry(t *testing.T) {
	c, s := setupTestRedis(t)
	require.NoError(t, s.Set("stats:springfield", "{not json"))

	_, ok, err := c.Get(context.Background(), "springfield")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDisabledCacheIsNoop(t *testing.T) {
	var c *StatsCache
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, sampleStats("springfield", 1)))
	_, ok, err := c.Get(ctx, "springfield")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx, "springfield"))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())

	empty := New(nil, time.Minute)
	_, ok, err = empty.Get(ctx, "springfield")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-url://", time.Minute)
	assert.Error(t, err)
}
