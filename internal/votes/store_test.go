package votes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
	"github.com/emilythestrangee/grievance-portal/backend/internal/testutil"
)

func TestTargetValidate(t *testing.T) {
	assert.NoError(t, GrievanceTarget(3).Validate())
	assert.NoError(t, CommentTarget(9).Validate())

	err := Target{}.Validate()
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	err = Target{GrievanceID: 1, CommentID: 2}.Validate()
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestUpsertThenGet(t *testing.T) {
	db := requireDB(t).DB
	ctx := context.Background()
	store := NewStore()

	user := testutil.CreateUser(t, db, "alice", "springfield", models.RoleCitizen)
	g := testutil.CreateGrievance(t, db, models.Grievance{AuthorID: user.ID})
	target := GrievanceTarget(g.ID)

	vote, err := store.Get(ctx, db, user.ID, target)
	require.NoError(t, err)
	assert.Nil(t, vote)

	require.NoError(t, store.Upsert(ctx, db, user.ID, target, models.VoteUp))
	vote, err = store.Get(ctx, db, user.ID, target)
	require.NoError(t, err)
	require.NotNil(t, vote)
	assert.Equal(t, models.VoteUp, vote.Kind)

	// overwriting keeps a single row
	require.NoError(t, store.Upsert(ctx, db, user.ID, target, models.VoteDown))
	vote, err = store.Get(ctx, db, user.ID, target)
	require.NoError(t, err)
	assert.Equal(t, models.VoteDown, vote.Kind)

	var rows int64
	require.NoError(t, db.Model(&models.Vote{}).Where("user_id = ?", user.ID).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestRemoveIsNoOpWhenAbsent(t *testing.T) {
	db := requireDB(t).DB
	ctx := context.Background()
	store := NewStore()

	user := testutil.CreateUser(t, db, "bob", "springfield", models.RoleCitizen)
	g := testutil.CreateGrievance(t, db, models.Grievance{AuthorID: user.ID})

	assert.NoError(t, store.Remove(ctx, db, user.ID, GrievanceTarget(g.ID)))

	require.NoError(t, store.Upsert(ctx, db, user.ID, GrievanceTarget(g.ID), models.VoteUp))
	require.NoError(t, store.Remove(ctx, db, user.ID, GrievanceTarget(g.ID)))
	vote, err := store.Get(ctx, db, user.ID, GrievanceTarget(g.ID))
	require.NoError(t, err)
	assert.Nil(t, vote)
}

func TestGrievanceAndCommentVotesAreIndependent(t *testing.T) {
	db := requireDB(t).DB
	ctx := context.Background()
	store := NewStore()

	user := testutil.CreateUser(t, db, "carol", "springfield", models.RoleCitizen)
	g := testutil.CreateGrievance(t, db, models.Grievance{AuthorID: user.ID})
	c := testutil.CreateComment(t, db, g.ID, user.ID, "same here")

	require.NoError(t, store.Upsert(ctx, db, user.ID, GrievanceTarget(g.ID), models.VoteDown))
	require.NoError(t, store.Upsert(ctx, db, user.ID, CommentTarget(c.ID), models.VoteUp))

	gv, err := store.Get(ctx, db, user.ID, GrievanceTarget(g.ID))
	require.NoError(t, err)
	cv, err := store.Get(ctx, db, user.ID, CommentTarget(c.ID))
	require.NoError(t, err)
	assert.Equal(t, models.VoteDown, gv.Kind)
	assert.Equal(t, models.VoteUp, cv.Kind)
}

func TestCheckConstraintRejectsBothTargets(t *testing.T) {
	db := requireDB(t).DB

	user := testutil.CreateUser(t, db, "dave", "springfield", models.RoleCitizen)
	g := testutil.CreateGrievance(t, db, models.Grievance{AuthorID: user.ID})
	c := testutil.CreateComment(t, db, g.ID, user.ID, "hello")

	err := db.Create(&models.Vote{UserID: user.ID, GrievanceID: &g.ID, CommentID: &c.ID, Kind: models.VoteUp}).Error
	assert.Error(t, err)

	err = db.Create(&models.Vote{UserID: user.ID, Kind: models.VoteUp}).Error
	assert.Error(t, err)
}

func TestRecountIsIdempotent(t *testing.T) {
	db := requireDB(t).DB
	ctx := context.Background()
	store := NewStore()

	author := testutil.CreateUser(t, db, "erin", "springfield", models.RoleCitizen)
	g := testutil.CreateGrievance(t, db, models.Grievance{AuthorID: author.ID})
	for i, kind := range []models.VoteKind{models.VoteUp, models.VoteUp, models.VoteDown} {
		u := testutil.CreateUser(t, db, "voter"+string(rune('a'+i)), "springfield", models.RoleCitizen)
		require.NoError(t, store.Upsert(ctx, db, u.ID, GrievanceTarget(g.ID), kind))
	}

	first, err := store.Recount(ctx, db, GrievanceTarget(g.ID))
	require.NoError(t, err)
	second, err := store.Recount(ctx, db, GrievanceTarget(g.ID))
	require.NoError(t, err)
	assert.Equal(t, Counts{Up: 2, Down: 1}, first)
	assert.Equal(t, first, second)

	var stored models.Grievance
	require.NoError(t, db.First(&stored, g.ID).Error)
	assert.Equal(t, 2, stored.Upvotes)
	assert.Equal(t, 1, stored.Downvotes)
}

func TestRecountMissingTarget(t *testing.T) {
	db := requireDB(t).DB
	_, err := NewStore().Recount(context.Background(), db, GrievanceTarget(424242))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestKindsByGrievance(t *testing.T) {
	db := requireDB(t).DB
	ctx := context.Background()
	store := NewStore()

	user := testutil.CreateUser(t, db, "frank", "springfield", models.RoleCitizen)
	g1 := testutil.CreateGrievance(t, db, models.Grievance{AuthorID: user.ID})
	g2 := testutil.CreateGrievance(t, db, models.Grievance{AuthorID: user.ID})
	g3 := testutil.CreateGrievance(t, db, models.Grievance{AuthorID: user.ID})
	require.NoError(t, store.Upsert(ctx, db, user.ID, GrievanceTarget(g1.ID), models.VoteUp))
	require.NoError(t, store.Upsert(ctx, db, user.ID, GrievanceTarget(g2.ID), models.VoteDown))

	kinds, err := store.KindsByGrievance(ctx, db, user.ID, []int{g1.ID, g2.ID, g3.ID})
	require.NoError(t, err)
	assert.Equal(t, map[int]models.VoteKind{g1.ID: models.VoteUp, g2.ID: models.VoteDown}, kinds)

	empty, err := store.KindsByGrievance(ctx, db, user.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
