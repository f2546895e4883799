package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVoteKind(t *testing.T) {
	kind, err := ParseVoteKind("up")
	require.NoError(t, err)
	assert.Equal(t, VoteUp, kind)

	kind, err = ParseVoteKind("down")
	require.NoError(t, err)
	assert.Equal(t, VoteDown, kind)

	for _, bad := range []string{"", "UP", "sideways", "1"} {
		_, err := ParseVoteKind(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" In-Progress ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, st)

	_, err = ParseStatus("archived")
	assert.Error(t, err)
}

func TestCanTransitionIsPermissive(t *testing.T) {
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			assert.True(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	// reopening after resolution stays allowed
	assert.True(t, CanTransition(StatusResolved, StatusPending))
	assert.True(t, CanTransition(StatusClosed, StatusPending))

	assert.False(t, CanTransition(Status("archived"), StatusPending))
	assert.False(t, CanTransition(StatusPending, Status("archived")))
}

func TestIsInitialStatus(t *testing.T) {
	assert.True(t, IsInitialStatus(StatusPending))
	assert.True(t, IsInitialStatus(StatusUrgent))
	assert.False(t, IsInitialStatus(StatusInProgress))
	assert.False(t, IsInitialStatus(StatusResolved))
	assert.False(t, IsInitialStatus(StatusClosed))
}

func TestUpdateGrievanceRequestHasContent(t *testing.T) {
	status := "resolved"
	assert.False(t, UpdateGrievanceRequest{Status: &status}.HasContent())

	title := "Pothole"
	assert.True(t, UpdateGrievanceRequest{Title: &title, Status: &status}.HasContent())
}

func TestUserIsAdmin(t *testing.T) {
	assert.True(t, User{Role: RoleAdmin}.IsAdmin())
	assert.False(t, User{Role: RoleCitizen}.IsAdmin())
}

func TestGrievanceJSONOmitsAuthorPhone(t *testing.T) {
	g := Grievance{ID: 1, AuthorID: 7, Author: User{ID: 7, Username: "ann", Phone: "+15550001111"}}
	raw, err := json.Marshal(g)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "+15550001111")
	assert.NotContains(t, string(raw), `"phone"`)
}

func TestParseAssignmentStatus(t *testing.T) {
	st, err := ParseAssignmentStatus("escalated")
	require.NoError(t, err)
	assert.Equal(t, AssignmentEscalated, st)

	_, err = ParseAssignmentStatus("done")
	assert.Error(t, err)
}
