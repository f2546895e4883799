package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/assignments"
	"github.com/emilythestrangee/grievance-portal/backend/internal/grievances"
	"github.com/emilythestrangee/grievance-portal/backend/internal/logger"
	"github.com/emilythestrangee/grievance-portal/backend/internal/middleware"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
	"github.com/emilythestrangee/grievance-portal/backend/internal/votes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeGrievances embeds the interface so tests only stub what they call.
type fakeGrievances struct {
	GrievanceService

	gotFilter grievances.Filter
	gotCaller *models.Caller
	page      *grievances.Page
	err       error
	grievance *models.Grievance
	gotUpdate models.UpdateGrievanceRequest
}

func (f *fakeGrievances) List(_ context.Context, filter grievances.Filter, caller *models.Caller) (*grievances.Page, error) {
	f.gotFilter, f.gotCaller = filter, caller
	if _, err := filter.Normalize(); err != nil {
		return nil, err
	}
	return f.page, f.err
}

func (f *fakeGrievances) AdminQueue(_ context.Context, filter grievances.Filter, caller *models.Caller) (*grievances.Page, error) {
	f.gotFilter, f.gotCaller = filter, caller
	return f.page, f.err
}

func (f *fakeGrievances) Get(_ context.Context, id int, caller *models.Caller) (*models.Grievance, error) {
	f.gotCaller = caller
	return f.grievance, f.err
}

func (f *fakeGrievances) Create(_ context.Context, caller *models.Caller, req models.CreateGrievanceRequest) (*models.Grievance, error) {
	f.gotCaller = caller
	return &models.Grievance{ID: 1, Title: req.Title, Status: models.StatusPending}, f.err
}

func (f *fakeGrievances) Update(_ context.Context, caller *models.Caller, id int, req models.UpdateGrievanceRequest) (*models.Grievance, error) {
	f.gotCaller, f.gotUpdate = caller, req
	return f.grievance, f.err
}

func (f *fakeGrievances) Delete(context.Context, *models.Caller, int) error {
	return f.err
}

func (f *fakeGrievances) Stats(_ context.Context, municipality string) (*models.StatusStats, error) {
	return &models.StatusStats{Municipality: municipality, Total: 3}, f.err
}

type fakeVotes struct {
	userID, targetID int
	kind             models.VoteKind
	result           *votes.Result
	err              error
}

func (f *fakeVotes) VoteGrievance(_ context.Context, userID, grievanceID int, kind models.VoteKind) (*votes.Result, error) {
	f.userID, f.targetID, f.kind = userID, grievanceID, kind
	return f.result, f.err
}

func (f *fakeVotes) VoteComment(_ context.Context, userID, commentID int, kind models.VoteKind) (*votes.Result, error) {
	f.userID, f.targetID, f.kind = userID, commentID, kind
	return f.result, f.err
}

func (f *fakeVotes) RecountGrievance(_ context.Context, grievanceID int) (*votes.Counts, error) {
	f.targetID = grievanceID
	if f.err != nil {
		return nil, f.err
	}
	return &votes.Counts{Up: 4, Down: 1}, nil
}

type fakeAssignments struct {
	AssignmentService
	gotReq models.CreateAssignmentRequest
}

func (f *fakeAssignments) Assign(_ context.Context, _ *models.Caller, grievanceID int, req models.CreateAssignmentRequest) (*models.Assignment, error) {
	f.gotReq = req
	return &models.Assignment{ID: 5, GrievanceID: grievanceID, Status: models.AssignmentAssigned}, nil
}

func (f *fakeAssignments) ListAssignments(context.Context, *models.Caller, assignments.Filter) ([]models.Assignment, error) {
	return nil, apperr.InvalidInput(`unknown assignment status "done"`)
}

type fakeAuth struct {
	AuthService
	user *models.User
}

func (f *fakeAuth) Profile(context.Context, int) (*models.User, error) {
	return f.user, nil
}

type testEnv struct {
	router      *gin.Engine
	grievances  *fakeGrievances
	votes       *fakeVotes
	assignments *fakeAssignments
	auth        *fakeAuth
}

// newTestEnv registers routes behind a middleware that authenticates as caller.
func newTestEnv(caller *models.Caller) *testEnv {
	env := &testEnv{
		grievances:  &fakeGrievances{},
		votes:       &fakeVotes{},
		assignments: &fakeAssignments{},
		auth:        &fakeAuth{},
	}
	h := NewHandler(Deps{
		Auth:        env.auth,
		Grievances:  env.grievances,
		Votes:       env.votes,
		Assignments: env.assignments,
		Logger:      logger.New("error", io.Discard),
	})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if caller != nil {
			c.Set(middleware.CallerKey, caller)
		}
		c.Next()
	})
	r.GET("/me", h.Auth.GetMe)
	r.GET("/grievances", h.Grievance.GetGrievances)
	r.GET("/grievances/:id", h.Grievance.GetGrievance)
	r.POST("/grievances", h.Grievance.CreateGrievance)
	r.PATCH("/grievances/:id", h.Grievance.UpdateGrievance)
	r.DELETE("/grievances/:id", h.Grievance.DeleteGrievance)
	r.POST("/grievances/:id/vote", h.Grievance.VoteGrievance)
	r.POST("/comments/:id/vote", h.Comment.VoteComment)
	r.GET("/stats", h.Grievance.GetStats)
	r.GET("/admin/grievances", h.Admin.GetQueue)
	r.POST("/admin/grievances/:id/recount", h.Admin.RecountGrievance)
	r.POST("/admin/grievances/:id/assignments", h.Admin.CreateAssignment)
	r.GET("/admin/assignments", h.Admin.GetAssignments)
	env.router = r
	return env
}

func (env *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

var citizen = &models.Caller{UserID: 7, Role: models.RoleCitizen, Municipality: "springfield"}

func TestGetGrievancesBindsFilter(t *testing.T) {
	env := newTestEnv(citizen)
	up := models.VoteUp
	env.grievances.page = &grievances.Page{
		Grievances: []models.Grievance{{ID: 3, Title: "Pothole", Upvotes: 2, UserVote: &up}},
		Total:      41,
	}

	w := env.do(http.MethodGet, "/grievances?category=roads&status=pending,urgent&search=main%20st&sortBy=upvotes-high&limit=5&offset=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, grievances.Filter{
		Category: "roads", Status: "pending,urgent", Search: "main st",
		SortBy: grievances.SortUpvotesHigh, Limit: 5, Offset: 10,
	}, env.grievances.gotFilter)
	assert.Equal(t, citizen, env.grievances.gotCaller)

	body := decodeBody(t, w)
	assert.EqualValues(t, 41, body["total"])
	list := body["grievances"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "up", list[0].(map[string]any)["userVote"])
}

func TestPublicListingHidesAuthorPhone(t *testing.T) {
	env := newTestEnv(nil)
	author := models.User{ID: 7, Username: "ann", Email: "ann@example.com", Phone: "+15550001111"}
	env.grievances.page = &grievances.Page{
		Grievances: []models.Grievance{{ID: 3, Title: "Pothole", AuthorID: 7, Author: author}},
		Total:      1,
	}

	w := env.do(http.MethodGet, "/grievances", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "+15550001111")

	list := decodeBody(t, w)["grievances"].([]any)
	require.Len(t, list, 1)
	got := list[0].(map[string]any)["author"].(map[string]any)
	assert.Equal(t, "ann", got["username"])
	assert.NotContains(t, got, "phone")
}

func TestGetMeIncludesOwnPhone(t *testing.T) {
	env := newTestEnv(citizen)
	env.auth.user = &models.User{ID: 7, Username: "ann", Phone: "+15550001111"}

	w := env.do(http.MethodGet, "/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "+15550001111", body["phone"])
	assert.NotContains(t, body["user"].(map[string]any), "phone")
}

func TestGetGrievancesRejectsUnknownSort(t *testing.T) {
	env := newTestEnv(nil)

	w := env.do(http.MethodGet, "/grievances?sortBy=random", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", decodeBody(t, w)["kind"])

	w = env.do(http.MethodGet, "/grievances?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{apperr.NotFound("grievance not found"), http.StatusNotFound, "not_found"},
		{apperr.Forbidden("nope"), http.StatusForbidden, "forbidden"},
		{apperr.Conflict(nil, "exists"), http.StatusConflict, "conflict"},
		{apperr.Unauthorized("login"), http.StatusUnauthorized, "unauthorized"},
		{apperr.InvalidInput("bad"), http.StatusBadRequest, "invalid_input"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			env := newTestEnv(citizen)
			env.grievances.err = tc.err

			w := env.do(http.MethodGet, "/grievances/1", "")
			assert.Equal(t, tc.status, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tc.kind, body["kind"])
			assert.Equal(t, tc.err.(*apperr.Error).Message, body["error"])
		})
	}
}

func TestInternalErrorsAreMasked(t *testing.T) {
	env := newTestEnv(citizen)
	env.grievances.err = apperr.Internal(errors.New("pq: connection refused"), "failed to load grievance")

	w := env.do(http.MethodDelete, "/grievances/1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "internal server error", body["error"])
	assert.NotContains(t, w.Body.String(), "connection refused")

	env.grievances.err = errors.New("unclassified")
	w = env.do(http.MethodDelete, "/grievances/1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decodeBody(t, w)["kind"])
}

func TestInvalidPathID(t *testing.T) {
	env := newTestEnv(citizen)
	for _, path := range []string{"/grievances/abc", "/grievances/0", "/grievances/-3"} {
		w := env.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestCreateGrievance(t *testing.T) {
	env := newTestEnv(citizen)

	w := env.do(http.MethodPost, "/grievances", `{"title":"Pothole","description":"Deep","category":"roads"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Pothole", decodeBody(t, w)["title"])
	assert.Equal(t, citizen, env.grievances.gotCaller)

	w = env.do(http.MethodPost, "/grievances", `{"description":"missing title"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/grievances", `{"title":"x","description":"y","category":"z","latitude":123}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "latitude out of range")
}

func TestUpdateGrievancePassesStatus(t *testing.T) {
	env := newTestEnv(&models.Caller{UserID: 1, Role: models.RoleAdmin})
	env.grievances.grievance = &models.Grievance{ID: 2, Status: models.StatusResolved}

	w := env.do(http.MethodPatch, "/grievances/2", `{"status":"resolved"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.grievances.gotUpdate.Status)
	assert.Equal(t, "resolved", *env.grievances.gotUpdate.Status)
	assert.False(t, env.grievances.gotUpdate.HasContent())
}

func TestVoteGrievance(t *testing.T) {
	env := newTestEnv(citizen)
	down := models.VoteDown
	env.votes.result = &votes.Result{Upvotes: 4, Downvotes: 2, UserVote: &down}

	w := env.do(http.MethodPost, "/grievances/9/vote", `{"voteType":"down"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, env.votes.userID)
	assert.Equal(t, 9, env.votes.targetID)
	assert.Equal(t, models.VoteDown, env.votes.kind)

	body := decodeBody(t, w)
	assert.EqualValues(t, 4, body["upvotes"])
	assert.EqualValues(t, 2, body["downvotes"])
	assert.Equal(t, "down", body["userVote"])
}

func TestVoteGrievanceRemovedVoteIsNull(t *testing.T) {
	env := newTestEnv(citizen)
	env.votes.result = &votes.Result{Upvotes: 3}

	w := env.do(http.MethodPost, "/grievances/9/vote", `{"voteType":"up"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Contains(t, body, "userVote")
	assert.Nil(t, body["userVote"])
}

func TestVoteRejectsBadInput(t *testing.T) {
	env := newTestEnv(citizen)

	w := env.do(http.MethodPost, "/grievances/9/vote", `{"voteType":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPost, "/grievances/9/vote", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, env.votes.targetID)
}

func TestVoteRequiresCaller(t *testing.T) {
	env := newTestEnv(nil)
	w := env.do(http.MethodPost, "/grievances/9/vote", `{"voteType":"up"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVoteComment(t *testing.T) {
	env := newTestEnv(citizen)
	up := models.VoteUp
	env.votes.result = &votes.Result{Upvotes: 1, UserVote: &up}

	w := env.do(http.MethodPost, "/comments/4/vote", `{"voteType":"up"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["upvotes"])
	assert.Equal(t, "up", body["userVote"])
	assert.NotContains(t, body, "downvotes")

	env.votes.err = apperr.InvalidInput("comments only accept upvotes")
	w = env.do(http.MethodPost, "/comments/4/vote", `{"voteType":"down"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(nil)
	w := env.do(http.MethodGet, "/stats?municipality=springfield", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decodeBody(t, w)["total"])
}

func TestAdminQueue(t *testing.T) {
	admin := &models.Caller{UserID: 1, Role: models.RoleAdmin, Municipality: "springfield"}
	env := newTestEnv(admin)
	score := 5.8
	env.grievances.page = &grievances.Page{Grievances: []models.Grievance{{ID: 2, PriorityScore: &score}}, Total: 1}

	w := env.do(http.MethodGet, "/admin/grievances?status=urgent", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "urgent", env.grievances.gotFilter.Status)
	list := decodeBody(t, w)["grievances"].([]any)
	assert.Equal(t, 5.8, list[0].(map[string]any)["priorityScore"])
}

func TestCreateAssignmentAllowsEmptyBody(t *testing.T) {
	env := newTestEnv(&models.Caller{UserID: 1, Role: models.RoleAdmin})

	w := env.do(http.MethodPost, "/admin/grievances/3/assignments", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, env.assignments.gotReq.DepartmentID)

	w = env.do(http.MethodPost, "/admin/grievances/3/assignments", `{"departmentId":2,"notes":"asap"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, env.assignments.gotReq.DepartmentID)
	assert.Equal(t, 2, *env.assignments.gotReq.DepartmentID)
}

func TestGetAssignmentsPropagatesValidation(t *testing.T) {
	env := newTestEnv(&models.Caller{UserID: 1, Role: models.RoleAdmin})
	w := env.do(http.MethodGet, "/admin/assignments?status=done", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecountGrievance(t *testing.T) {
	env := newTestEnv(&models.Caller{UserID: 1, Role: models.RoleAdmin})

	w := env.do(http.MethodPost, "/admin/grievances/12/recount", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 12, env.votes.targetID)
	body := decodeBody(t, w)
	assert.EqualValues(t, 4, body["upvotes"])
	assert.EqualValues(t, 1, body["downvotes"])

	env.votes.err = apperr.NotFound("grievance not found")
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/admin/grievances/99/recount", "").Code)
}
