package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/assignments"
	"github.com/emilythestrangee/grievance-portal/backend/internal/grievances"
	"github.com/emilythestrangee/grievance-portal/backend/internal/logger"
	"github.com/emilythestrangee/grievance-portal/backend/internal/middleware"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
	"github.com/emilythestrangee/grievance-portal/backend/internal/votes"
)

type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Profile(ctx context.Context, id int) (*models.User, error)
}

type GrievanceService interface {
	List(ctx context.Context, f grievances.Filter, caller *models.Caller) (*grievances.Page, error)
	AdminQueue(ctx context.Context, f grievances.Filter, caller *models.Caller) (*grievances.Page, error)
	Get(ctx context.Context, id int, caller *models.Caller) (*models.Grievance, error)
	ListByAuthor(ctx context.Context, authorID int, caller *models.Caller) ([]models.Grievance, error)
	Create(ctx context.Context, caller *models.Caller, req models.CreateGrievanceRequest) (*models.Grievance, error)
	Update(ctx context.Context, caller *models.Caller, id int, req models.UpdateGrievanceRequest) (*models.Grievance, error)
	Delete(ctx context.Context, caller *models.Caller, id int) error
	Stats(ctx context.Context, municipality string) (*models.StatusStats, error)

	ListComments(ctx context.Context, grievanceID int, caller *models.Caller) ([]models.Comment, error)
	AddComment(ctx context.Context, caller *models.Caller, grievanceID int, body string) (*models.Comment, error)
	UpdateComment(ctx context.Context, caller *models.Caller, id int, body string) (*models.Comment, error)
	DeleteComment(ctx context.Context, caller *models.Caller, id int) error
}

type VoteService interface {
	VoteGrievance(ctx context.Context, userID, grievanceID int, kind models.VoteKind) (*votes.Result, error)
	VoteComment(ctx context.Context, userID, commentID int, kind models.VoteKind) (*votes.Result, error)
	RecountGrievance(ctx context.Context, grievanceID int) (*votes.Counts, error)
}

type AssignmentService interface {
	ListDepartments(ctx context.Context, municipality string) ([]models.Department, error)
	CreateDepartment(ctx context.Context, caller *models.Caller, req models.DepartmentRequest) (*models.Department, error)
	Assign(ctx context.Context, caller *models.Caller, grievanceID int, req models.CreateAssignmentRequest) (*models.Assignment, error)
	ListAssignments(ctx context.Context, caller *models.Caller, f assignments.Filter) ([]models.Assignment, error)
	UpdateAssignment(ctx context.Context, caller *models.Caller, id int, req models.UpdateAssignmentRequest) (*models.Assignment, error)
}

// Handler combines all handler types
type Handler struct {
	Auth      *AuthHandler
	User      *UserHandler
	Grievance *GrievanceHandler
	Comment   *CommentHandler
	Admin     *AdminHandler
}

// Deps are the services the HTTP layer calls into.
type Deps struct {
	Auth        AuthService
	Grievances  GrievanceService
	Votes       VoteService
	Assignments AssignmentService
	Logger      logrus.FieldLogger
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(d Deps) *Handler {
	return &Handler{
		Auth:      &AuthHandler{auth: d.Auth, logg: d.Logger},
		User:      &UserHandler{auth: d.Auth, grievances: d.Grievances, logg: d.Logger},
		Grievance: &GrievanceHandler{grievances: d.Grievances, votes: d.Votes, logg: d.Logger},
		Comment:   &CommentHandler{grievances: d.Grievances, votes: d.Votes, logg: d.Logger},
		Admin:     &AdminHandler{grievances: d.Grievances, votes: d.Votes, assignments: d.Assignments, logg: d.Logger},
	}
}

// respondError writes err as {"error", "kind"}. Internal errors are logged and
// their details withheld from the client.
func respondError(c *gin.Context, logg logrus.FieldLogger, funcName string, err error) {
	kind := apperr.KindOf(err)
	message := "internal server error"

	var appErr *apperr.Error
	if errors.As(err, &appErr) && kind != apperr.KindInternal {
		message = appErr.Message
	}
	if kind == apperr.KindInternal {
		logger.LogError(logg, "handlers", funcName, map[string]any{
			"path":      c.FullPath(),
			"requestId": c.GetString(middleware.RequestIDKey),
		}, err)
	}
	c.JSON(apperr.HTTPStatus(kind), gin.H{"error": message, "kind": kind})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": apperr.KindInvalidInput})
}

// paramID parses a positive integer path parameter.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "kind": apperr.KindInvalidInput})
		return 0, false
	}
	return id, true
}

func parseVoteKind(c *gin.Context) (models.VoteKind, bool) {
	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return "", false
	}
	kind, err := models.ParseVoteKind(input.VoteType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": apperr.KindInvalidInput})
		return "", false
	}
	return kind, true
}
