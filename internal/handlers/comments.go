package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/middleware"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

type CommentHandler struct {
	grievances GrievanceService
	votes      VoteService
	logg       logrus.FieldLogger
}

// GetComments returns all comments for a grievance
func (h *CommentHandler) GetComments(c *gin.Context) {
	grievanceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	comments, err := h.grievances.ListComments(c.Request.Context(), grievanceID, middleware.CurrentCaller(c))
	if err != nil {
		respondError(c, h.logg, "GetComments", err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *CommentHandler) CreateComment(c *gin.Context) {
	grievanceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.CommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	comment, err := h.grievances.AddComment(c.Request.Context(), middleware.CurrentCaller(c), grievanceID, input.Body)
	if err != nil {
		respondError(c, h.logg, "CreateComment", err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) UpdateComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.CommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	comment, err := h.grievances.UpdateComment(c.Request.Context(), middleware.CurrentCaller(c), id, input.Body)
	if err != nil {
		respondError(c, h.logg, "UpdateComment", err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *CommentHandler) DeleteComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.grievances.DeleteComment(c.Request.Context(), middleware.CurrentCaller(c), id); err != nil {
		respondError(c, h.logg, "DeleteComment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

// VoteComment toggles the caller's upvote on a comment
func (h *CommentHandler) VoteComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	kind, ok := parseVoteKind(c)
	if !ok {
		return
	}

	caller := middleware.CurrentCaller(c)
	if caller == nil {
		respondError(c, h.logg, "VoteComment", apperr.Unauthorized("user not authenticated"))
		return
	}
	result, err := h.votes.VoteComment(c.Request.Context(), caller.UserID, id, kind)
	if err != nil {
		respondError(c, h.logg, "VoteComment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upvotes": result.Upvotes, "userVote": result.UserVote})
}
