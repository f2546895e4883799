package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/grievances"
	"github.com/emilythestrangee/grievance-portal/backend/internal/middleware"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

type GrievanceHandler struct {
	grievances GrievanceService
	votes      VoteService
	logg       logrus.FieldLogger
}

// GetGrievances lists grievances with filters, sorting and pagination
func (h *GrievanceHandler) GetGrievances(c *gin.Context) {
	var filter grievances.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := h.grievances.List(c.Request.Context(), filter, middleware.CurrentCaller(c))
	if err != nil {
		respondError(c, h.logg, "GetGrievances", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetGrievance returns a single grievance by ID
func (h *GrievanceHandler) GetGrievance(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	g, err := h.grievances.Get(c.Request.Context(), id, middleware.CurrentCaller(c))
	if err != nil {
		respondError(c, h.logg, "GetGrievance", err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *GrievanceHandler) CreateGrievance(c *gin.Context) {
	var input models.CreateGrievanceRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	g, err := h.grievances.Create(c.Request.Context(), middleware.CurrentCaller(c), input)
	if err != nil {
		respondError(c, h.logg, "CreateGrievance", err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// UpdateGrievance applies a partial update; status changes are admin only
func (h *GrievanceHandler) UpdateGrievance(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.UpdateGrievanceRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	g, err := h.grievances.Update(c.Request.Context(), middleware.CurrentCaller(c), id, input)
	if err != nil {
		respondError(c, h.logg, "UpdateGrievance", err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *GrievanceHandler) DeleteGrievance(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.grievances.Delete(c.Request.Context(), middleware.CurrentCaller(c), id); err != nil {
		respondError(c, h.logg, "DeleteGrievance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Grievance deleted successfully"})
}

// VoteGrievance toggles the caller's vote and returns the fresh counters
func (h *GrievanceHandler) VoteGrievance(c *gin.Context) {
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
		respondError(c, h.logg, "VoteGrievance", apperr.Unauthorized("user not authenticated"))
		return
	}
	result, err := h.votes.VoteGrievance(c.Request.Context(), caller.UserID, id, kind)
	if err != nil {
		respondError(c, h.logg, "VoteGrievance", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetStats returns grievance counts per status
func (h *GrievanceHandler) GetStats(c *gin.Context) {
	stats, err := h.grievances.Stats(c.Request.Context(), c.Query("municipality"))
	if err != nil {
		respondError(c, h.logg, "GetStats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
