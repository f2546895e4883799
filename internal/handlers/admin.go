package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/grievance-portal/backend/internal/assignments"
	"github.com/emilythestrangee/grievance-portal/backend/internal/grievances"
	"github.com/emilythestrangee/grievance-portal/backend/internal/middleware"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

type AdminHandler struct {
	grievances  GrievanceService
	votes       VoteService
	assignments AssignmentService
	logg        logrus.FieldLogger
}

// GetQueue lists grievances ordered by priority score
func (h *AdminHandler) GetQueue(c *gin.Context) {
	var filter grievances.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := h.grievances.AdminQueue(c.Request.Context(), filter, middleware.CurrentCaller(c))
	if err != nil {
		respondError(c, h.logg, "GetQueue", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// RecountGrievance rebuilds a grievance's vote counters from its vote rows
func (h *AdminHandler) RecountGrievance(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	counts, err := h.votes.RecountGrievance(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logg, "RecountGrievance", err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *AdminHandler) GetDepartments(c *gin.Context) {
	departments, err := h.assignments.ListDepartments(c.Request.Context(), c.Query("municipality"))
	if err != nil {
		respondError(c, h.logg, "GetDepartments", err)
		return
	}
	c.JSON(http.StatusOK, departments)
}

func (h *AdminHandler) CreateDepartment(c *gin.Context) {
	var input models.DepartmentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	dept, err := h.assignments.CreateDepartment(c.Request.Context(), middleware.CurrentCaller(c), input)
	if err != nil {
		respondError(c, h.logg, "CreateDepartment", err)
		return
	}
	c.JSON(http.StatusCreated, dept)
}

// CreateAssignment routes a grievance to a department
func (h *AdminHandler) CreateAssignment(c *gin.Context) {
	grievanceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.CreateAssignmentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
	}

	a, err := h.assignments.Assign(c.Request.Context(), middleware.CurrentCaller(c), grievanceID, input)
	if err != nil {
		respondError(c, h.logg, "CreateAssignment", err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *AdminHandler) GetAssignments(c *gin.Context) {
	var filter assignments.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindError(c, err)
		return
	}

	list, err := h.assignments.ListAssignments(c.Request.Context(), middleware.CurrentCaller(c), filter)
	if err != nil {
		respondError(c, h.logg, "GetAssignments", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) UpdateAssignment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	a, err := h.assignments.UpdateAssignment(c.Request.Context(), middleware.CurrentCaller(c), id, input)
	if err != nil {
		respondError(c, h.logg, "UpdateAssignment", err)
		return
	}
	c.JSON(http.StatusOK, a)
}
