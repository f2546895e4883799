package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/middleware"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

type AuthHandler struct {
	auth AuthService
	logg logrus.FieldLogger
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logg, "Register", err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logg, "Login", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetMe returns the authenticated user
func (h *AuthHandler) GetMe(c *gin.Context) {
	caller := middleware.CurrentCaller(c)
	if caller == nil {
		respondError(c, h.logg, "GetMe", apperr.Unauthorized("user not authenticated"))
		return
	}

	user, err := h.auth.Profile(c.Request.Context(), caller.UserID)
	if err != nil {
		respondError(c, h.logg, "GetMe", err)
		return
	}
	// Phone is never part of the public user JSON
	c.JSON(http.StatusOK, gin.H{"user": user, "phone": user.Phone})
}
