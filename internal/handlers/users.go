package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/grievance-portal/backend/internal/middleware"
)

type UserHandler struct {
	auth       AuthService
	grievances GrievanceService
	logg       logrus.FieldLogger
}

// GetUserProfile returns a user's profile with the grievances they filed
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	user, err := h.auth.Profile(ctx, userID)
	if err != nil {
		respondError(c, h.logg, "GetUserProfile", err)
		return
	}
	filed, err := h.grievances.ListByAuthor(ctx, userID, middleware.CurrentCaller(c))
	if err != nil {
		respondError(c, h.logg, "GetUserProfile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":           user,
		"grievances":     filed,
		"grievanceCount": len(filed),
	})
}
