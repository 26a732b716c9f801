package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/pawmates/internal/middleware"
	"github.com/lalith-99/pawmates/internal/repository"
	"go.uber.org/zap"
)

// UserHandler handles user-related operations.
type UserHandler struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, logger: logger}
}

// GetMe handles GET /v1/users/me
//
// Why /users/me and not /users/:id?
//   - /users/me is idiomatic for "get my own profile". Client doesn't need
//     to know their own UUID — they just call /users/me and get themselves.
func (h *UserHandler) GetMe(c *gin.Context) {
	userID := middleware.GetUserID(c)

	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}

	// If the user is in the JWT but not in the DB, that's a data
	// consistency bug. Return 404 instead of 500.
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}

type updateLocationRequest struct {
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
}

// UpdateLocation handles PUT /v1/users/me/location
//
// Sending [0, 0] resets the location to "unset", which turns off geo
// filtering for this user's feeds.
func (h *UserHandler) UpdateLocation(c *gin.Context) {
	var req updateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.repo.UpdateLocation(c.Request.Context(), userID, req.Longitude, req.Latitude); err != nil {
		h.logger.Error("failed to update location", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update location"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type updatePushTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// UpdatePushToken handles PUT /v1/users/me/push-token
//
// The token is stored but nothing consumes it yet — there is no push
// fallback for offline recipients. Registered now so clients don't need
// a protocol change when delivery lands.
func (h *UserHandler) UpdatePushToken(c *gin.Context) {
	var req updatePushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.repo.UpdatePushToken(c.Request.Context(), userID, req.Token); err != nil {
		h.logger.Error("failed to update push token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update push token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
