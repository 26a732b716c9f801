package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/pawmates/internal/matching"
	"github.com/lalith-99/pawmates/internal/middleware"
	"github.com/lalith-99/pawmates/internal/models"
	"go.uber.org/zap"
)

// MatchHandler exposes the swipe feed and the like/unmatch actions.
type MatchHandler struct {
	svc       *matching.Service
	logger    *zap.Logger
	devMode   bool
	maxDistKM float64
}

func NewMatchHandler(svc *matching.Service, maxDistKM float64, devMode bool, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{svc: svc, logger: logger, devMode: devMode, maxDistKM: maxDistKM}
}

// Potential handles GET /v1/matches/potential/:petId?limit=&skip=&maxDistance=
func (h *MatchHandler) Potential(c *gin.Context) {
	petID, err := uuid.Parse(c.Param("petId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pet id"})
		return
	}

	params := matching.FeedParams{MaxDistanceKM: h.maxDistKM}
	if v := c.Query("limit"); v != "" {
		params.Limit, err = strconv.Atoi(v)
		if err != nil || params.Limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
	}
	if v := c.Query("skip"); v != "" {
		params.Skip, err = strconv.Atoi(v)
		if err != nil || params.Skip < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'skip' parameter"})
			return
		}
	}
	if v := c.Query("maxDistance"); v != "" {
		params.MaxDistanceKM, err = strconv.ParseFloat(v, 64)
		if err != nil || params.MaxDistanceKM <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'maxDistance' parameter"})
			return
		}
	}

	userID := middleware.GetUserID(c)
	pets, err := h.svc.PotentialMatches(c.Request.Context(), userID, petID, params)
	if err != nil {
		if errors.Is(err, matching.ErrPetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pet not found"})
			return
		}
		serverError(c, h.logger, h.devMode, "failed to load potential matches", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(pets),
		"pets":    pets,
	})
}

type likeRequest struct {
	PetID      uuid.UUID `json:"petId" binding:"required"`
	LikedPetID uuid.UUID `json:"likedPetId" binding:"required"`
	IsLiked    *bool     `json:"isLiked" binding:"required"`
}

// Like handles POST /v1/matches/like
//
// Why *bool for IsLiked?
//   - binding:"required" on a plain bool rejects an explicit false.
//     A pointer distinguishes "absent" (400) from "false" (a pass).
func (h *MatchHandler) Like(c *gin.Context) {
	var req likeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	result, err := h.svc.Swipe(c.Request.Context(), userID, req.PetID, req.LikedPetID, *req.IsLiked)
	if err != nil {
		switch {
		case errors.Is(err, matching.ErrSamePet):
			c.JSON(http.StatusBadRequest, gin.H{"error": "a pet cannot swipe on itself"})
		case errors.Is(err, matching.ErrPetNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "pet not found"})
		default:
			serverError(c, h.logger, h.devMode, "failed to record swipe", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"match":   result.Match,
		"isMatch": result.IsMatch,
	})
}

// confirmedMatchResponse is one row of GET /v1/matches/:petId.
type confirmedMatchResponse struct {
	MatchID   uuid.UUID  `json:"matchId"`
	MatchDate *time.Time `json:"matchDate"`
	Pet       models.Pet `json:"pet"`
}

// Confirmed handles GET /v1/matches/:petId — confirmed matches only.
func (h *MatchHandler) Confirmed(c *gin.Context) {
	petID, err := uuid.Parse(c.Param("petId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pet id"})
		return
	}

	userID := middleware.GetUserID(c)
	entries, pets, err := h.svc.ConfirmedMatches(c.Request.Context(), userID, petID)
	if err != nil {
		if errors.Is(err, matching.ErrPetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pet not found"})
			return
		}
		serverError(c, h.logger, h.devMode, "failed to load matches", err)
		return
	}

	out := make([]confirmedMatchResponse, 0, len(entries))
	for _, entry := range entries {
		pet, ok := pets[entry.OtherPet(petID)]
		if !ok {
			// Ledger row without a surviving pet — the deletion cascade
			// should make this impossible, so surface it in logs.
			h.logger.Warn("confirmed match references missing pet",
				zap.String("match_id", entry.ID.String()),
			)
			continue
		}
		out = append(out, confirmedMatchResponse{
			MatchID:   entry.ID,
			MatchDate: entry.MatchDate,
			Pet:       pet,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(out),
		"matches": out,
	})
}

type unmatchRequest struct {
	PetID          uuid.UUID `json:"petId" binding:"required"`
	UnmatchedPetID uuid.UUID `json:"unmatchedPetId" binding:"required"`
}

// Unmatch handles POST /v1/matches/unmatch
func (h *MatchHandler) Unmatch(c *gin.Context) {
	var req unmatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	err := h.svc.Unmatch(c.Request.Context(), userID, req.PetID, req.UnmatchedPetID)
	if err != nil {
		switch {
		case errors.Is(err, matching.ErrPetNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "pet not found"})
		case errors.Is(err, matching.ErrNoMatch):
			c.JSON(http.StatusNotFound, gin.H{"error": "no match found for this pair"})
		default:
			serverError(c, h.logger, h.devMode, "failed to unmatch", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "unmatched",
	})
}
