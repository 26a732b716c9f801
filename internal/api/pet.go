package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/pawmates/internal/matching"
	"github.com/lalith-99/pawmates/internal/middleware"
	"github.com/lalith-99/pawmates/internal/models"
	"github.com/lalith-99/pawmates/internal/repository"
	"go.uber.org/zap"
)

// PetHandler covers pet profile CRUD. Deletion goes through the matching
// service because it cascades into the ledger and chats.
type PetHandler struct {
	pets    repository.PetRepository
	svc     *matching.Service
	logger  *zap.Logger
	devMode bool
}

func NewPetHandler(pets repository.PetRepository, svc *matching.Service, devMode bool, logger *zap.Logger) *PetHandler {
	return &PetHandler{pets: pets, svc: svc, logger: logger, devMode: devMode}
}

// petRequest is the request body for create and update.
//
// Why a separate struct and not models.Pet?
//   - The client must never control id, owner_id, disliked_pets, or
//     created_at. A dedicated request struct makes that structural.
type petRequest struct {
	Name          string   `json:"name" binding:"required"`
	Type          string   `json:"type" binding:"required"`
	Breed         string   `json:"breed"`
	Age           int      `json:"age" binding:"min=0"`
	Gender        string   `json:"gender"`
	Size          string   `json:"size"`
	Vaccinated    bool     `json:"vaccinated"`
	ActivityLevel string   `json:"activity_level"`
	Temperament   []string `json:"temperament"`
	Photos        []string `json:"photos"`
}

// Create handles POST /v1/pets
func (h *PetHandler) Create(c *gin.Context) {
	var req petRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidPetType(models.PetType(req.Type)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pet type"})
		return
	}

	pet := &models.Pet{
		OwnerID:       middleware.GetUserID(c),
		Name:          req.Name,
		Type:          models.PetType(req.Type),
		Breed:         req.Breed,
		Age:           req.Age,
		Gender:        req.Gender,
		Size:          req.Size,
		Vaccinated:    req.Vaccinated,
		ActivityLevel: req.ActivityLevel,
		Temperament:   req.Temperament,
		Photos:        req.Photos,
	}
	if pet.Temperament == nil {
		pet.Temperament = []string{}
	}
	if pet.Photos == nil {
		pet.Photos = []string{}
	}

	created, err := h.pets.Create(c.Request.Context(), pet)
	if err != nil {
		serverError(c, h.logger, h.devMode, "failed to create pet", err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// List handles GET /v1/pets — the caller's own pets.
func (h *PetHandler) List(c *gin.Context) {
	pets, err := h.pets.ListByOwner(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		serverError(c, h.logger, h.devMode, "failed to list pets", err)
		return
	}
	c.JSON(http.StatusOK, pets)
}

// Get handles GET /v1/pets/:id. Any authenticated user may view any pet
// profile — that's what a matching feed is made of.
func (h *PetHandler) Get(c *gin.Context) {
	petID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pet id"})
		return
	}

	pet, err := h.pets.GetByID(c.Request.Context(), petID)
	if err != nil {
		serverError(c, h.logger, h.devMode, "failed to get pet", err)
		return
	}
	if pet == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pet not found"})
		return
	}

	c.JSON(http.StatusOK, pet)
}

// Update handles PUT /v1/pets/:id. Owner only; type is immutable after
// creation (the ledger is scoped per type via same-type matching, so a
// type change would orphan history).
func (h *PetHandler) Update(c *gin.Context) {
	petID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pet id"})
		return
	}

	var req petRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.pets.GetByID(c.Request.Context(), petID)
	if err != nil {
		serverError(c, h.logger, h.devMode, "failed to get pet", err)
		return
	}
	// 404 for both "absent" and "not yours" — no existence probing.
	if existing == nil || existing.OwnerID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "pet not found"})
		return
	}

	existing.Name = req.Name
	existing.Breed = req.Breed
	existing.Age = req.Age
	existing.Gender = req.Gender
	existing.Size = req.Size
	existing.Vaccinated = req.Vaccinated
	existing.ActivityLevel = req.ActivityLevel
	if req.Temperament != nil {
		existing.Temperament = req.Temperament
	}
	if req.Photos != nil {
		existing.Photos = req.Photos
	}

	updated, err := h.pets.Update(c.Request.Context(), existing)
	if err != nil {
		serverError(c, h.logger, h.devMode, "failed to update pet", err)
		return
	}
	if updated == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pet not found"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /v1/pets/:id — the full cascade: every ledger
// entry the pet appears in, every chat hanging off those entries, and
// the pet itself. Affected users get chat_removed notifications.
func (h *PetHandler) Delete(c *gin.Context) {
	petID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pet id"})
		return
	}

	err = h.svc.DeletePet(c.Request.Context(), middleware.GetUserID(c), petID)
	if err != nil {
		if errors.Is(err, matching.ErrPetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pet not found"})
			return
		}
		serverError(c, h.logger, h.devMode, "failed to delete pet", err)
		return
	}

	c.Status(http.StatusNoContent)
}
