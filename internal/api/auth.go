package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/pawmates/internal/auth"
	"github.com/lalith-99/pawmates/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles signup and login — the only PUBLIC endpoints.
// These don't go through AuthMiddleware because the user doesn't have
// a JWT yet (that's what these endpoints produce).
type AuthHandler struct {
	userRepo  repository.UserRepository
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthHandler(userRepo repository.UserRepository, jwtSecret string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// signupRequest accepts either a password or an OAuth identity (the
// provider/subject pair arrives pre-verified from the mobile SDK's
// token exchange — the exchange itself is outside this service).
// At least one of the two must be present.
type signupRequest struct {
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"omitempty,min=8"`
	DisplayName   string `json:"display_name" binding:"required"`
	OAuthProvider string `json:"oauth_provider"`
	OAuthSubject  string `json:"oauth_subject"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// authResponse is what both signup and login return.
// The client stores this token and sends it as "Authorization: Bearer <token>"
// on every subsequent request.
type authResponse struct {
	Token string `json:"token"`
}

// Signup handles POST /v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hasOAuth := req.OAuthProvider != "" && req.OAuthSubject != ""
	if req.Password == "" && !hasOAuth {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either a password or an oauth identity is required"})
		return
	}

	existing, err := h.userRepo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("failed to check existing user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	// bcrypt generates a unique salt per password automatically; each
	// hash takes ~100ms — fast enough for login, slow enough to stop an
	// attacker trying millions of passwords.
	var hash string
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.logger.Error("failed to hash password", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
			return
		}
		hash = string(hashed)
	}

	user, err := h.userRepo.Create(
		c.Request.Context(),
		req.Email,
		req.DisplayName,
		hash,
		req.OAuthProvider,
		req.OAuthSubject,
	)
	if err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, h.jwtSecret, 24*time.Hour)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	c.JSON(http.StatusCreated, authResponse{Token: token})
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userRepo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("failed to find user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	// Generic error for "user not found", "wrong password", AND
	// "oauth-only account" — separating them would tell an attacker
	// which emails are registered and how.
	if user == nil || user.PasswordHash == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	// bcrypt.CompareHashAndPassword does a constant-time comparison,
	// resistant to timing attacks.
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, h.jwtSecret, 24*time.Hour)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token})
}
