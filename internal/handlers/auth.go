package handlers

import (
	"errors"

	"chatserver/internal/middleware"
	"chatserver/internal/services"
	"chatserver/pkg/response"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register handles account creation
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.NewBadRequest(err.Error()))
		return
	}

	result, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			response.Error(c, response.NewConflict("Email already in use"))
		case errors.Is(err, services.ErrUsernameTaken):
			response.Error(c, response.NewConflict("Username already in use"))
		default:
			response.Error(c, err)
		}
		return
	}

	response.Created(c, result)
}

// Login handles credential login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.NewBadRequest(err.Error()))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			response.Error(c, response.NewUnauthorized("Invalid credentials"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
	AccessToken  string `json:"accessToken"`
}

// Refresh rotates a refresh token for a new pair
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.NewBadRequest(err.Error()))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, req.AccessToken)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRefreshToken) {
			response.Error(c, response.NewUnauthorized("Invalid refresh token"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, pair)
}

// Logout revokes the caller's session
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := middleware.GetUserID(c)
	token := middleware.GetToken(c)

	if err := h.auth.Logout(c.Request.Context(), userID, token); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "Logged out successfully"})
}

// Me returns the authenticated user
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	response.Success(c, middleware.GetUser(c))
}
