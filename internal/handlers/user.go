package handlers

import (
	"errors"
	"strconv"

	"chatserver/internal/middleware"
	"chatserver/internal/services"
	"chatserver/pkg/response"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	users    *services.UserService
	presence *services.PresenceStore
}

func NewUserHandler(users *services.UserService, presence *services.PresenceStore) *UserHandler {
	return &UserHandler{users: users, presence: presence}
}

// List returns all users except the caller, paginated
// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	limit, offset := pageParams(c)

	users, total, err := h.users.List(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewPaginated(users, total, limit, offset))
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// Update changes the caller's own profile
// PUT /api/users/me
func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.NewBadRequest(err.Error()))
		return
	}

	user, err := h.users.Update(c.Request.Context(), middleware.GetUserID(c), services.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			response.Error(c, response.NewConflict("Email already in use"))
		case errors.Is(err, services.ErrUsernameTaken):
			response.Error(c, response.NewConflict("Username already in use"))
		case errors.Is(err, services.ErrUserNotFound):
			response.Error(c, response.NewNotFound("User not found"))
		default:
			response.Error(c, err)
		}
		return
	}

	response.Success(c, user)
}

// Online returns the ids of all users with an active connection
// GET /api/users/online
func (h *UserHandler) Online(c *gin.Context) {
	ids, err := h.presence.Members(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"userIds": ids})
}

// OnlineCount returns the number of online users
// GET /api/users/online/count
func (h *UserHandler) OnlineCount(c *gin.Context) {
	count, err := h.presence.Count(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"count": count})
}

// IsOnline reports whether one user is online
// GET /api/users/:id/online
func (h *UserHandler) IsOnline(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, response.NewBadRequest("Invalid user id"))
		return
	}

	online, err := h.presence.IsOnline(c.Request.Context(), uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"userId": uint(id), "online": online})
}

// pageParams reads limit/offset query parameters with sane defaults.
func pageParams(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
