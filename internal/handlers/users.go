package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zentrolabs/zentro/internal/middleware"
	"github.com/zentrolabs/zentro/internal/services"
	"github.com/zentrolabs/zentro/pkg/errors"
	"github.com/zentrolabs/zentro/pkg/response"
)

// UserHandler manages the authenticated user's profile surface.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func currentUserID(c *gin.Context) (uint, bool) {
	userID := c.GetUint(middleware.CtxUserIDKey)
	if userID == 0 {
		response.Error(c, errors.ErrUnauthorized)
		return 0, false
	}
	return userID, true
}

// GET /api/v1/users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

type updateProfileRequest struct {
	FirstName   string `json:"first_name" validate:"required,max=50"`
	LastName    string `json:"last_name" validate:"required,max=50"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=20"`
}

// PUT /api/v1/users/me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, services.UpdateProfileInput{
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Profile updated successfully.", user)
}

type changeUsernameRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
}

// PUT /api/v1/users/me/username
func (h *UserHandler) ChangeUsername(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req changeUsernameRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.ChangeUsername(c.Request.Context(), userID, strings.ToLower(strings.TrimSpace(req.Username)))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Username changed successfully.", user)
}

// DELETE /api/v1/users/me
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.users.DeleteAccount(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK,
		"Account scheduled for deletion. Log in within 30 days to restore it.", nil)
}
