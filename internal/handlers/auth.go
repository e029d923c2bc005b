package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zentrolabs/zentro/internal/middleware"
	"github.com/zentrolabs/zentro/internal/services"
	"github.com/zentrolabs/zentro/pkg/errors"
	"github.com/zentrolabs/zentro/pkg/response"
)

// AdminSecretHeader carries the shared secret allowing admin registrations.
const AdminSecretHeader = "Admin-Secret-Key"

var errInvalidAdminSecret = errors.New("FORBIDDEN", "Invalid admin secret key", http.StatusForbidden)

// AuthHandler manages signup, login, email verification, password recovery
// and the token lifecycle.
type AuthHandler struct {
	auth        *services.AuthService
	adminSecret string
}

func NewAuthHandler(auth *services.AuthService, adminSecret string) *AuthHandler {
	return &AuthHandler{auth: auth, adminSecret: adminSecret}
}

type signupRequest struct {
	FirstName   string `json:"first_name" validate:"required,max=50"`
	LastName    string `json:"last_name" validate:"required,max=50"`
	Email       string `json:"email" validate:"required,email,max=100"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=20"`
}

func (r *signupRequest) toInput() services.SignupInput {
	return services.SignupInput{
		FirstName:   strings.TrimSpace(r.FirstName),
		LastName:    strings.TrimSpace(r.LastName),
		Email:       strings.ToLower(strings.TrimSpace(r.Email)),
		Password:    r.Password,
		PhoneNumber: strings.TrimSpace(r.PhoneNumber),
	}
}

// POST /api/v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.Signup(c.Request.Context(), req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated,
		"Account created. Please check your email for the verification code.", result)
}

// POST /api/v1/auth/admin/signup
//
// Requires the Admin-Secret-Key header to match the configured secret. Admin
// registration is disabled entirely when no secret is configured.
func (h *AuthHandler) AdminSignup(c *gin.Context) {
	supplied := c.GetHeader(AdminSecretHeader)
	if h.adminSecret == "" ||
		subtle.ConstantTimeCompare([]byte(supplied), []byte(h.adminSecret)) != 1 {
		response.Error(c, errInvalidAdminSecret)
		return
	}

	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.AdminSignup(c.Request.Context(), req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated,
		"Admin account created. Please check your email for the verification code.", result)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, pair)
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// POST /api/v1/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, err := h.auth.VerifyEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.OTP)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Email verified successfully.", pair)
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/v1/auth/resend-otp
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.ResendOTP(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email))); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "A new verification code has been sent to your email.", nil)
}

// POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email))); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "A password reset code has been sent to your email.", nil)
}

// POST /api/v1/auth/verify-reset-otp
func (h *AuthHandler) VerifyResetOTP(c *gin.Context) {
	var req verifyEmailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.VerifyResetOTP(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.OTP)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

type resetPasswordRequest struct {
	TemporaryToken string `json:"temporary_token" validate:"required"`
	NewPassword    string `json:"new_password" validate:"required,min=8,max=128"`
}

// POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.TemporaryToken, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Password reset successfully. Please log in with your new password.", nil)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, err := h.auth.RefreshAccessToken(c.Request.Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, pair)
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := c.GetUint(middleware.CtxUserIDKey)
	if userID == 0 {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Logged out successfully.", nil)
}
