package api

import (
	"github.com/gin-gonic/gin"

	"github.com/zentrolabs/zentro/internal/handlers"
)

func registerAuthRoutes(v1 *gin.RouterGroup, h *handlers.AuthHandler, requireAuth gin.HandlerFunc) {
	auth := v1.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/admin/signup", h.AdminSignup)
		auth.POST("/login", h.Login)
		auth.POST("/verify-email", h.VerifyEmail)
		auth.POST("/resend-otp", h.ResendOTP)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/verify-reset-otp", h.VerifyResetOTP)
		auth.POST("/reset-password", h.ResetPassword)
		auth.POST("/refresh", h.Refresh)

		auth.POST("/logout", requireAuth, h.Logout)
	}
}
