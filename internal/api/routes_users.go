package api

import (
	"github.com/gin-gonic/gin"

	"github.com/zentrolabs/zentro/internal/handlers"
)

func registerUserRoutes(v1 *gin.RouterGroup, h *handlers.UserHandler, requireAuth gin.HandlerFunc) {
	users := v1.Group("/users", requireAuth)
	{
		users.GET("/me", h.GetProfile)
		users.PUT("/me", h.UpdateProfile)
		users.PUT("/me/username", h.ChangeUsername)
		users.DELETE("/me", h.DeleteAccount)
	}
}
