package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zentrolabs/zentro/pkg/errors"
	"github.com/zentrolabs/zentro/pkg/response"
)

// Health returns a simple status payload useful for readiness checks. When a
// database handle is supplied the underlying connection is pinged as well.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				response.Error(c, errors.New("SERVICE_UNAVAILABLE", "Service is not ready", http.StatusServiceUnavailable).WithInternal(err))
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
