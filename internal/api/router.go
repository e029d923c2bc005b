package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/zentrolabs/zentro/internal/app"
	iauth "github.com/zentrolabs/zentro/internal/auth"
	"github.com/zentrolabs/zentro/internal/handlers"
	"github.com/zentrolabs/zentro/internal/middleware"
	"github.com/zentrolabs/zentro/internal/services"
)

// Deps carries the services the router mounts handlers for.
type Deps struct {
	DB     *gorm.DB
	Config *app.Config
	Tokens *iauth.TokenService
	Auth   *services.AuthService
	Users  *services.UserService
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token service must be provided")
	}
	if deps.Auth == nil || deps.Users == nil {
		return nil, fmt.Errorf("auth and user services must be provided")
	}

	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	rateLimit := cfg.Server.RateLimit
	if rateLimit <= 0 {
		rateLimit = 100
	}
	window := cfg.Server.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	r.Use(middleware.RateLimit(rateLimit, window))

	registerHealthRoutes(r, deps.DB)

	requireAuth := middleware.Auth(deps.Tokens)

	v1 := r.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(deps.Auth, cfg.Auth.AdminSecretKey)
	registerAuthRoutes(v1, authHandler, requireAuth)

	userHandler := handlers.NewUserHandler(deps.Users)
	registerUserRoutes(v1, userHandler, requireAuth)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		endpoint := cfg.Metrics.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
