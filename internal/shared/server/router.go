package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"registrar-backend/internal/lifecycle"
	"registrar-backend/internal/services/health"
	"registrar-backend/internal/settings"
	"registrar-backend/internal/shared/config"
	"registrar-backend/internal/shared/metrics"
	"registrar-backend/internal/shared/server/middleware"
	"registrar-backend/internal/shared/server/respond"
)

// RouterDeps lists the handlers mounted by NewRouter.
type RouterDeps struct {
	Config           config.Config
	LifecycleHandler *lifecycle.Handler
	SettingsHandler  *settings.Handler
	Health           *health.Service
	RateLimiter      *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				middleware.VerifyRateLimitGroup: middleware.PerMinute(deps.Config.VerifyRatePerMin),
			},
			GroupFor: middleware.PickupGroup,
			Limiter:  deps.RateLimiter,
		}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	api.GET("/metrics", metrics.Handler())
	registerMeRoutes(api)

	admin := api.Group("/admin", middleware.RequireAdmin())
	if deps.LifecycleHandler != nil {
		deps.LifecycleHandler.RegisterRoutes(api)
		deps.LifecycleHandler.RegisterAdminRoutes(admin)
	}
	if deps.SettingsHandler != nil {
		deps.SettingsHandler.RegisterRoutes(api)
		deps.SettingsHandler.RegisterAdminRoutes(admin)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
