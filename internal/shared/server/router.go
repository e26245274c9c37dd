package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"competitor-knowledge/internal/analyses"
	"competitor-knowledge/internal/services/health"
	"competitor-knowledge/internal/shared/config"
	"competitor-knowledge/internal/shared/metrics"
	"competitor-knowledge/internal/shared/server/middleware"
	"competitor-knowledge/internal/shared/server/respond"
)

// RouterDeps carries the handlers mounted on the API router.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analyses.Handler
	Health          *health.Service
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: middleware.AnalyzeGroup,
			Limiter:  deps.RateLimiter,
			Rules: map[string]middleware.RateLimitRule{
				middleware.RateLimitGroupAnalyze: {Rate: 0.5, Burst: 5},
			},
		}),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	healthHandler := func(c *gin.Context) {
		status, ok := healthSvc.Status(c.Request.Context())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, gin.H{"ok": ok, "checks": status})
	}
	r.GET("/health", healthHandler)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler)
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
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
