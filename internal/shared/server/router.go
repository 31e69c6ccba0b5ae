package server

import (
	"github.com/gin-gonic/gin"

	"goalsectors-backend/internal/shared/config"
	"goalsectors-backend/internal/shared/metrics"
	"goalsectors-backend/internal/shared/server/middleware"
	"goalsectors-backend/internal/shared/server/respond"
)

const coachTurnGroup = "COACH_TURN"

// RouteRegistrar is implemented by every domain handler.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries the handlers wired by bootstrap. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	CoachHandler    RouteRegistrar
	FeedbackHandler RouteRegistrar
	SectorsHandler  RouteRegistrar
	Health          func(c *gin.Context) any
	RateLimiter     *middleware.RateLimiter
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
		middleware.Identity(),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		respond.OK(c, deps.Health(c))
	})

	limited := api.Group("")
	limited.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			coachTurnGroup: {Rate: deps.Config.RateLimit.Rate, Burst: deps.Config.RateLimit.Burst},
		},
		DefaultGroup: coachTurnGroup,
		Limiter:      deps.RateLimiter,
	}))

	register(limited, deps.CoachHandler)
	register(api, deps.FeedbackHandler)
	register(api, deps.SectorsHandler)

	return r
}

func register(rg *gin.RouterGroup, h RouteRegistrar) {
	if h == nil {
		return
	}
	h.RegisterRoutes(rg)
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
