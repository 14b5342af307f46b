package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/steadhac/finbot-ctf/handlers/activity"
	"github.com/steadhac/finbot-ctf/handlers/badges"
	"github.com/steadhac/finbot-ctf/handlers/challenges"
	"github.com/steadhac/finbot-ctf/handlers/stats"
	"github.com/steadhac/finbot-ctf/middleware"
	"github.com/steadhac/finbot-ctf/realtime"
	"github.com/steadhac/finbot-ctf/services"
)

// Deps carries the wired services the route handlers depend on
type Deps struct {
	Store      services.Store
	Ledger     *services.ScoreLedger
	Challenges *services.ChallengeService
	Badges     *services.BadgeEvaluator
	Activity   *services.ActivityStream
	Hub        *realtime.Hub
}

// Register the endpoints for the v1 API
func Register(r *gin.Engine, deps Deps) {
	v1 := r.Group("/api/v1")

	// Add metrics middleware to all routes
	v1.Use(middleware.MetricsMiddleware())

	rateLimiter := middleware.NewRateLimiter(10000, 1500)
	v1.Use(middleware.RateLimiterMiddleware(rateLimiter))

	RegisterPingRoutes(v1)
	challenges.RegisterRoutes(v1, deps.Challenges, deps.Store, deps.Store)
	badges.RegisterRoutes(v1, deps.Badges, deps.Store)
	stats.RegisterRoutes(v1, deps.Ledger, deps.Store, deps.Store, deps.Store)
	activity.RegisterRoutes(v1, deps.Activity, deps.Hub)

	// Register metrics endpoint
	RegisterMetricsRoutes(v1)
}
