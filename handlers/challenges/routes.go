package challenges

import (
	"github.com/gin-gonic/gin"

	"github.com/steadhac/finbot-ctf/middleware"
	"github.com/steadhac/finbot-ctf/services"
)

// RegisterRoutes registers all routes related to challenges
// r: the RouterGroup to which the routes are added
func RegisterRoutes(r *gin.RouterGroup, svc *services.ChallengeService, challengeStore services.ChallengeStore, progressStore services.ProgressStore) {
	service = svc
	challengeRepo = challengeStore
	progressRepo = progressStore

	checkRateLimiter := middleware.NewRateLimiter(600, 30)

	group := r.Group("/challenges")
	group.Use(middleware.AuthMiddleware())
	{
		group.GET("/", GetChallenges)
		group.GET("/:challengeID", GetChallenge)
		group.POST("/:challengeID/start", StartChallenge)
		group.POST("/:challengeID/check", middleware.RateLimiterMiddleware(checkRateLimiter), CheckChallenge)
		group.POST("/:challengeID/hint", UseHint)
	}
}
