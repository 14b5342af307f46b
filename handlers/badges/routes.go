package badges

import (
	"github.com/gin-gonic/gin"

	"github.com/steadhac/finbot-ctf/middleware"
	"github.com/steadhac/finbot-ctf/services"
)

// RegisterRoutes registers all routes related to badges
// r: the RouterGroup to which the routes are added
func RegisterRoutes(r *gin.RouterGroup, badgeEvaluator *services.BadgeEvaluator, badgeStore services.BadgeStore) {
	evaluator = badgeEvaluator
	badgeRepo = badgeStore

	group := r.Group("/badges")
	group.Use(middleware.AuthMiddleware())
	{
		group.GET("/", GetBadges)
		group.GET("/:badgeID", GetBadge)
	}
}
