package activity

import (
	"github.com/gin-gonic/gin"

	"github.com/steadhac/finbot-ctf/middleware"
	"github.com/steadhac/finbot-ctf/realtime"
	"github.com/steadhac/finbot-ctf/services"
)

// RegisterRoutes registers the activity feed and websocket routes
// r: the RouterGroup to which the routes are added
func RegisterRoutes(r *gin.RouterGroup, activityStream *services.ActivityStream, realtimeHub *realtime.Hub) {
	stream = activityStream
	hub = realtimeHub

	group := r.Group("/activity")
	group.Use(middleware.AuthMiddleware())
	{
		group.GET("/", GetActivity)
	}

	// Websocket upgrades carry the token as a query parameter
	r.GET("/ws", middleware.AuthMiddleware(), ActivityWebSocket)
}
