package activity

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/steadhac/finbot-ctf/middleware"
	"github.com/steadhac/finbot-ctf/realtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var hub *realtime.Hub

// ActivityWebSocket upgrades the connection and registers it with the hub.
// The client is auto-subscribed to its own activity topic; further topics are
// managed with subscribe/unsubscribe messages.
func ActivityWebSocket(c *gin.Context) {
	session := middleware.GetSession(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	hub.Register(conn, session.Namespace, session.UserID)
}
