package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// sendBufferSize bounds the per-client outbound queue. When it overflows
	// the oldest events are dropped and the client is told it fell behind.
	sendBufferSize = 64
)

// Client is one websocket connection registered with the hub
type Client struct {
	ID        string
	Namespace string
	UserID    string

	hub  *Hub
	conn *websocket.Conn

	// mu guards send against producers racing closeSend: a Broadcast holding
	// a subscriber snapshot may call push after the client unregistered
	mu      sync.Mutex
	send    chan Event
	closed  bool
	lagging bool
}

// readPump consumes inbound messages until the connection drops. Malformed
// frames produce an error event without closing the connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error for client %s: %v", c.ID, err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.push(newEvent(TypeError, map[string]any{"message": "Invalid message format"}))
			continue
		}

		switch msg.Action {
		case "subscribe":
			if msg.Topic == "" {
				c.push(newEvent(TypeError, map[string]any{"message": "Topic is required"}))
				continue
			}
			c.hub.Subscribe(c, msg.Topic)
		case "unsubscribe":
			if msg.Topic == "" {
				c.push(newEvent(TypeError, map[string]any{"message": "Topic is required"}))
				continue
			}
			c.hub.Unsubscribe(c, msg.Topic)
		case "ping":
			c.push(newEvent(TypePong, nil))
		default:
			c.push(newEvent(TypeError, map[string]any{"message": "Unknown action: " + msg.Action}))
		}
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings. One writePump per connection is the only writer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// push enqueues an event for this client, dropping the oldest queued event
// when the buffer is full. The first drop of a lag episode also queues an
// error event telling the client it fell behind. Returns false on drop or
// when the client has already unregistered.
func (c *Client) push(event Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- event:
		c.lagging = false
		return true
	default:
	}

	// Slow consumer: evict the oldest event to make room
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- event:
	default:
	}

	if !c.lagging {
		c.lagging = true
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- newEvent(TypeError, map[string]any{"message": "Connection lagging, oldest events dropped"}):
		default:
		}
	}
	return false
}

// closeSend closes the outbound queue exactly once. It holds the same mutex
// as push, so no producer can send after it returns.
func (c *Client) closeSend() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}
