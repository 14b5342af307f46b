package realtime

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/steadhac/finbot-ctf/metrics"
	"github.com/steadhac/finbot-ctf/models"
)

// Hub tracks every open connection, its topic subscriptions, and the reverse
// index from (namespace, user) to connections. Per-topic delivery preserves
// publish order because each client drains a single FIFO channel.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*Client
	userConns map[string]map[string]*Client
	topicSubs map[string]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		userConns: make(map[string]map[string]*Client),
		topicSubs: make(map[string]map[string]*Client),
	}
}

func userKey(namespace, userID string) string {
	return namespace + ":" + userID
}

// Register wires a new connection into the hub, auto-subscribes it to the
// user's activity topic, and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn, namespace, userID string) *Client {
	client := &Client{
		ID:        uuid.New().String(),
		Namespace: namespace,
		UserID:    userID,
		hub:       h,
		conn:      conn,
		send:      make(chan Event, sendBufferSize),
	}

	key := userKey(namespace, userID)
	topic := ActivityTopic(namespace, userID)

	h.mu.Lock()
	h.clients[client.ID] = client
	if h.userConns[key] == nil {
		h.userConns[key] = make(map[string]*Client)
	}
	h.userConns[key][client.ID] = client
	if h.topicSubs[topic] == nil {
		h.topicSubs[topic] = make(map[string]*Client)
	}
	h.topicSubs[topic][client.ID] = client
	h.mu.Unlock()

	metrics.WebsocketConnections.Inc()

	client.push(newEvent(TypeConnected, map[string]any{
		"connection_id": client.ID,
		"topics":        []string{topic},
	}))

	go client.writePump()
	go client.readPump()

	return client
}

// Unregister removes a connection from every index and closes its queue
func (h *Hub) Unregister(client *Client) {
	key := userKey(client.Namespace, client.UserID)

	h.mu.Lock()
	if _, exists := h.clients[client.ID]; !exists {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ID)
	if conns, exists := h.userConns[key]; exists {
		delete(conns, client.ID)
		if len(conns) == 0 {
			delete(h.userConns, key)
		}
	}
	for topic, subs := range h.topicSubs {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.topicSubs, topic)
		}
	}
	h.mu.Unlock()

	client.closeSend()
	metrics.WebsocketConnections.Dec()
}

// Subscribe adds the client to a topic and acknowledges it
func (h *Hub) Subscribe(client *Client, topic string) {
	h.mu.Lock()
	if h.topicSubs[topic] == nil {
		h.topicSubs[topic] = make(map[string]*Client)
	}
	h.topicSubs[topic][client.ID] = client
	h.mu.Unlock()

	client.push(newEvent(TypeSubscribed, map[string]any{"topic": topic}))
}

// Unsubscribe removes the client from a topic and acknowledges it
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	if subs, exists := h.topicSubs[topic]; exists {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.topicSubs, topic)
		}
	}
	h.mu.Unlock()

	client.push(newEvent(TypeUnsubscribed, map[string]any{"topic": topic}))
}

// Broadcast delivers an event to every subscriber of a topic
func (h *Hub) Broadcast(topic string, event Event) {
	h.mu.RLock()
	subs := make([]*Client, 0, len(h.topicSubs[topic]))
	for _, client := range h.topicSubs[topic] {
		subs = append(subs, client)
	}
	h.mu.RUnlock()

	for _, client := range subs {
		if !client.push(event) {
			metrics.WebsocketDroppedEvents.Inc()
			log.Printf("Dropped event for slow client %s on topic %s", client.ID, topic)
		}
	}
}

// SendToUser delivers an event to every connection of one user
func (h *Hub) SendToUser(namespace, userID string, event Event) {
	key := userKey(namespace, userID)

	h.mu.RLock()
	conns := make([]*Client, 0, len(h.userConns[key]))
	for _, client := range h.userConns[key] {
		conns = append(conns, client)
	}
	h.mu.RUnlock()

	for _, client := range conns {
		if !client.push(event) {
			metrics.WebsocketDroppedEvents.Inc()
			log.Printf("Dropped event for slow client %s of user %s", client.ID, key)
		}
	}
}

// ConnectionCount returns the number of open connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishActivity streams a stored activity event to its topic subscribers
func (h *Hub) PublishActivity(namespace, userID string, event models.ActivityEvent) {
	h.Broadcast(ActivityTopic(namespace, userID), NewActivityEvent(&event))
}

// PublishChallengeCompleted notifies the completing user on all connections
func (h *Hub) PublishChallengeCompleted(namespace, userID, challengeID, title string, points int) {
	h.SendToUser(namespace, userID, NewChallengeCompletedEvent(challengeID, title, points))
}

// PublishBadgeEarned notifies the earning user on all connections
func (h *Hub) PublishBadgeEarned(namespace, userID, badgeID, title, rarity string) {
	h.SendToUser(namespace, userID, NewBadgeEarnedEvent(badgeID, title, rarity))
}
