package realtime

import (
	"time"

	"github.com/steadhac/finbot-ctf/models"
)

// Outbound message types
const (
	TypeConnected          = "connected"
	TypeSubscribed         = "subscribed"
	TypeUnsubscribed       = "unsubscribed"
	TypePong               = "pong"
	TypeError              = "error"
	TypeActivity           = "activity"
	TypeChallengeCompleted = "challenge_completed"
	TypeBadgeEarned        = "badge_earned"
)

// Event is the envelope for every message pushed to a client
type Event struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// clientMessage is the envelope for every message a client sends
type clientMessage struct {
	Action string `json:"action"`
	Topic  string `json:"topic,omitempty"`
}

func newEvent(eventType string, data map[string]any) Event {
	return Event{Type: eventType, Data: data, Timestamp: time.Now().UTC()}
}

// ActivityTopic is the per-user topic every connection is subscribed to on register
func ActivityTopic(namespace, userID string) string {
	return "activity:" + namespace + ":" + userID
}

// NewActivityEvent wraps a stored activity event for streaming
func NewActivityEvent(event *models.ActivityEvent) Event {
	return newEvent(TypeActivity, map[string]any{
		"id":           event.ID,
		"namespace":    event.Namespace,
		"user_id":      event.UserID,
		"category":     event.Category,
		"type":         event.Type,
		"summary":      event.Summary,
		"severity":     event.Severity,
		"agent_name":   event.AgentName,
		"tool_name":    event.ToolName,
		"workflow_id":  event.WorkflowID,
		"vendor_id":    event.VendorID,
		"challenge_id": event.ChallengeID,
		"badge_id":     event.BadgeID,
		"timestamp":    event.Timestamp,
	})
}

// NewChallengeCompletedEvent announces a completion to the completing user
func NewChallengeCompletedEvent(challengeID, title string, pointsAwarded int) Event {
	return newEvent(TypeChallengeCompleted, map[string]any{
		"challenge_id":   challengeID,
		"title":          title,
		"points_awarded": pointsAwarded,
	})
}

// NewBadgeEarnedEvent announces a badge award to the earning user
func NewBadgeEarnedEvent(badgeID, title, rarity string) Event {
	return newEvent(TypeBadgeEarned, map[string]any{
		"badge_id": badgeID,
		"title":    title,
		"rarity":   rarity,
	})
}
