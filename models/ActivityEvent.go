package models

import "time"

// Activity event categories
const (
	CategoryAgent     = "agent"
	CategoryTool      = "tool"
	CategoryBusiness  = "business"
	CategoryLLM       = "llm"
	CategoryChallenge = "challenge"
	CategoryBadge     = "badge"
)

// ActivityEvent is one entry in the append-only per-namespace activity log.
// ExternalEventID deduplicates redelivered bus events; within a namespace
// timestamps are non-decreasing in append order.
type ActivityEvent struct {
	ID              string    `gorm:"type:uuid;default:gen_random_uuid();primary_key" json:"id"`
	ExternalEventID string    `gorm:"type:varchar(128);not null;uniqueIndex;column:external_event_id" json:"-"`
	Namespace       string    `gorm:"type:varchar(64);not null;index:idx_activity_namespace_user;index:idx_activity_namespace_time" json:"namespace"`
	UserID          string    `gorm:"type:varchar(32);not null;index:idx_activity_namespace_user;column:user_id" json:"user_id"`
	Category        string    `gorm:"type:varchar(20);not null" json:"category"`
	Type            string    `gorm:"type:varchar(100);not null" json:"type"`
	Summary         string    `gorm:"type:varchar(255);not null" json:"summary"`
	Severity        string    `gorm:"type:varchar(20);not null;default:'info'" json:"severity"`
	AgentName       *string   `gorm:"type:varchar(100);column:agent_name" json:"agent_name"`
	ToolName        *string   `gorm:"type:varchar(100);column:tool_name" json:"tool_name"`
	WorkflowID      *string   `gorm:"type:varchar(64);column:workflow_id" json:"workflow_id"`
	VendorID        *int      `gorm:"type:integer;column:vendor_id" json:"vendor_id"`
	ChallengeID     *string   `gorm:"type:varchar(64);column:challenge_id" json:"challenge_id"`
	BadgeID         *string   `gorm:"type:varchar(64);column:badge_id" json:"badge_id"`
	Payload         *string   `gorm:"type:text" json:"-"`
	Timestamp       time.Time `gorm:"type:timestamp;not null;index:idx_activity_namespace_time" json:"timestamp"`
}
