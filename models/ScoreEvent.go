package models

import "time"

// Score event reasons
const (
	ReasonChallengeAward = "challenge_award"
	ReasonHintCost       = "hint_cost"
	ReasonBadgeBonus     = "badge_bonus"
)

// ScoreEvent is one signed point delta in the append-only score ledger.
// The composite unique index on (namespace, user_id, reason, source_id) is
// the idempotency key: a retried award resolves to the existing row.
type ScoreEvent struct {
	ID        string    `gorm:"type:uuid;default:gen_random_uuid();primary_key" json:"id"`
	Namespace string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_score_idempotency" json:"namespace"`
	UserID    string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_score_idempotency;column:user_id" json:"user_id"`
	Delta     int       `gorm:"type:integer;not null" json:"delta"`
	Reason    string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_score_idempotency" json:"reason"`
	SourceID  string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_score_idempotency;column:source_id" json:"source_id"`
	CreatedAt time.Time `gorm:"type:timestamp;not null;column:created_at" json:"created_at"`
}
