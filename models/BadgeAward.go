package models

import "time"

// BadgeAward records a badge earned by a user. The composite unique index
// enforces at most one award per (namespace, user, badge).
type BadgeAward struct {
	ID         string    `gorm:"type:uuid;default:gen_random_uuid();primary_key" json:"id"`
	Namespace  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_award_user_badge" json:"namespace"`
	UserID     string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_award_user_badge;column:user_id" json:"user_id"`
	BadgeID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_award_user_badge;column:badge_id" json:"badge_id"`
	EarnedAt   time.Time `gorm:"type:timestamp;not null;column:earned_at" json:"earned_at"`
	Context    *string   `gorm:"type:text" json:"-"`
	WorkflowID *string   `gorm:"type:varchar(64);column:workflow_id" json:"workflow_id"`
	Badge      *Badge    `gorm:"foreignKey:BadgeID" json:"-"`
}
