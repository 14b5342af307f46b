package services

import (
	"context"
	"time"

	"github.com/steadhac/finbot-ctf/models"
)

// Store is the full persistence surface, implemented by the database package
type Store interface {
	ChallengeStore
	ProgressStore
	ScoreStore
	BadgeStore
	ActivityStore
}

// ChallengeStore reads the immutable challenge catalog
type ChallengeStore interface {
	ListChallenges(ctx context.Context, category, difficulty string, activeOnly bool) ([]models.Challenge, error)
	GetChallenge(ctx context.Context, id string) (*models.Challenge, error)
	CountChallengesByCategory(ctx context.Context) (map[string]int, error)
}

// ProgressStore persists per-(namespace, user, challenge) progress rows
type ProgressStore interface {
	// GetProgress returns nil without error when no row exists
	GetProgress(ctx context.Context, namespace, userID, challengeID string) (*models.ChallengeProgress, error)
	ListProgress(ctx context.Context, namespace, userID string) ([]models.ChallengeProgress, error)
	SaveProgress(ctx context.Context, progress *models.ChallengeProgress) error
}

// ScoreStore persists the append-only score ledger
type ScoreStore interface {
	// FindScoreEvent returns nil without error when no row matches the idempotency key
	FindScoreEvent(ctx context.Context, namespace, userID, reason, sourceID string) (*models.ScoreEvent, error)
	// AppendScoreEvent inserts the event; created is false when the
	// idempotency key already exists
	AppendScoreEvent(ctx context.Context, event *models.ScoreEvent) (created bool, err error)
	SumScoreDeltas(ctx context.Context, namespace, userID string) (int, error)
}

// BadgeStore reads the badge catalog and persists awards
type BadgeStore interface {
	ListBadges(ctx context.Context, category string, activeOnly bool) ([]models.Badge, error)
	GetBadge(ctx context.Context, id string) (*models.Badge, error)
	ListBadgeAwards(ctx context.Context, namespace, userID string) ([]models.BadgeAward, error)
	GetBadgeAward(ctx context.Context, namespace, userID, badgeID string) (*models.BadgeAward, error)
	// CreateBadgeAward inserts the award; created is false when the user
	// already holds the badge
	CreateBadgeAward(ctx context.Context, award *models.BadgeAward) (created bool, err error)
}

// ActivityFilter narrows an activity query
type ActivityFilter struct {
	Category   string
	WorkflowID string
	VendorID   *int
	Page       int
	PageSize   int
}

// ActivityStore persists the append-only activity log
type ActivityStore interface {
	// AppendActivityEvent inserts the event; created is false when the
	// external event id was already stored
	AppendActivityEvent(ctx context.Context, event *models.ActivityEvent) (created bool, err error)
	QueryActivityEvents(ctx context.Context, namespace, userID string, filter ActivityFilter) ([]models.ActivityEvent, int64, error)
	// ActivityDays returns the distinct UTC calendar days with at least one
	// event for the user, most recent first
	ActivityDays(ctx context.Context, namespace, userID string) ([]time.Time, error)
}
