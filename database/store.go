package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/steadhac/finbot-ctf/metrics"
	"github.com/steadhac/finbot-ctf/models"
	"github.com/steadhac/finbot-ctf/services"
)

// Store is the gorm-backed implementation of the service store interfaces
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListChallenges(ctx context.Context, category, difficulty string, activeOnly bool) ([]models.Challenge, error) {
	defer metrics.RecordDBOperation("select", "challenges", time.Now())

	query := s.db.WithContext(ctx).Model(&models.Challenge{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if difficulty != "" {
		query = query.Where("difficulty = ?", difficulty)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var challenges []models.Challenge
	if err := query.Order("order_index asc, id asc").Find(&challenges).Error; err != nil {
		return nil, err
	}
	return challenges, nil
}

func (s *Store) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	var challenge models.Challenge
	err := s.db.WithContext(ctx).First(&challenge, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (s *Store) CountChallengesByCategory(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Category string
		Count    int
	}
	err := s.db.WithContext(ctx).Model(&models.Challenge{}).
		Select("category, count(*) as count").
		Where("is_active = ?", true).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}

func (s *Store) GetProgress(ctx context.Context, namespace, userID, challengeID string) (*models.ChallengeProgress, error) {
	var progress models.ChallengeProgress
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND user_id = ? AND challenge_id = ?", namespace, userID, challengeID).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (s *Store) ListProgress(ctx context.Context, namespace, userID string) ([]models.ChallengeProgress, error) {
	var progress []models.ChallengeProgress
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND user_id = ?", namespace, userID).
		Find(&progress).Error
	if err != nil {
		return nil, err
	}
	return progress, nil
}

func (s *Store) SaveProgress(ctx context.Context, progress *models.ChallengeProgress) error {
	defer metrics.RecordDBOperation("save", "challenge_progresses", time.Now())
	return s.db.WithContext(ctx).Save(progress).Error
}

func (s *Store) FindScoreEvent(ctx context.Context, namespace, userID, reason, sourceID string) (*models.ScoreEvent, error) {
	var event models.ScoreEvent
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND user_id = ? AND reason = ? AND source_id = ?", namespace, userID, reason, sourceID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// AppendScoreEvent relies on the unique index over the idempotency key: a
// conflicting insert affects zero rows and reports created=false.
func (s *Store) AppendScoreEvent(ctx context.Context, event *models.ScoreEvent) (bool, error) {
	defer metrics.RecordDBOperation("insert", "score_events", time.Now())

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) SumScoreDeltas(ctx context.Context, namespace, userID string) (int, error) {
	var total *int
	err := s.db.WithContext(ctx).Model(&models.ScoreEvent{}).
		Select("sum(delta)").
		Where("namespace = ? AND user_id = ?", namespace, userID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (s *Store) ListBadges(ctx context.Context, category string, activeOnly bool) ([]models.Badge, error) {
	query := s.db.WithContext(ctx).Model(&models.Badge{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var badges []models.Badge
	if err := query.Order("id asc").Find(&badges).Error; err != nil {
		return nil, err
	}
	return badges, nil
}

func (s *Store) GetBadge(ctx context.Context, id string) (*models.Badge, error) {
	var badge models.Badge
	err := s.db.WithContext(ctx).First(&badge, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

func (s *Store) ListBadgeAwards(ctx context.Context, namespace, userID string) ([]models.BadgeAward, error) {
	var awards []models.BadgeAward
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND user_id = ?", namespace, userID).
		Order("earned_at asc").
		Find(&awards).Error
	if err != nil {
		return nil, err
	}
	return awards, nil
}

func (s *Store) GetBadgeAward(ctx context.Context, namespace, userID, badgeID string) (*models.BadgeAward, error) {
	var award models.BadgeAward
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND user_id = ? AND badge_id = ?", namespace, userID, badgeID).
		First(&award).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &award, nil
}

func (s *Store) CreateBadgeAward(ctx context.Context, award *models.BadgeAward) (bool, error) {
	defer metrics.RecordDBOperation("insert", "badge_awards", time.Now())

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(award)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) AppendActivityEvent(ctx context.Context, event *models.ActivityEvent) (bool, error) {
	defer metrics.RecordDBOperation("insert", "activity_events", time.Now())

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) QueryActivityEvents(ctx context.Context, namespace, userID string, filter services.ActivityFilter) ([]models.ActivityEvent, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ActivityEvent{}).
		Where("namespace = ? AND user_id = ?", namespace, userID)
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.WorkflowID != "" {
		query = query.Where("workflow_id = ?", filter.WorkflowID)
	}
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []models.ActivityEvent
	offset := (filter.Page - 1) * filter.PageSize
	err := query.Order("timestamp desc, id desc").
		Offset(offset).
		Limit(filter.PageSize).
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (s *Store) ActivityDays(ctx context.Context, namespace, userID string) ([]time.Time, error) {
	var days []time.Time
	err := s.db.WithContext(ctx).Model(&models.ActivityEvent{}).
		Select("DISTINCT date_trunc('day', timestamp) AS day").
		Where("namespace = ? AND user_id = ?", namespace, userID).
		Order("day desc").
		Pluck("day", &days).Error
	if err != nil {
		return nil, err
	}
	return days, nil
}
