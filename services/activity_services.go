package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steadhac/finbot-ctf/config"
	"github.com/steadhac/finbot-ctf/models"
)

// StreamPublisher pushes events to live connections. Implemented by the
// realtime hub; a nil publisher disables pushes.
type StreamPublisher interface {
	PublishActivity(namespace, userID string, event models.ActivityEvent)
	PublishChallengeCompleted(namespace, userID, challengeID, title string, points int)
	PublishBadgeEarned(namespace, userID, badgeID, title, rarity string)
}

// ActivityPage is one page of activity query results
type ActivityPage struct {
	Items    []models.ActivityEvent
	Total    int64
	Page     int
	PageSize int
	HasMore  bool
}

// ActivityStream is the single entry point for all activity producers. It
// guarantees non-decreasing timestamps per namespace, deduplicates on the
// external event id, and fans appended events out to live subscribers.
type ActivityStream struct {
	store     ActivityStore
	publisher StreamPublisher

	mu             sync.Mutex
	lastTimestamps map[string]time.Time
}

func NewActivityStream(store ActivityStore, publisher StreamPublisher) *ActivityStream {
	return &ActivityStream{
		store:          store,
		publisher:      publisher,
		lastTimestamps: make(map[string]time.Time),
	}
}

// Append stores an activity event and pushes it to subscribers of the
// matching topic. Duplicate external event ids are dropped silently.
func (s *ActivityStream) Append(ctx context.Context, event *models.ActivityEvent) error {
	if event.ExternalEventID == "" {
		event.ExternalEventID = uuid.NewString()
	}
	if event.Severity == "" {
		event.Severity = "info"
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	// Clamp to the last timestamp seen in this namespace so append order
	// never runs backwards within a namespace
	s.mu.Lock()
	if last, exists := s.lastTimestamps[event.Namespace]; exists && event.Timestamp.Before(last) {
		event.Timestamp = last
	}
	s.lastTimestamps[event.Namespace] = event.Timestamp
	s.mu.Unlock()

	created, err := s.store.AppendActivityEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to append activity event: %w", err)
	}
	if !created {
		// Redelivered bus event, already stored and already pushed
		return nil
	}

	if s.publisher != nil {
		s.publisher.PublishActivity(event.Namespace, event.UserID, *event)
	}
	return nil
}

// Query returns one page of the user's activity, newest first
func (s *ActivityStream) Query(ctx context.Context, namespace, userID string, filter ActivityFilter) (*ActivityPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = config.DefaultCheckConfig.DefaultPageSize
	}
	if filter.PageSize > config.DefaultCheckConfig.MaxPageSize {
		filter.PageSize = config.DefaultCheckConfig.MaxPageSize
	}

	items, total, err := s.store.QueryActivityEvents(ctx, namespace, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity events: %w", err)
	}

	return &ActivityPage{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		HasMore:  int64(filter.Page*filter.PageSize) < total,
	}, nil
}

// AppendChallengeCompleted records a completion in the activity log and sends
// the dedicated challenge_completed push on top of the generic activity one
func (s *ActivityStream) AppendChallengeCompleted(ctx context.Context, namespace, userID string, challenge *models.Challenge, progress *models.ChallengeProgress) error {
	payload, _ := json.Marshal(map[string]any{
		"challenge_id": challenge.ID,
		"points":       challenge.Points,
		"attempts":     progress.Attempts,
	})
	payloadStr := string(payload)

	event := &models.ActivityEvent{
		Namespace:   namespace,
		UserID:      userID,
		Category:    models.CategoryChallenge,
		Type:        "challenge_completed",
		Summary:     fmt.Sprintf("Completed challenge: %s", challenge.Title),
		ChallengeID: &challenge.ID,
		WorkflowID:  progress.CompletionWorkflowID,
		Payload:     &payloadStr,
	}
	if err := s.Append(ctx, event); err != nil {
		return err
	}

	if s.publisher != nil {
		s.publisher.PublishChallengeCompleted(namespace, userID, challenge.ID, challenge.Title, challenge.Points)
	}
	return nil
}

// AppendHintUsed records a hint charge in the activity log
func (s *ActivityStream) AppendHintUsed(ctx context.Context, namespace, userID string, challenge *models.Challenge, hintIndex, cost int) error {
	payload, _ := json.Marshal(map[string]any{
		"challenge_id": challenge.ID,
		"hint_index":   hintIndex,
		"hint_cost":    cost,
	})
	payloadStr := string(payload)

	return s.Append(ctx, &models.ActivityEvent{
		Namespace:   namespace,
		UserID:      userID,
		Category:    models.CategoryChallenge,
		Type:        "challenge_hint_used",
		Summary:     fmt.Sprintf("Used hint %d on challenge: %s", hintIndex, challenge.Title),
		ChallengeID: &challenge.ID,
		Payload:     &payloadStr,
	})
}

// AppendBadgeEarned records a badge award and sends the dedicated
// badge_earned push
func (s *ActivityStream) AppendBadgeEarned(ctx context.Context, namespace, userID string, badge *models.Badge) error {
	payload, _ := json.Marshal(map[string]any{
		"badge_id": badge.ID,
		"rarity":   badge.Rarity,
		"points":   badge.Points,
	})
	payloadStr := string(payload)

	event := &models.ActivityEvent{
		Namespace: namespace,
		UserID:    userID,
		Category:  models.CategoryBadge,
		Type:      "badge_earned",
		Summary:   fmt.Sprintf("Earned badge: %s", badge.Title),
		BadgeID:   &badge.ID,
		Payload:   &payloadStr,
	}
	if err := s.Append(ctx, event); err != nil {
		return err
	}

	if s.publisher != nil {
		s.publisher.PublishBadgeEarned(namespace, userID, badge.ID, badge.Title, badge.Rarity)
	}
	return nil
}
