package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/steadhac/finbot-ctf/models"
)

// memoryStore is an in-memory implementation of the store interfaces with the
// same idempotency semantics as the database-backed one
type memoryStore struct {
	mu         sync.Mutex
	challenges map[string]models.Challenge
	progress   map[string]models.ChallengeProgress
	scores     map[string]models.ScoreEvent
	badges     map[string]models.Badge
	awards     map[string]models.BadgeAward
	activity   []models.ActivityEvent
	activityID map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		challenges: make(map[string]models.Challenge),
		progress:   make(map[string]models.ChallengeProgress),
		scores:     make(map[string]models.ScoreEvent),
		badges:     make(map[string]models.Badge),
		awards:     make(map[string]models.BadgeAward),
		activityID: make(map[string]bool),
	}
}

func (m *memoryStore) addChallenge(challenge models.Challenge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[challenge.ID] = challenge
}

func (m *memoryStore) addBadge(badge models.Badge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.badges[badge.ID] = badge
}

func (m *memoryStore) ListChallenges(ctx context.Context, category, difficulty string, activeOnly bool) ([]models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Challenge
	for _, challenge := range m.challenges {
		if category != "" && challenge.Category != category {
			continue
		}
		if difficulty != "" && challenge.Difficulty != difficulty {
			continue
		}
		if activeOnly && !challenge.IsActive {
			continue
		}
		result = append(result, challenge)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].OrderIndex != result[j].OrderIndex {
			return result[i].OrderIndex < result[j].OrderIndex
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *memoryStore) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if challenge, exists := m.challenges[id]; exists {
		return &challenge, nil
	}
	return nil, nil
}

func (m *memoryStore) CountChallengesByCategory(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, challenge := range m.challenges {
		if challenge.IsActive {
			counts[challenge.Category]++
		}
	}
	return counts, nil
}

func (m *memoryStore) GetProgress(ctx context.Context, namespace, userID, challengeID string) (*models.ChallengeProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if progress, exists := m.progress[namespace+":"+userID+":"+challengeID]; exists {
		copied := progress
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryStore) ListProgress(ctx context.Context, namespace, userID string) ([]models.ChallengeProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.ChallengeProgress
	for _, progress := range m.progress {
		if progress.Namespace == namespace && progress.UserID == userID {
			result = append(result, progress)
		}
	}
	return result, nil
}

func (m *memoryStore) SaveProgress(ctx context.Context, progress *models.ChallengeProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[progress.Namespace+":"+progress.UserID+":"+progress.ChallengeID] = *progress
	return nil
}

func scoreKey(namespace, userID, reason, sourceID string) string {
	return namespace + ":" + userID + ":" + reason + ":" + sourceID
}

func (m *memoryStore) FindScoreEvent(ctx context.Context, namespace, userID, reason, sourceID string) (*models.ScoreEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event, exists := m.scores[scoreKey(namespace, userID, reason, sourceID)]; exists {
		copied := event
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryStore) AppendScoreEvent(ctx context.Context, event *models.ScoreEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scoreKey(event.Namespace, event.UserID, event.Reason, event.SourceID)
	if _, exists := m.scores[key]; exists {
		return false, nil
	}
	m.scores[key] = *event
	return true, nil
}

func (m *memoryStore) SumScoreDeltas(ctx context.Context, namespace, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, event := range m.scores {
		if event.Namespace == namespace && event.UserID == userID {
			total += event.Delta
		}
	}
	return total, nil
}

func (m *memoryStore) ListBadges(ctx context.Context, category string, activeOnly bool) ([]models.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Badge
	for _, badge := range m.badges {
		if category != "" && badge.Category != category {
			continue
		}
		if activeOnly && !badge.IsActive {
			continue
		}
		result = append(result, badge)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *memoryStore) GetBadge(ctx context.Context, id string) (*models.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if badge, exists := m.badges[id]; exists {
		return &badge, nil
	}
	return nil, nil
}

func awardKey(namespace, userID, badgeID string) string {
	return namespace + ":" + userID + ":" + badgeID
}

func (m *memoryStore) ListBadgeAwards(ctx context.Context, namespace, userID string) ([]models.BadgeAward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.BadgeAward
	for _, award := range m.awards {
		if award.Namespace == namespace && award.UserID == userID {
			result = append(result, award)
		}
	}
	return result, nil
}

func (m *memoryStore) GetBadgeAward(ctx context.Context, namespace, userID, badgeID string) (*models.BadgeAward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if award, exists := m.awards[awardKey(namespace, userID, badgeID)]; exists {
		copied := award
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryStore) CreateBadgeAward(ctx context.Context, award *models.BadgeAward) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := awardKey(award.Namespace, award.UserID, award.BadgeID)
	if _, exists := m.awards[key]; exists {
		return false, nil
	}
	m.awards[key] = *award
	return true, nil
}

func (m *memoryStore) AppendActivityEvent(ctx context.Context, event *models.ActivityEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activityID[event.ExternalEventID] {
		return false, nil
	}
	m.activityID[event.ExternalEventID] = true
	m.activity = append(m.activity, *event)
	return true, nil
}

func (m *memoryStore) QueryActivityEvents(ctx context.Context, namespace, userID string, filter ActivityFilter) ([]models.ActivityEvent, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []models.ActivityEvent
	for _, event := range m.activity {
		if event.Namespace != namespace || event.UserID != userID {
			continue
		}
		if filter.Category != "" && event.Category != filter.Category {
			continue
		}
		if filter.WorkflowID != "" && (event.WorkflowID == nil || *event.WorkflowID != filter.WorkflowID) {
			continue
		}
		if filter.VendorID != nil && (event.VendorID == nil || *event.VendorID != *filter.VendorID) {
			continue
		}
		matched = append(matched, event)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *memoryStore) ActivityDays(ctx context.Context, namespace, userID string) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[time.Time]bool)
	for _, event := range m.activity {
		if event.Namespace == namespace && event.UserID == userID {
			seen[event.Timestamp.UTC().Truncate(24*time.Hour)] = true
		}
	}

	var days []time.Time
	for day := range seen {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days, nil
}
