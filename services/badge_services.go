package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/steadhac/finbot-ctf/metrics"
	"github.com/steadhac/finbot-ctf/models"
)

// CriterionDeps is the read surface criteria evaluate against
type CriterionDeps struct {
	Challenges ChallengeStore
	Progress   ProgressStore
	Scores     ScoreStore
	Activity   ActivityStore
}

// Criterion decides whether a badge is earned. Implementations are registered
// by class name and constructed per badge from its config.
type Criterion interface {
	// EventTypes narrows which bus events trigger re-evaluation; empty means
	// evaluate on every change
	EventTypes() []string
	Satisfied(ctx context.Context, namespace, userID string) (bool, error)
	// Progress reports advancement toward the criterion for display
	Progress(ctx context.Context, namespace, userID string) (map[string]any, error)
}

// CriterionFactory builds a criterion for one badge from its decoded config
type CriterionFactory func(badgeID string, criterionConfig map[string]any, deps CriterionDeps) (Criterion, error)

var criterionRegistry = map[string]CriterionFactory{}

// RegisterCriterion registers a criterion class by name
func RegisterCriterion(name string, factory CriterionFactory) {
	criterionRegistry[name] = factory
}

// BadgeEvaluator evaluates unmet badge criteria after each ledger or progress
// change. Awards are created at most once per (user, badge); the store's
// unique index backs the in-flight existence check.
type BadgeEvaluator struct {
	badges   BadgeStore
	deps     CriterionDeps
	ledger   *ScoreLedger
	activity *ActivityStream

	mu       sync.Mutex
	criteria map[string]Criterion
}

func NewBadgeEvaluator(badges BadgeStore, deps CriterionDeps, ledger *ScoreLedger, activity *ActivityStream) *BadgeEvaluator {
	return &BadgeEvaluator{
		badges:   badges,
		deps:     deps,
		ledger:   ledger,
		activity: activity,
		criteria: make(map[string]Criterion),
	}
}

// Evaluate checks every unmet badge criterion for the user and awards each
// newly satisfied badge exactly once
func (e *BadgeEvaluator) Evaluate(ctx context.Context, namespace, userID string) ([]models.BadgeAward, error) {
	return e.EvaluateForEvent(ctx, namespace, userID, "")
}

// EvaluateForEvent is Evaluate restricted to criteria that react to the given
// bus event type; an empty type evaluates all criteria
func (e *BadgeEvaluator) EvaluateForEvent(ctx context.Context, namespace, userID, eventType string) ([]models.BadgeAward, error) {
	badges, err := e.badges.ListBadges(ctx, "", true)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}

	var awarded []models.BadgeAward
	for i := range badges {
		badge := &badges[i]

		criterion, err := e.criterionFor(badge)
		if err != nil {
			log.Printf("Skipping badge %s: %v", badge.ID, err)
			continue
		}

		if eventType != "" {
			if types := criterion.EventTypes(); len(types) > 0 && !MatchesEventType(types, eventType) {
				continue
			}
		}

		existing, err := e.badges.GetBadgeAward(ctx, namespace, userID, badge.ID)
		if err != nil {
			return awarded, fmt.Errorf("failed to check badge award: %w", err)
		}
		if existing != nil {
			continue
		}

		satisfied, err := criterion.Satisfied(ctx, namespace, userID)
		if err != nil {
			log.Printf("Error evaluating badge %s for user %s: %v", badge.ID, userID, err)
			continue
		}
		if !satisfied {
			continue
		}

		award, created, err := e.award(ctx, namespace, userID, badge)
		if err != nil {
			log.Printf("Error awarding badge %s to user %s: %v", badge.ID, userID, err)
			continue
		}
		if created {
			awarded = append(awarded, *award)
		}
	}

	return awarded, nil
}

func (e *BadgeEvaluator) award(ctx context.Context, namespace, userID string, badge *models.Badge) (*models.BadgeAward, bool, error) {
	awardContext, _ := json.Marshal(map[string]any{
		"criterion_class": badge.CriterionClass,
	})
	contextStr := string(awardContext)

	award := &models.BadgeAward{
		Namespace: namespace,
		UserID:    userID,
		BadgeID:   badge.ID,
		EarnedAt:  time.Now().UTC(),
		Context:   &contextStr,
	}

	created, err := e.badges.CreateBadgeAward(ctx, award)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create badge award: %w", err)
	}
	if !created {
		// A concurrent evaluation awarded it first
		return nil, false, nil
	}

	log.Printf("Badge awarded: %s to user %s (%s)", badge.ID, userID, badge.Rarity)
	metrics.BadgesAwarded.WithLabelValues(badge.ID, badge.Rarity).Inc()

	if badge.Points > 0 {
		if _, _, err := e.ledger.Award(ctx, namespace, userID, badge.Points, models.ReasonBadgeBonus, badge.ID); err != nil {
			return nil, false, fmt.Errorf("failed to record badge bonus: %w", err)
		}
	}

	if e.activity != nil {
		if err := e.activity.AppendBadgeEarned(ctx, namespace, userID, badge); err != nil {
			log.Printf("Failed to append badge activity for %s: %v", badge.ID, err)
		}
	}

	return award, true, nil
}

// CriterionProgress reports the user's advancement toward an unearned badge
func (e *BadgeEvaluator) CriterionProgress(ctx context.Context, namespace, userID string, badge *models.Badge) (map[string]any, error) {
	criterion, err := e.criterionFor(badge)
	if err != nil {
		return nil, err
	}
	return criterion.Progress(ctx, namespace, userID)
}

func (e *BadgeEvaluator) criterionFor(badge *models.Badge) (Criterion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if criterion, exists := e.criteria[badge.ID]; exists {
		return criterion, nil
	}

	factory, exists := criterionRegistry[badge.CriterionClass]
	if !exists {
		return nil, fmt.Errorf("unknown criterion class: %s", badge.CriterionClass)
	}

	criterionConfig := map[string]any{}
	if badge.CriterionConfig != nil && *badge.CriterionConfig != "" {
		if err := json.Unmarshal([]byte(*badge.CriterionConfig), &criterionConfig); err != nil {
			return nil, fmt.Errorf("invalid criterion config for %s: %w", badge.ID, err)
		}
	}

	criterion, err := factory(badge.ID, criterionConfig, e.deps)
	if err != nil {
		return nil, err
	}

	e.criteria[badge.ID] = criterion
	return criterion, nil
}

// ClearCriteria drops cached criteria so reloaded definitions take effect
func (e *BadgeEvaluator) ClearCriteria() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.criteria = make(map[string]Criterion)
}
