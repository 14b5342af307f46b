package services

import (
	"context"
	"fmt"
	"time"

	"github.com/steadhac/finbot-ctf/models"
)

func init() {
	RegisterCriterion("challenge_count", newChallengeCountCriterion)
	RegisterCriterion("category_complete", newCategoryCompleteCriterion)
	RegisterCriterion("no_hint_completion", newNoHintCompletionCriterion)
	RegisterCriterion("points_threshold", newPointsThresholdCriterion)
	RegisterCriterion("streak", newStreakCriterion)
}

func intConfig(criterionConfig map[string]any, key string) (int, bool) {
	raw, exists := criterionConfig[key]
	if !exists {
		return 0, false
	}
	value, ok := raw.(float64)
	if !ok {
		return 0, false
	}
	return int(value), true
}

func progressReport(current, target int) map[string]any {
	percentage := 100
	if target > 0 {
		percentage = current * 100 / target
		if percentage > 100 {
			percentage = 100
		}
	}
	return map[string]any{"current": current, "target": target, "percentage": percentage}
}

// challengeCountCriterion: at least min_count challenges completed, optionally
// restricted to one category
type challengeCountCriterion struct {
	deps     CriterionDeps
	minCount int
	category string
}

func newChallengeCountCriterion(badgeID string, criterionConfig map[string]any, deps CriterionDeps) (Criterion, error) {
	minCount, exists := intConfig(criterionConfig, "min_count")
	if !exists || minCount < 1 {
		return nil, fmt.Errorf("min_count is required")
	}
	category, _ := criterionConfig["category"].(string)
	return &challengeCountCriterion{deps: deps, minCount: minCount, category: category}, nil
}

func (c *challengeCountCriterion) EventTypes() []string { return nil }

func (c *challengeCountCriterion) completedCount(ctx context.Context, namespace, userID string) (int, error) {
	progress, err := c.deps.Progress.ListProgress(ctx, namespace, userID)
	if err != nil {
		return 0, err
	}

	categoryFilter := map[string]bool{}
	if c.category != "" {
		challenges, err := c.deps.Challenges.ListChallenges(ctx, c.category, "", true)
		if err != nil {
			return 0, err
		}
		for _, challenge := range challenges {
			categoryFilter[challenge.ID] = true
		}
	}

	count := 0
	for _, p := range progress {
		if p.Status != models.StatusCompleted {
			continue
		}
		if c.category != "" && !categoryFilter[p.ChallengeID] {
			continue
		}
		count++
	}
	return count, nil
}

func (c *challengeCountCriterion) Satisfied(ctx context.Context, namespace, userID string) (bool, error) {
	count, err := c.completedCount(ctx, namespace, userID)
	if err != nil {
		return false, err
	}
	return count >= c.minCount, nil
}

func (c *challengeCountCriterion) Progress(ctx context.Context, namespace, userID string) (map[string]any, error) {
	count, err := c.completedCount(ctx, namespace, userID)
	if err != nil {
		return nil, err
	}
	return progressReport(count, c.minCount), nil
}

// categoryCompleteCriterion: every active challenge of one category completed
type categoryCompleteCriterion struct {
	deps     CriterionDeps
	category string
}

func newCategoryCompleteCriterion(badgeID string, criterionConfig map[string]any, deps CriterionDeps) (Criterion, error) {
	category, _ := criterionConfig["category"].(string)
	if category == "" {
		return nil, fmt.Errorf("category is required")
	}
	return &categoryCompleteCriterion{deps: deps, category: category}, nil
}

func (c *categoryCompleteCriterion) EventTypes() []string { return nil }

func (c *categoryCompleteCriterion) counts(ctx context.Context, namespace, userID string) (completed, total int, err error) {
	challenges, err := c.deps.Challenges.ListChallenges(ctx, c.category, "", true)
	if err != nil {
		return 0, 0, err
	}

	progress, err := c.deps.Progress.ListProgress(ctx, namespace, userID)
	if err != nil {
		return 0, 0, err
	}

	completedIDs := map[string]bool{}
	for _, p := range progress {
		if p.Status == models.StatusCompleted {
			completedIDs[p.ChallengeID] = true
		}
	}

	for _, challenge := range challenges {
		if completedIDs[challenge.ID] {
			completed++
		}
	}
	return completed, len(challenges), nil
}

func (c *categoryCompleteCriterion) Satisfied(ctx context.Context, namespace, userID string) (bool, error) {
	completed, total, err := c.counts(ctx, namespace, userID)
	if err != nil {
		return false, err
	}
	return total > 0 && completed == total, nil
}

func (c *categoryCompleteCriterion) Progress(ctx context.Context, namespace, userID string) (map[string]any, error) {
	completed, total, err := c.counts(ctx, namespace, userID)
	if err != nil {
		return nil, err
	}
	report := progressReport(completed, total)
	report["category"] = c.category
	return report, nil
}

// noHintCompletionCriterion: at least one challenge completed without using
// any hints
type noHintCompletionCriterion struct {
	deps CriterionDeps
}

func newNoHintCompletionCriterion(badgeID string, criterionConfig map[string]any, deps CriterionDeps) (Criterion, error) {
	return &noHintCompletionCriterion{deps: deps}, nil
}

func (c *noHintCompletionCriterion) EventTypes() []string { return nil }

func (c *noHintCompletionCriterion) Satisfied(ctx context.Context, namespace, userID string) (bool, error) {
	progress, err := c.deps.Progress.ListProgress(ctx, namespace, userID)
	if err != nil {
		return false, err
	}
	for _, p := range progress {
		if p.Status == models.StatusCompleted && len(p.UsedHintIndices()) == 0 {
			return true, nil
		}
	}
	return false, nil
}

func (c *noHintCompletionCriterion) Progress(ctx context.Context, namespace, userID string) (map[string]any, error) {
	satisfied, err := c.Satisfied(ctx, namespace, userID)
	if err != nil {
		return nil, err
	}
	current := 0
	if satisfied {
		current = 1
	}
	return progressReport(current, 1), nil
}

// pointsThresholdCriterion: ledger total at or above min_points
type pointsThresholdCriterion struct {
	deps      CriterionDeps
	minPoints int
}

func newPointsThresholdCriterion(badgeID string, criterionConfig map[string]any, deps CriterionDeps) (Criterion, error) {
	minPoints, exists := intConfig(criterionConfig, "min_points")
	if !exists || minPoints < 1 {
		return nil, fmt.Errorf("min_points is required")
	}
	return &pointsThresholdCriterion{deps: deps, minPoints: minPoints}, nil
}

func (c *pointsThresholdCriterion) EventTypes() []string { return nil }

func (c *pointsThresholdCriterion) Satisfied(ctx context.Context, namespace, userID string) (bool, error) {
	total, err := c.deps.Scores.SumScoreDeltas(ctx, namespace, userID)
	if err != nil {
		return false, err
	}
	return total >= c.minPoints, nil
}

func (c *pointsThresholdCriterion) Progress(ctx context.Context, namespace, userID string) (map[string]any, error) {
	total, err := c.deps.Scores.SumScoreDeltas(ctx, namespace, userID)
	if err != nil {
		return nil, err
	}
	if total < 0 {
		total = 0
	}
	return progressReport(total, c.minPoints), nil
}

// streakCriterion: min_days consecutive UTC calendar days with at least one
// activity event, with the streak still alive (last day today or yesterday)
type streakCriterion struct {
	deps    CriterionDeps
	minDays int
}

func newStreakCriterion(badgeID string, criterionConfig map[string]any, deps CriterionDeps) (Criterion, error) {
	minDays, exists := intConfig(criterionConfig, "min_days")
	if !exists || minDays < 1 {
		return nil, fmt.Errorf("min_days is required")
	}
	return &streakCriterion{deps: deps, minDays: minDays}, nil
}

func (c *streakCriterion) EventTypes() []string { return nil }

func (c *streakCriterion) currentStreak(ctx context.Context, namespace, userID string) (int, error) {
	days, err := c.deps.Activity.ActivityDays(ctx, namespace, userID)
	if err != nil {
		return 0, err
	}
	if len(days) == 0 {
		return 0, nil
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	latest := days[0].Truncate(24 * time.Hour)
	if today.Sub(latest) > 24*time.Hour {
		return 0, nil
	}

	streak := 1
	previous := latest
	for _, day := range days[1:] {
		day = day.Truncate(24 * time.Hour)
		if previous.Sub(day) != 24*time.Hour {
			break
		}
		streak++
		previous = day
	}
	return streak, nil
}

func (c *streakCriterion) Satisfied(ctx context.Context, namespace, userID string) (bool, error) {
	streak, err := c.currentStreak(ctx, namespace, userID)
	if err != nil {
		return false, err
	}
	return streak >= c.minDays, nil
}

func (c *streakCriterion) Progress(ctx context.Context, namespace, userID string) (map[string]any, error) {
	streak, err := c.currentStreak(ctx, namespace, userID)
	if err != nil {
		return nil, err
	}
	return progressReport(streak, c.minDays), nil
}
