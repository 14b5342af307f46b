package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/steadhac/finbot-ctf/config"
	"github.com/steadhac/finbot-ctf/metrics"
	"github.com/steadhac/finbot-ctf/models"
)

// CheckResult is the outcome of a completion check
type CheckResult struct {
	Status        string  `json:"status"`
	Detected      bool    `json:"detected"`
	Message       string  `json:"message"`
	Confidence    float64 `json:"confidence"`
	PointsAwarded int     `json:"points_awarded"`
}

// HintResult is the outcome of a hint purchase
type HintResult struct {
	HintIndex      int    `json:"hint_index"`
	HintText       string `json:"hint_text"`
	PointsDeducted int    `json:"points_deducted"`
	TotalHintsCost int    `json:"total_hints_cost"`
}

// ChallengeService drives the per-(user, challenge) state machine:
// available -> in_progress -> completed, never reversed. All mutations for
// one (user, challenge) are serialized through a keyed lock so duplicate
// concurrent requests collapse onto a single award or charge.
type ChallengeService struct {
	challenges ChallengeStore
	progress   ProgressStore
	ledger     *ScoreLedger
	badges     *BadgeEvaluator
	activity   *ActivityStream
	locks      *keyedLocks

	checkTimeout time.Duration

	mu        sync.Mutex
	verifiers map[string]Verifier
}

func NewChallengeService(challenges ChallengeStore, progress ProgressStore, ledger *ScoreLedger, badges *BadgeEvaluator, activity *ActivityStream) *ChallengeService {
	return &ChallengeService{
		challenges:   challenges,
		progress:     progress,
		ledger:       ledger,
		badges:       badges,
		activity:     activity,
		locks:        newKeyedLocks(),
		checkTimeout: config.DefaultCheckConfig.VerifierTimeout,
		verifiers:    make(map[string]Verifier),
	}
}

// StartAttempt transitions available -> in_progress. It is idempotent: a
// challenge already in progress or completed is returned unchanged.
func (s *ChallengeService) StartAttempt(ctx context.Context, namespace, userID, challengeID string) (*models.ChallengeProgress, error) {
	challenge, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	release := s.locks.acquire(progressKey(namespace, userID, challengeID))
	defer release()

	progress, err := s.getOrCreateProgress(ctx, namespace, userID, challenge.ID)
	if err != nil {
		return nil, err
	}

	if progress.Status != models.StatusAvailable {
		return progress, nil
	}

	progress.Status = models.StatusInProgress
	if err := s.progress.SaveProgress(ctx, progress); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}
	return progress, nil
}

// CheckCompletion runs the challenge's verifier against a submission. On
// success it transitions to completed, records the challenge award exactly
// once, appends the completion activity event, and re-evaluates badges. A
// check on an already-completed challenge returns success with no further
// side effects. A verifier timeout mutates nothing and is retryable.
func (s *ChallengeService) CheckCompletion(ctx context.Context, namespace, userID, challengeID, submission string) (*CheckResult, error) {
	challenge, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	release := s.locks.acquire(progressKey(namespace, userID, challengeID))
	defer release()

	progress, err := s.getOrCreateProgress(ctx, namespace, userID, challenge.ID)
	if err != nil {
		return nil, err
	}

	if progress.Status == models.StatusCompleted {
		return &CheckResult{
			Status:     models.StatusCompleted,
			Detected:   true,
			Message:    "Challenge already completed",
			Confidence: 1.0,
		}, nil
	}

	verifier, err := s.verifierFor(challenge)
	if err != nil {
		return nil, err
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	result, err := verifier.CheckSubmission(checkCtx, namespace, userID, submission)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Treated as if the check never happened: no attempt recorded
			return nil, NewVerifierTimeout("Verifier did not respond in time, retry the check")
		}
		return nil, fmt.Errorf("verifier failed for %s: %w", challenge.ID, err)
	}

	now := time.Now().UTC()
	progress.Attempts++
	if progress.FirstAttemptAt == nil {
		progress.FirstAttemptAt = &now
	}
	if progress.Status == models.StatusAvailable {
		progress.Status = models.StatusInProgress
	}

	if !result.Detected {
		progress.FailedAttempts++
		if err := s.progress.SaveProgress(ctx, progress); err != nil {
			return nil, fmt.Errorf("failed to save progress: %w", err)
		}
		return &CheckResult{
			Status:     progress.Status,
			Detected:   false,
			Message:    result.Message,
			Confidence: result.Confidence,
		}, nil
	}

	if err := s.complete(ctx, namespace, userID, challenge, progress, result, now); err != nil {
		return nil, err
	}

	return &CheckResult{
		Status:        models.StatusCompleted,
		Detected:      true,
		Message:       result.Message,
		Confidence:    result.Confidence,
		PointsAwarded: challenge.Points,
	}, nil
}

// complete marks the progress row completed and fans out the award, the
// activity event, and the badge re-evaluation. Caller holds the progress lock.
func (s *ChallengeService) complete(ctx context.Context, namespace, userID string, challenge *models.Challenge, progress *models.ChallengeProgress, result VerifierResult, now time.Time) error {
	progress.Status = models.StatusCompleted
	progress.CompletedAt = &now
	if progress.FirstAttemptAt != nil {
		seconds := int(now.Sub(*progress.FirstAttemptAt).Seconds())
		progress.CompletionTimeSeconds = &seconds
	}

	evidence, _ := json.Marshal(map[string]any{
		"message":    result.Message,
		"confidence": result.Confidence,
		"evidence":   result.Evidence,
	})
	evidenceStr := string(evidence)
	progress.CompletionEvidence = &evidenceStr

	if err := s.progress.SaveProgress(ctx, progress); err != nil {
		return fmt.Errorf("failed to save completion: %w", err)
	}

	log.Printf("Challenge completed: %s by user %s (confidence: %.2f)", challenge.ID, userID, result.Confidence)
	metrics.ChallengeCompletions.WithLabelValues(challenge.ID).Inc()

	if _, _, err := s.ledger.Award(ctx, namespace, userID, challenge.Points, models.ReasonChallengeAward, challenge.ID); err != nil {
		return err
	}

	if s.activity != nil {
		if err := s.activity.AppendChallengeCompleted(ctx, namespace, userID, challenge, progress); err != nil {
			log.Printf("Failed to append completion activity for %s: %v", challenge.ID, err)
		}
	}

	if s.badges != nil {
		if _, err := s.badges.Evaluate(ctx, namespace, userID); err != nil {
			log.Printf("Badge evaluation failed for user %s: %v", userID, err)
		}
	}

	return nil
}

// UseHint charges the hint at hintIndex and returns its payload. Each hint
// index is charged at most once per (user, challenge); hinting a completed
// challenge is rejected.
func (s *ChallengeService) UseHint(ctx context.Context, namespace, userID, challengeID string, hintIndex int) (*HintResult, error) {
	challenge, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	hints := challenge.HintList()
	if hintIndex < 0 || hintIndex >= len(hints) {
		return nil, NewNotFound("Hint not found")
	}
	hint := hints[hintIndex]

	release := s.locks.acquire(progressKey(namespace, userID, challengeID))
	defer release()

	progress, err := s.getOrCreateProgress(ctx, namespace, userID, challenge.ID)
	if err != nil {
		return nil, err
	}

	if progress.Status == models.StatusCompleted {
		return nil, NewInvalidState("Challenge already completed")
	}
	if progress.HasUsedHint(hintIndex) {
		return nil, NewAlreadyUsed(fmt.Sprintf("Hint %d already used", hintIndex))
	}

	sourceID := fmt.Sprintf("%s#hint%d", challenge.ID, hintIndex)
	if _, _, err := s.ledger.Award(ctx, namespace, userID, -hint.Cost, models.ReasonHintCost, sourceID); err != nil {
		return nil, err
	}

	progress.MarkHintUsed(hintIndex)
	progress.HintsCost += hint.Cost
	if progress.Status == models.StatusAvailable {
		progress.Status = models.StatusInProgress
	}
	if err := s.progress.SaveProgress(ctx, progress); err != nil {
		return nil, fmt.Errorf("failed to save hint usage: %w", err)
	}

	if s.activity != nil {
		if err := s.activity.AppendHintUsed(ctx, namespace, userID, challenge, hintIndex, hint.Cost); err != nil {
			log.Printf("Failed to append hint activity for %s: %v", challenge.ID, err)
		}
	}

	return &HintResult{
		HintIndex:      hintIndex,
		HintText:       hint.Text,
		PointsDeducted: hint.Cost,
		TotalHintsCost: progress.HintsCost,
	}, nil
}

// CheckEvent runs event-driven detection for one bus event, completing every
// matching challenge whose verifier fires. Returns the completed challenge ids.
func (s *ChallengeService) CheckEvent(ctx context.Context, namespace, userID, eventType string, event map[string]any) ([]string, error) {
	challenges, err := s.challenges.ListChallenges(ctx, "", "", true)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}

	var completed []string
	for i := range challenges {
		challenge := &challenges[i]

		verifier, err := s.verifierFor(challenge)
		if err != nil {
			log.Printf("Skipping challenge %s: %v", challenge.ID, err)
			continue
		}
		if !MatchesEventType(verifier.EventTypes(), eventType) {
			continue
		}

		release := s.locks.acquire(progressKey(namespace, userID, challenge.ID))

		progress, err := s.getOrCreateProgress(ctx, namespace, userID, challenge.ID)
		if err != nil {
			release()
			return completed, err
		}
		if progress.Status == models.StatusCompleted {
			release()
			continue
		}

		result := verifier.CheckEvent(event)

		now := time.Now().UTC()
		progress.Attempts++
		if progress.FirstAttemptAt == nil {
			progress.FirstAttemptAt = &now
		}
		if progress.Status == models.StatusAvailable {
			progress.Status = models.StatusInProgress
		}

		if result.Detected {
			if workflowID, ok := event["workflow_id"].(string); ok && workflowID != "" {
				progress.CompletionWorkflowID = &workflowID
			}
			if err := s.complete(ctx, namespace, userID, challenge, progress, result, now); err != nil {
				release()
				return completed, err
			}
			completed = append(completed, challenge.ID)
		} else {
			progress.FailedAttempts++
			if err := s.progress.SaveProgress(ctx, progress); err != nil {
				release()
				return completed, fmt.Errorf("failed to save progress: %w", err)
			}
		}
		release()
	}

	return completed, nil
}

// ProgressFor returns the user's progress row for one challenge, which may be nil
func (s *ChallengeService) ProgressFor(ctx context.Context, namespace, userID, challengeID string) (*models.ChallengeProgress, error) {
	return s.progress.GetProgress(ctx, namespace, userID, challengeID)
}

// ClearVerifiers drops cached verifiers so reloaded definitions take effect
func (s *ChallengeService) ClearVerifiers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifiers = make(map[string]Verifier)
}

func (s *ChallengeService) getChallenge(ctx context.Context, challengeID string) (*models.Challenge, error) {
	challenge, err := s.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenge: %w", err)
	}
	if challenge == nil || !challenge.IsActive {
		return nil, NewNotFound("Challenge not found")
	}
	return challenge, nil
}

func (s *ChallengeService) getOrCreateProgress(ctx context.Context, namespace, userID, challengeID string) (*models.ChallengeProgress, error) {
	progress, err := s.progress.GetProgress(ctx, namespace, userID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch progress: %w", err)
	}
	if progress != nil {
		return progress, nil
	}

	progress = &models.ChallengeProgress{
		Namespace:   namespace,
		UserID:      userID,
		ChallengeID: challengeID,
		Status:      models.StatusAvailable,
	}
	if err := s.progress.SaveProgress(ctx, progress); err != nil {
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}
	return progress, nil
}

func (s *ChallengeService) verifierFor(challenge *models.Challenge) (Verifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if verifier, exists := s.verifiers[challenge.ID]; exists {
		return verifier, nil
	}

	verifier, err := NewVerifier(challenge.VerifierClass, challenge.ID, challenge.VerifierConfig)
	if err != nil {
		return nil, err
	}

	s.verifiers[challenge.ID] = verifier
	return verifier, nil
}
