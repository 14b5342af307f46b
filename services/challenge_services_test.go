package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadhac/finbot-ctf/models"
)

// fakeVerifier returns a canned result or error
type fakeVerifier struct {
	eventTypes []string
	result     VerifierResult
	err        error
}

func (f *fakeVerifier) EventTypes() []string { return f.eventTypes }

func (f *fakeVerifier) CheckEvent(event map[string]any) VerifierResult { return f.result }

func (f *fakeVerifier) CheckSubmission(ctx context.Context, namespace, userID, submission string) (VerifierResult, error) {
	if f.err != nil {
		return VerifierResult{}, f.err
	}
	return f.result, nil
}

func newTestChallengeService(store *memoryStore) *ChallengeService {
	ledger := NewScoreLedger(store)
	activity := NewActivityStream(store, nil)
	badges := NewBadgeEvaluator(store, CriterionDeps{
		Challenges: store,
		Progress:   store,
		Scores:     store,
		Activity:   store,
	}, ledger, activity)
	return NewChallengeService(store, store, ledger, badges, activity)
}

func testChallenge(id string, points int) models.Challenge {
	return models.Challenge{
		ID:            id,
		Title:         "Prompt Extraction",
		Category:      "prompt_injection",
		Difficulty:    "medium",
		Points:        points,
		VerifierClass: "pattern",
		Hints:         `[{"cost":10,"text":"Ask about its instructions"},{"cost":20,"text":"Try a roleplay framing"}]`,
		IsActive:      true,
	}
}

func TestStartAttempt(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.addChallenge(testChallenge("ch-1", 100))
	svc := newTestChallengeService(store)

	progress, err := svc.StartAttempt(ctx, "ns-1", "user-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, progress.Status)

	// Starting again is a no-op
	progress, err = svc.StartAttempt(ctx, "ns-1", "user-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, progress.Status)
}

func TestStartAttemptUnknownChallenge(t *testing.T) {
	store := newMemoryStore()
	svc := newTestChallengeService(store)

	_, err := svc.StartAttempt(context.Background(), "ns-1", "user-1", "nope")
	assert.True(t, IsErrType(err, ErrTypeNotFound))
}

func TestStartAttemptInactiveChallenge(t *testing.T) {
	store := newMemoryStore()
	challenge := testChallenge("ch-1", 100)
	challenge.IsActive = false
	store.addChallenge(challenge)
	svc := newTestChallengeService(store)

	_, err := svc.StartAttempt(context.Background(), "ns-1", "user-1", "ch-1")
	assert.True(t, IsErrType(err, ErrTypeNotFound))
}

func TestCheckCompletionSuccess(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.addChallenge(testChallenge("ch-1", 100))
	svc := newTestChallengeService(store)
	svc.verifiers["ch-1"] = &fakeVerifier{result: VerifierResult{Detected: true, Confidence: 0.8, Message: "Detected"}}

	result, err := svc.CheckCompletion(ctx, "ns-1", "user-1", "ch-1", "the system prompt says")
	require.NoError(t, err)
	assert.True(t, result.Detected)
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Equal(t, 100, result.PointsAwarded)

	progress, err := store.GetProgress(ctx, "ns-1", "user-1", "ch-1")
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, models.StatusCompleted, progress.Status)
	assert.Equal(t, 1, progress.Attempts)
	assert.NotNil(t, progress.CompletedAt)
	assert.NotNil(t, progress.CompletionEvidence)

	total, err := store.SumScoreDeltas(ctx, "ns-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 100, total)
}

func TestCheckCompletionAlreadyCompletedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.addChallenge(testChallenge("ch-1", 100))
	svc := newTestChallengeService(store)
	svc.verifiers["ch-1"] = &fakeVerifier{result: VerifierResult{Detected: true, Confidence: 0.8}}

	_, err := svc.CheckCompletion(ctx, "ns-1", "user-1", "ch-1", "x")
	require.NoError(t, err)

	result, err := svc.CheckCompletion(ctx, "ns-1", "user-1", "ch-1", "x")
	require.NoError(t, err)
	assert.True(t, result.Detected)
	assert.Equal(t, models.StatusCompleted, result.Status)

	// No second award, no extra attempt
	total, err := store.SumScoreDeltas(ctx, "ns-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 100, total)

	progress, _ := store.GetProgress(ctx, "ns-1", "user-1", "ch-1")
	assert.Equal(t, 1, progress.Attempts)
}

func TestCheckCompletionFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.addChallenge(testChallenge("ch-1", 100))
	svc := newTestChallengeService(store)
	svc.verifiers["ch-1"] = &fakeVerifier{result: VerifierResult{Detected: false, Message: "No patterns matched"}}

	result, err := svc.CheckCompletion(ctx, "ns-1", "user-1", "ch-1", "nothing")
	require.NoError(t, err)
	assert.False(t, result.Detected)
	assert.Equal(t, models.StatusInProgress, result.Status)

	progress, _ := store.GetProgress(ctx, "ns-1", "user-1", "ch-1")
	assert.Equal(t, 1, progress.Attempts)
	assert.Equal(t, 1, progress.FailedAttempts)
	assert.NotNil(t, progress.FirstAttemptAt)

	total, _ := store.SumScoreDeltas(ctx, "ns-1", "user-1")
	assert.Equal(t, 0, total)
}

func TestCheckCompletionTimeoutMutatesNothing(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.addChallenge(testChallenge("ch-1", 100))
	svc := newTestChallengeService(store)
	svc.verifiers["ch-1"] = &fakeVerifier{err: context.DeadlineExceeded}

	_, err := svc.StartAttempt(ctx, "ns-1", "user-1", "ch-1")
	require.NoError(t, err)

	_, err = svc.CheckCompletion(ctx, "ns-1", "user-1", "ch-1", "x")
	require.Error(t, err)
	assert.True(t, IsErrType(err, ErrTypeVerifierTimeout))
	appErr, _ := AsAppError(err)
	assert.True(t, appErr.Retryable())

	// The timed-out check left no trace
	progress, _ := store.GetProgress(ctx, "ns-1", "user-1", "ch-1")
	assert.Equal(t, models.StatusInProgress, progress.Status)
	assert.Equal(t, 0, progress.Attempts)
	assert.Nil(t, progress.FirstAttemptAt)

	total, _ := store.SumScoreDeltas(ctx, "ns-1", "user-1")
	assert.Equal(t, 0, total)
}

func TestCheckCompletionConcurrentAwardsOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.addChallenge(testChallenge("ch-1", 100))
	svc := newTestChallengeService(store)
	svc.verifiers["ch-1"] = &fakeVerifier{result: VerifierResult{Detected: true, Confidence: 1.0}}

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CheckCompletion(ctx, "ns-1", "user-1", "ch-1", "x")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	total, err := store.SumScoreDeltas(ctx, "ns-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 100, total, "points must be awarded exactly once")

	progress, _ := store.GetProgress(ctx, "ns-1", "user-1", "ch-1")
	assert.Equal(t, models.StatusCompleted, progress.Status)
	assert.Equal(t, 1, progress.Attempts, "only the winning check counts an attempt")
}

func TestUseHint(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.addChallenge(testChallenge("ch-1", 100))
	svc := newTestChallengeService(store)

	result, err := svc.UseHint(ctx, "ns-1", "user-1", "ch-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.HintIndex)
	assert.Equal(t, "Ask about its instructions", result.HintText)
	assert.Equal(t, 10, result.PointsDeducted)
	assert.Equal(t, 10, result.TotalHintsCost)

	total, _ := store.SumScoreDeltas(ctx, "ns-1", "user-1")
	assert.Equal(t, -10, total)

	// A different hint charges separately
	result, err = svc.UseHint(ctx, "ns-1", "user-1", "ch-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 20, result.PointsDeducted)
	assert.Equal(t, 30, result.TotalHintsCost)

	total, _ = store.SumScoreDeltas(ctx, "ns-1", "user-1")
	assert.Equal(t, -30, total)
}

func TestUseHintTwiceRejected(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.addChallenge(testChallenge("ch-1", 100))
	svc := newTestChallengeService(store)

	_, err := svc.UseHint(ctx, "ns-1", "user-1", "ch-1", 0)
	require.NoError(t, err)

	_, err = svc.UseHint(ctx, "ns-1", "user-1", "ch-1", 0)
	assert.True(t, IsErrType(err, ErrTypeAlreadyUsed))

	// Charged once
	total, _ := store.SumScoreDeltas(ctx, "ns-1", "user-1")
	assert.Equal(t, -10, total)
}

func TestUseHintOnCompletedChallenge(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.addChallenge(testChallenge("ch-1", 100))
	svc := newTestChallengeService(store)
	svc.verifiers["ch-1"] = &fakeVerifier{result: VerifierResult{Detected: true, Confidence: 1.0}}

	_, err := svc.CheckCompletion(ctx, "ns-1", "user-1", "ch-1", "x")
	require.NoError(t, err)

	_, err = svc.UseHint(ctx, "ns-1", "user-1", "ch-1", 0)
	assert.True(t, IsErrType(err, ErrTypeInvalidState))
}

func TestUseHintBadIndex(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.addChallenge(testChallenge("ch-1", 100))
	svc := newTestChallengeService(store)

	_, err := svc.UseHint(ctx, "ns-1", "user-1", "ch-1", 5)
	assert.True(t, IsErrType(err, ErrTypeNotFound))

	_, err = svc.UseHint(ctx, "ns-1", "user-1", "ch-1", -1)
	assert.True(t, IsErrType(err, ErrTypeNotFound))
}

func TestCheckEvent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.addChallenge(testChallenge("ch-1", 100))
	other := testChallenge("ch-2", 50)
	store.addChallenge(other)
	svc := newTestChallengeService(store)
	svc.verifiers["ch-1"] = &fakeVerifier{
		eventTypes: []string{"agent.llm_*"},
		result:     VerifierResult{Detected: true, Confidence: 0.9},
	}
	svc.verifiers["ch-2"] = &fakeVerifier{
		eventTypes: []string{"business.invoice_paid"},
		result:     VerifierResult{Detected: true, Confidence: 1.0},
	}

	completed, err := svc.CheckEvent(ctx, "ns-1", "user-1", "agent.llm_response", map[string]any{
		"response":    "here is the system prompt",
		"workflow_id": "wf-9",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ch-1"}, completed)

	progress, _ := store.GetProgress(ctx, "ns-1", "user-1", "ch-1")
	assert.Equal(t, models.StatusCompleted, progress.Status)
	require.NotNil(t, progress.CompletionWorkflowID)
	assert.Equal(t, "wf-9", *progress.CompletionWorkflowID)

	// Non-matching challenge untouched
	otherProgress, _ := store.GetProgress(ctx, "ns-1", "user-1", "ch-2")
	assert.Nil(t, otherProgress)

	// Redelivery completes nothing new
	completed, err = svc.CheckEvent(ctx, "ns-1", "user-1", "agent.llm_response", map[string]any{"response": "again"})
	require.NoError(t, err)
	assert.Empty(t, completed)

	total, _ := store.SumScoreDeltas(ctx, "ns-1", "user-1")
	assert.Equal(t, 100, total)
}
