package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/steadhac/finbot-ctf/metrics"
	"github.com/steadhac/finbot-ctf/models"
)

// ScoreLedger is the append-only record of point deltas per user. Totals are
// always computed as a sum over the event log, never from a separate counter.
type ScoreLedger struct {
	store ScoreStore
}

func NewScoreLedger(store ScoreStore) *ScoreLedger {
	return &ScoreLedger{store: store}
}

// Award appends a score event for the user. Repeated calls with the same
// (namespace, user, reason, source) tuple apply the delta once: the existing
// event is returned and applied is false.
func (l *ScoreLedger) Award(ctx context.Context, namespace, userID string, delta int, reason, sourceID string) (*models.ScoreEvent, bool, error) {
	existing, err := l.store.FindScoreEvent(ctx, namespace, userID, reason, sourceID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check score idempotency key: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	event := &models.ScoreEvent{
		Namespace: namespace,
		UserID:    userID,
		Delta:     delta,
		Reason:    reason,
		SourceID:  sourceID,
		CreatedAt: time.Now().UTC(),
	}

	created, err := l.store.AppendScoreEvent(ctx, event)
	if err != nil {
		return nil, false, fmt.Errorf("failed to append score event: %w", err)
	}

	if !created {
		// Lost a race against a concurrent duplicate, return its event
		existing, err = l.store.FindScoreEvent(ctx, namespace, userID, reason, sourceID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to fetch winning score event: %w", err)
		}
		return existing, false, nil
	}

	metrics.ScoreEventsTotal.WithLabelValues(reason).Inc()
	log.Printf("Score event: user %s %+d points (%s: %s)", userID, delta, reason, sourceID)
	return event, true, nil
}

// TotalFor returns the user's total points as a fold over the event log
func (l *ScoreLedger) TotalFor(ctx context.Context, namespace, userID string) (int, error) {
	total, err := l.store.SumScoreDeltas(ctx, namespace, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum score deltas: %w", err)
	}
	return total, nil
}
