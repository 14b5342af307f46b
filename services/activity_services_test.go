package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadhac/finbot-ctf/models"
)

// recordingPublisher captures pushes for assertions
type recordingPublisher struct {
	mu        sync.Mutex
	activity  []models.ActivityEvent
	completed []string
	earned    []string
}

func (p *recordingPublisher) PublishActivity(namespace, userID string, event models.ActivityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activity = append(p.activity, event)
}

func (p *recordingPublisher) PublishChallengeCompleted(namespace, userID, challengeID, title string, points int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, challengeID)
}

func (p *recordingPublisher) PublishBadgeEarned(namespace, userID, badgeID, title, rarity string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.earned = append(p.earned, badgeID)
}

func activityEvent(externalID string, ts time.Time) *models.ActivityEvent {
	return &models.ActivityEvent{
		ExternalEventID: externalID,
		Namespace:       "ns-1",
		UserID:          "user-1",
		Category:        models.CategoryAgent,
		Type:            "agent.task_start",
		Summary:         "Task Start",
		Timestamp:       ts,
	}
}

func TestActivityAppendAndQuery(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	publisher := &recordingPublisher{}
	stream := NewActivityStream(store, publisher)

	now := time.Now().UTC()
	require.NoError(t, stream.Append(ctx, activityEvent("ev-1", now)))
	require.NoError(t, stream.Append(ctx, activityEvent("ev-2", now.Add(time.Second))))

	page, err := stream.Query(ctx, "ns-1", "user-1", ActivityFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)
	// Newest first
	assert.Equal(t, "ev-2", page.Items[0].ExternalEventID)

	assert.Len(t, publisher.activity, 2)
}

func TestActivityAppendDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	publisher := &recordingPublisher{}
	stream := NewActivityStream(store, publisher)

	now := time.Now().UTC()
	require.NoError(t, stream.Append(ctx, activityEvent("ev-1", now)))
	require.NoError(t, stream.Append(ctx, activityEvent("ev-1", now.Add(time.Minute))))

	page, err := stream.Query(ctx, "ns-1", "user-1", ActivityFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	// The redelivery is not pushed again
	assert.Len(t, publisher.activity, 1)
}

func TestActivityTimestampsNeverRunBackwards(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	stream := NewActivityStream(store, nil)

	now := time.Now().UTC()
	require.NoError(t, stream.Append(ctx, activityEvent("ev-1", now)))
	// An out-of-order producer hands in an older timestamp
	require.NoError(t, stream.Append(ctx, activityEvent("ev-2", now.Add(-time.Hour))))

	page, err := stream.Query(ctx, "ns-1", "user-1", ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	for _, item := range page.Items {
		assert.False(t, item.Timestamp.Before(now), "clamped to the last timestamp seen")
	}
}

func TestActivityClampIsPerNamespace(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	stream := NewActivityStream(store, nil)

	now := time.Now().UTC()
	require.NoError(t, stream.Append(ctx, activityEvent("ev-1", now)))

	other := activityEvent("ev-2", now.Add(-time.Hour))
	other.Namespace = "ns-2"
	require.NoError(t, stream.Append(ctx, other))

	page, err := stream.Query(ctx, "ns-2", "user-1", ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, now.Add(-time.Hour), page.Items[0].Timestamp, "other namespaces are not clamped")
}

func TestActivityPagination(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	stream := NewActivityStream(store, nil)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, stream.Append(ctx, activityEvent(
			string(rune('a'+i)), now.Add(time.Duration(i)*time.Second))))
	}

	page, err := stream.Query(ctx, "ns-1", "user-1", ActivityFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)

	page, err = stream.Query(ctx, "ns-1", "user-1", ActivityFilter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
}

func TestActivityPageSizeClamped(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	stream := NewActivityStream(store, nil)

	page, err := stream.Query(ctx, "ns-1", "user-1", ActivityFilter{Page: 0, PageSize: 10000})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.LessOrEqual(t, page.PageSize, 100)
}

func TestActivityCategoryFilter(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	stream := NewActivityStream(store, nil)

	now := time.Now().UTC()
	require.NoError(t, stream.Append(ctx, activityEvent("ev-1", now)))

	business := activityEvent("ev-2", now.Add(time.Second))
	business.Category = models.CategoryBusiness
	require.NoError(t, stream.Append(ctx, business))

	page, err := stream.Query(ctx, "ns-1", "user-1", ActivityFilter{Category: models.CategoryBusiness})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "ev-2", page.Items[0].ExternalEventID)
}

func TestAppendChallengeCompletedPushes(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	publisher := &recordingPublisher{}
	stream := NewActivityStream(store, publisher)

	challenge := testChallenge("ch-1", 100)
	progress := &models.ChallengeProgress{Namespace: "ns-1", UserID: "user-1", ChallengeID: "ch-1", Attempts: 2}
	require.NoError(t, stream.AppendChallengeCompleted(ctx, "ns-1", "user-1", &challenge, progress))

	assert.Equal(t, []string{"ch-1"}, publisher.completed)

	page, err := stream.Query(ctx, "ns-1", "user-1", ActivityFilter{Category: models.CategoryChallenge})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "challenge_completed", page.Items[0].Type)
	assert.Equal(t, "Completed challenge: Prompt Extraction", page.Items[0].Summary)
}
