package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/steadhac/finbot-ctf/metrics"
	"github.com/steadhac/finbot-ctf/models"
	"github.com/steadhac/finbot-ctf/services"
)

const (
	consumerGroup        = "ctf-processor"
	defaultLookbackHours = 4
	staleClaimTimeout    = 30 * time.Second
	maxDeliveries        = 3
	pendingCheckInterval = 10
	readBatchSize        = 10
	readBlockTimeout     = 5 * time.Second
)

var streams = []string{"finbot:events:agents", "finbot:events:business"}

// EventProcessor consumes platform events from Redis Streams and feeds them
// through the activity log, challenge detection, and badge evaluation. All
// replicas share one consumer group, so each message is delivered to a single
// consumer; redeliveries are absorbed by the idempotent stores downstream.
type EventProcessor struct {
	redis      *redis.Client
	activity   *services.ActivityStream
	challenges *services.ChallengeService
	badges     *services.BadgeEvaluator

	consumerName string
	batchCount   int
}

func NewEventProcessor(client *redis.Client, activity *services.ActivityStream, challenges *services.ChallengeService, badges *services.BadgeEvaluator) *EventProcessor {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &EventProcessor{
		redis:        client,
		activity:     activity,
		challenges:   challenges,
		badges:       badges,
		consumerName: fmt.Sprintf("ctf-%s-%d", hostname, os.Getpid()),
	}
}

// Run consumes events until the context is cancelled
func (p *EventProcessor) Run(ctx context.Context) {
	if p.redis == nil {
		log.Println("Redis client not configured, event processor disabled")
		return
	}

	log.Printf("Starting event processor (consumer: %s)", p.consumerName)
	p.ensureConsumerGroups(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Event processor stopped")
			return
		default:
		}

		if err := p.processBatch(ctx); err != nil {
			if ctx.Err() != nil {
				log.Println("Event processor stopped")
				return
			}
			log.Printf("Error in event processor loop: %v", err)
			time.Sleep(5 * time.Second)
		}
	}
}

// ensureConsumerGroups creates the consumer group on each stream, starting a
// few hours back so a fresh deployment picks up recent history
func (p *EventProcessor) ensureConsumerGroups(ctx context.Context) {
	lookbackMs := time.Now().Add(-defaultLookbackHours*time.Hour).UnixNano() / int64(time.Millisecond)
	startID := fmt.Sprintf("%d-0", lookbackMs)

	for _, stream := range streams {
		err := p.redis.XGroupCreateMkStream(ctx, stream, consumerGroup, startID).Err()
		if err != nil {
			if strings.Contains(err.Error(), "BUSYGROUP") {
				continue
			}
			log.Printf("Failed to create consumer group on %s: %v", stream, err)
		} else {
			log.Printf("Created consumer group %s on %s from %s", consumerGroup, stream, startID)
		}
	}
}

func (p *EventProcessor) processBatch(ctx context.Context) error {
	p.batchCount++

	if p.batchCount%pendingCheckInterval == 0 {
		p.recoverPendingMessages(ctx)
	}

	streamArgs := make([]string, 0, len(streams)*2)
	streamArgs = append(streamArgs, streams...)
	for range streams {
		streamArgs = append(streamArgs, ">")
	}

	results, err := p.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: p.consumerName,
		Streams:  streamArgs,
		Count:    readBatchSize,
		Block:    readBlockTimeout,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("failed to read from streams: %w", err)
	}

	for _, result := range results {
		p.processMessages(ctx, result.Stream, result.Messages)
	}
	return nil
}

// recoverPendingMessages claims messages left pending by dead consumers and
// retries them under this consumer's name
func (p *EventProcessor) recoverPendingMessages(ctx context.Context) {
	for _, stream := range streams {
		claimed, _, err := p.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    consumerGroup,
			Consumer: p.consumerName,
			MinIdle:  staleClaimTimeout,
			Start:    "0-0",
			Count:    readBatchSize,
		}).Result()
		if err != nil {
			log.Printf("Error recovering pending messages from %s: %v", stream, err)
			continue
		}
		if len(claimed) > 0 {
			log.Printf("Claimed %d stale pending messages from %s", len(claimed), stream)
			p.processMessages(ctx, stream, claimed)
		}
	}
}

func (p *EventProcessor) processMessages(ctx context.Context, stream string, messages []redis.XMessage) {
	for _, message := range messages {
		if p.processSingleMessage(ctx, stream, message) {
			p.redis.XAck(ctx, stream, consumerGroup, message.ID)
			p.redis.XDel(ctx, stream, message.ID)
		}
	}
}

// processSingleMessage handles one message, returning true when it should be
// acknowledged. Failures stay pending for redelivery until the delivery count
// reaches maxDeliveries, then the message is dropped.
func (p *EventProcessor) processSingleMessage(ctx context.Context, stream string, message redis.XMessage) bool {
	event := decodeEvent(message.Values)

	if err := p.processEvent(ctx, stream, event); err != nil {
		log.Printf("Error processing message %s: %v", message.ID, err)
		metrics.EventsProcessed.WithLabelValues(stream, "error").Inc()

		pending, perr := p.redis.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: stream,
			Group:  consumerGroup,
			Start:  message.ID,
			End:    message.ID,
			Count:  1,
		}).Result()
		if perr == nil && len(pending) > 0 && pending[0].RetryCount >= maxDeliveries {
			log.Printf("Message %s exceeded max retries (%d), dropping", message.ID, maxDeliveries)
			metrics.EventsProcessed.WithLabelValues(stream, "dropped").Inc()
			return true
		}
		return false
	}

	metrics.EventsProcessed.WithLabelValues(stream, "ok").Inc()
	return true
}

func (p *EventProcessor) processEvent(ctx context.Context, stream string, event map[string]any) error {
	namespace, _ := event["namespace"].(string)
	userID, _ := event["user_id"].(string)
	if namespace == "" || userID == "" {
		// Events without an owner cannot be attributed, skip them
		return nil
	}

	if err := p.activity.Append(ctx, buildActivityEvent(stream, event)); err != nil {
		return err
	}

	eventType, _ := event["event_type"].(string)
	completed, err := p.challenges.CheckEvent(ctx, namespace, userID, eventType, event)
	if err != nil {
		return err
	}
	if len(completed) > 0 {
		log.Printf("Challenges completed: %v", completed)
	}

	awarded, err := p.badges.EvaluateForEvent(ctx, namespace, userID, eventType)
	if err != nil {
		return err
	}
	if len(awarded) > 0 {
		ids := make([]string, 0, len(awarded))
		for _, award := range awarded {
			ids = append(ids, award.BadgeID)
		}
		log.Printf("Badges awarded: %v", ids)
	}
	return nil
}

// decodeEvent reverses the bus encoding: every value was either JSON-encoded
// or stringified, so try JSON first and keep the raw string on failure
func decodeEvent(values map[string]any) map[string]any {
	decoded := make(map[string]any, len(values))
	for key, value := range values {
		str, ok := value.(string)
		if !ok {
			decoded[key] = value
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(str), &parsed); err == nil {
			decoded[key] = parsed
		} else {
			decoded[key] = str
		}
	}
	return decoded
}

func buildActivityEvent(stream string, event map[string]any) *models.ActivityEvent {
	payload, _ := json.Marshal(event)
	payloadStr := string(payload)

	activity := &models.ActivityEvent{
		ExternalEventID: externalEventID(event),
		Namespace:       stringField(event, "namespace"),
		UserID:          stringField(event, "user_id"),
		Category:        categoryForStream(stream),
		Type:            stringFieldDefault(event, "event_type", "unknown"),
		Summary:         generateSummary(event),
		Severity:        stringFieldDefault(event, "severity", "info"),
		Payload:         &payloadStr,
		Timestamp:       parseTimestamp(event),
	}

	if agent := stringField(event, "agent_name"); agent != "" {
		activity.AgentName = &agent
	}
	if tool := stringField(event, "tool_name"); tool != "" {
		activity.ToolName = &tool
	}
	if workflow := stringField(event, "workflow_id"); workflow != "" {
		activity.WorkflowID = &workflow
	}
	if vendor, ok := numberField(event, "vendor_id"); ok {
		activity.VendorID = &vendor
	}
	return activity
}

// externalEventID prefers the bus event id, falling back to a composite key
// so redelivered events stay deduplicatable
func externalEventID(event map[string]any) string {
	if id := stringField(event, "event_id"); id != "" {
		return id
	}
	return fmt.Sprintf("%s-%s", stringField(event, "timestamp"), stringField(event, "event_type"))
}

func categoryForStream(stream string) string {
	switch {
	case strings.Contains(stream, "agents"):
		return models.CategoryAgent
	case strings.Contains(stream, "business"):
		return models.CategoryBusiness
	}
	return "unknown"
}

// generateSummary builds a human-readable summary, falling back to a
// title-cased rendering of the event type's last segment
func generateSummary(event map[string]any) string {
	if summary := stringField(event, "summary"); summary != "" {
		return summary
	}

	eventType := stringFieldDefault(event, "event_type", "unknown")
	parts := strings.Split(eventType, ".")
	action := parts[len(parts)-1]
	summary := titleCase(action)

	if tool := stringField(event, "tool_name"); tool != "" {
		return summary + ": " + tool
	}
	if agent := stringField(event, "agent_name"); agent != "" {
		return titleCase(agent) + ": " + summary
	}
	return summary
}

func titleCase(s string) string {
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// parseTimestamp reads the event's RFC3339 timestamp, falling back to now
func parseTimestamp(event map[string]any) time.Time {
	if raw := stringField(event, "timestamp"); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return ts.UTC()
		}
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}

func stringField(event map[string]any, key string) string {
	value, _ := event[key].(string)
	return value
}

func stringFieldDefault(event map[string]any, key, fallback string) string {
	if value := stringField(event, key); value != "" {
		return value
	}
	return fallback
}

func numberField(event map[string]any, key string) (int, bool) {
	switch value := event[key].(type) {
	case float64:
		return int(value), true
	case int:
		return value, true
	}
	return 0, false
}
