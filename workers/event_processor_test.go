package workers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadhac/finbot-ctf/models"
)

func TestDecodeEvent(t *testing.T) {
	decoded := decodeEvent(map[string]any{
		"event_type": "agent.llm_response",
		"vendor_id":  "42",
		"success":    "true",
		"details":    `{"tokens":128,"model":"gpt-4"}`,
		"summary":    "plain text stays a string",
	})

	assert.Equal(t, "agent.llm_response", decoded["event_type"])
	assert.Equal(t, float64(42), decoded["vendor_id"])
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, map[string]any{"tokens": float64(128), "model": "gpt-4"}, decoded["details"])
	assert.Equal(t, "plain text stays a string", decoded["summary"])
}

func TestGenerateSummary(t *testing.T) {
	tests := []struct {
		name     string
		event    map[string]any
		expected string
	}{
		{
			"explicit summary wins",
			map[string]any{"summary": "Invoice paid", "event_type": "business.invoice_paid"},
			"Invoice paid",
		},
		{
			"event type last segment",
			map[string]any{"event_type": "agent.onboarding_agent.task_start"},
			"Task Start",
		},
		{
			"tool context",
			map[string]any{"event_type": "agent.tool_call", "tool_name": "fetch_invoice"},
			"Tool Call: fetch_invoice",
		},
		{
			"agent context",
			map[string]any{"event_type": "agent.task_start", "agent_name": "onboarding_agent"},
			"Onboarding Agent: Task Start",
		},
		{
			"missing event type",
			map[string]any{},
			"Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, generateSummary(tt.event))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	parsed := parseTimestamp(map[string]any{"timestamp": "2026-02-02T06:15:19.771647Z"})
	assert.Equal(t, 2026, parsed.Year())
	assert.Equal(t, time.February, parsed.Month())

	// Invalid timestamps fall back to now
	before := time.Now().UTC()
	parsed = parseTimestamp(map[string]any{"timestamp": "not-a-time"})
	assert.False(t, parsed.Before(before))

	parsed = parseTimestamp(map[string]any{})
	assert.False(t, parsed.Before(before))
}

func TestCategoryForStream(t *testing.T) {
	assert.Equal(t, models.CategoryAgent, categoryForStream("finbot:events:agents"))
	assert.Equal(t, models.CategoryBusiness, categoryForStream("finbot:events:business"))
	assert.Equal(t, "unknown", categoryForStream("finbot:events:other"))
}

func TestBuildActivityEvent(t *testing.T) {
	event := map[string]any{
		"event_id":    "ev-123",
		"namespace":   "ns-1",
		"user_id":     "user-1",
		"event_type":  "agent.tool_call",
		"tool_name":   "fetch_invoice",
		"workflow_id": "wf-7",
		"vendor_id":   float64(3),
		"timestamp":   "2026-02-02T06:15:19Z",
	}

	activity := buildActivityEvent("finbot:events:agents", event)
	assert.Equal(t, "ev-123", activity.ExternalEventID)
	assert.Equal(t, "ns-1", activity.Namespace)
	assert.Equal(t, "user-1", activity.UserID)
	assert.Equal(t, models.CategoryAgent, activity.Category)
	assert.Equal(t, "agent.tool_call", activity.Type)
	assert.Equal(t, "Tool Call: fetch_invoice", activity.Summary)
	assert.Equal(t, "info", activity.Severity)
	require.NotNil(t, activity.ToolName)
	assert.Equal(t, "fetch_invoice", *activity.ToolName)
	require.NotNil(t, activity.WorkflowID)
	assert.Equal(t, "wf-7", *activity.WorkflowID)
	require.NotNil(t, activity.VendorID)
	assert.Equal(t, 3, *activity.VendorID)
	assert.Equal(t, 2026, activity.Timestamp.Year())
}

func TestBuildActivityEventExternalIDFallback(t *testing.T) {
	event := map[string]any{
		"namespace":  "ns-1",
		"user_id":    "user-1",
		"event_type": "business.invoice_paid",
		"timestamp":  "2026-02-02T06:15:19Z",
	}

	activity := buildActivityEvent("finbot:events:business", event)
	assert.Equal(t, "2026-02-02T06:15:19Z-business.invoice_paid", activity.ExternalEventID)
	assert.Equal(t, models.CategoryBusiness, activity.Category)
}
