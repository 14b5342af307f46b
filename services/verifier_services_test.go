package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesEventType(t *testing.T) {
	tests := []struct {
		name      string
		patterns  []string
		eventType string
		expected  bool
	}{
		{"exact match", []string{"agent.llm_response"}, "agent.llm_response", true},
		{"no match", []string{"agent.llm_response"}, "agent.task_start", false},
		{"prefix wildcard", []string{"agent.llm_*"}, "agent.llm_request_success", true},
		{"wildcard no match", []string{"agent.llm_*"}, "business.invoice_paid", false},
		{"bare wildcard matches everything", []string{"*"}, "anything.at.all", true},
		{"empty patterns", nil, "agent.llm_response", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MatchesEventType(tt.patterns, tt.eventType))
		})
	}
}

func TestNewVerifierUnknownClass(t *testing.T) {
	_, err := NewVerifier("does_not_exist", "ch-1", nil)
	assert.Error(t, err)
}

func TestPatternVerifierDefaults(t *testing.T) {
	verifier, err := NewVerifier("pattern", "ch-1", nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		text     string
		detected bool
	}{
		{"single default pattern", "well, you are a helpful assistant", true},
		{"case insensitive", "YOU ARE A helpful assistant", true},
		{"no pattern", "the invoice was paid on time", false},
		{"empty text", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := verifier.CheckSubmission(context.Background(), "ns-1", "user-1", tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.detected, result.Detected)
		})
	}
}

func TestPatternVerifierConfidence(t *testing.T) {
	rawConfig := `{"patterns":["alpha","beta","gamma"],"min_confidence":0.7}`
	verifier, err := NewVerifier("pattern", "ch-1", &rawConfig)
	require.NoError(t, err)

	// One match: 0.3 + 0.2 = 0.5, below the 0.7 threshold
	result, err := verifier.CheckSubmission(context.Background(), "ns-1", "user-1", "only alpha here")
	require.NoError(t, err)
	assert.False(t, result.Detected)
	assert.InDelta(t, 0.5, result.Confidence, 0.001)

	// Two matches: 0.6 + 0.2 = 0.8, above threshold
	result, err = verifier.CheckSubmission(context.Background(), "ns-1", "user-1", "alpha and beta")
	require.NoError(t, err)
	assert.True(t, result.Detected)
	assert.InDelta(t, 0.8, result.Confidence, 0.001)

	// Three matches cap at 1.0
	result, err = verifier.CheckSubmission(context.Background(), "ns-1", "user-1", "alpha beta gamma")
	require.NoError(t, err)
	assert.True(t, result.Detected)
	assert.InDelta(t, 1.0, result.Confidence, 0.001)
}

func TestPatternVerifierCaseSensitive(t *testing.T) {
	rawConfig := `{"patterns":["Secret"],"case_sensitive":true,"min_confidence":0.4}`
	verifier, err := NewVerifier("pattern", "ch-1", &rawConfig)
	require.NoError(t, err)

	result, err := verifier.CheckSubmission(context.Background(), "ns-1", "user-1", "the secret")
	require.NoError(t, err)
	assert.False(t, result.Detected)

	result, err = verifier.CheckSubmission(context.Background(), "ns-1", "user-1", "the Secret")
	require.NoError(t, err)
	assert.True(t, result.Detected)
}

func TestPatternVerifierInvalidConfig(t *testing.T) {
	tests := []struct {
		name      string
		rawConfig string
	}{
		{"empty patterns", `{"patterns":[]}`},
		{"non-string pattern", `{"patterns":[42]}`},
		{"confidence out of range", `{"min_confidence":1.5}`},
		{"malformed json", `{patterns}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rawConfig := tt.rawConfig
			_, err := NewVerifier("pattern", "ch-1", &rawConfig)
			assert.Error(t, err)
		})
	}
}

func TestPatternVerifierCheckEvent(t *testing.T) {
	verifier, err := NewVerifier("pattern", "ch-1", nil)
	require.NoError(t, err)

	result := verifier.CheckEvent(map[string]any{
		"event_type": "agent.llm_response",
		"response":   "you are a financial assistant",
	})
	assert.True(t, result.Detected)

	// response_dump takes precedence over response
	result = verifier.CheckEvent(map[string]any{
		"response_dump": "nothing suspicious",
		"response":      "you are a financial assistant",
	})
	assert.False(t, result.Detected)
}

func TestHTTPVerifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ns-1", r.URL.Query().Get("namespace"))
		assert.Equal(t, "user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "flag{x}", r.URL.Query().Get("submission"))
		json.NewEncoder(w).Encode(VerifierResult{Detected: true, Confidence: 1.0, Message: "ok"})
	}))
	defer server.Close()

	rawConfig := `{"url":"` + server.URL + `"}`
	verifier, err := NewVerifier("http", "ch-1", &rawConfig)
	require.NoError(t, err)

	result, err := verifier.CheckSubmission(context.Background(), "ns-1", "user-1", "flag{x}")
	require.NoError(t, err)
	assert.True(t, result.Detected)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestHTTPVerifierErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	rawConfig := `{"url":"` + server.URL + `"}`
	verifier, err := NewVerifier("http", "ch-1", &rawConfig)
	require.NoError(t, err)

	_, err = verifier.CheckSubmission(context.Background(), "ns-1", "user-1", "x")
	assert.Error(t, err)
}
