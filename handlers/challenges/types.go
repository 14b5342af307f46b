package challenges

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/steadhac/finbot-ctf/models"
)

// Constants for error messages
const (
	ErrChallengeNotFound   = "Challenge not found"
	ErrFailedFetch         = "Failed to fetch challenges"
	ErrFailedFetchProgress = "Failed to fetch challenge progress"
	ErrInvalidRequest      = "Invalid request data"

	// LockedHintText masks hints that have not been purchased yet
	LockedHintText = "[locked]"
)

// CheckRequest is the body of a completion check
type CheckRequest struct {
	Submission string `json:"submission"`
}

// HintRequest is the body of a hint purchase
type HintRequest struct {
	HintIndex int `json:"hint_index"`
}

// HintView is a hint as shown to the caller: the text stays locked until the
// hint has been purchased
type HintView struct {
	Index int    `json:"index"`
	Cost  int    `json:"cost"`
	Text  string `json:"text"`
	Used  bool   `json:"used"`
}

// ChallengeResponse is a challenge merged with the caller's progress
type ChallengeResponse struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Category       string            `json:"category"`
	Subcategory    *string           `json:"subcategory,omitempty"`
	Difficulty     string            `json:"difficulty"`
	Points         int               `json:"points"`
	ImageURL       *string           `json:"image_url,omitempty"`
	Prerequisites  []string          `json:"prerequisites"`
	Resources      []models.Resource `json:"resources"`
	Hints          []HintView        `json:"hints"`
	Status         string            `json:"status"`
	Attempts       int               `json:"attempts"`
	FailedAttempts int               `json:"failed_attempts"`
	HintsCost      int               `json:"hints_cost"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	CompletionTime *int              `json:"completion_time_seconds,omitempty"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// buildChallengeResponse merges a challenge with the caller's progress row,
// which may be nil when the challenge was never touched
func buildChallengeResponse(challenge *models.Challenge, progress *models.ChallengeProgress) ChallengeResponse {
	resp := ChallengeResponse{
		ID:            challenge.ID,
		Title:         challenge.Title,
		Description:   challenge.Description,
		Category:      challenge.Category,
		Subcategory:   challenge.Subcategory,
		Difficulty:    challenge.Difficulty,
		Points:        challenge.Points,
		ImageURL:      challenge.ImageURL,
		Prerequisites: challenge.PrerequisiteList(),
		Resources:     challenge.ResourceList(),
		Status:        models.StatusAvailable,
	}
	if resp.Prerequisites == nil {
		resp.Prerequisites = []string{}
	}
	if resp.Resources == nil {
		resp.Resources = []models.Resource{}
	}

	if progress != nil {
		resp.Status = progress.Status
		resp.Attempts = progress.Attempts
		resp.FailedAttempts = progress.FailedAttempts
		resp.HintsCost = progress.HintsCost
		resp.CompletedAt = progress.CompletedAt
		resp.CompletionTime = progress.CompletionTimeSeconds
	}

	hints := challenge.HintList()
	resp.Hints = make([]HintView, 0, len(hints))
	for i, hint := range hints {
		view := HintView{Index: i, Cost: hint.Cost, Text: LockedHintText}
		if progress != nil && progress.HasUsedHint(i) {
			view.Text = hint.Text
			view.Used = true
		}
		resp.Hints = append(resp.Hints, view)
	}

	return resp
}
