package badges

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/steadhac/finbot-ctf/models"
)

// Constants for error messages
const (
	ErrBadgeNotFound = "Badge not found"
	ErrFailedFetch   = "Failed to fetch badges"
)

// BadgeResponse is a badge merged with the caller's award state. Progress is
// only reported for badges not yet earned.
type BadgeResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Rarity      string         `json:"rarity"`
	Points      int            `json:"points"`
	IconURL     *string        `json:"icon_url,omitempty"`
	IsSecret    bool           `json:"is_secret"`
	Earned      bool           `json:"earned"`
	EarnedAt    *time.Time     `json:"earned_at,omitempty"`
	Progress    map[string]any `json:"progress,omitempty"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func buildBadgeResponse(badge *models.Badge, award *models.BadgeAward) BadgeResponse {
	resp := BadgeResponse{
		ID:          badge.ID,
		Title:       badge.Title,
		Description: badge.Description,
		Category:    badge.Category,
		Rarity:      badge.Rarity,
		Points:      badge.Points,
		IconURL:     badge.IconURL,
		IsSecret:    badge.IsSecret,
	}
	if award != nil {
		resp.Earned = true
		resp.EarnedAt = &award.EarnedAt
	}
	return resp
}
