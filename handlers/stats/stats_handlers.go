package stats

import (
	"log"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/steadhac/finbot-ctf/middleware"
	"github.com/steadhac/finbot-ctf/models"
	"github.com/steadhac/finbot-ctf/services"
	"github.com/steadhac/finbot-ctf/utils"
)

const ErrFailedFetchStats = "Failed to fetch stats"

var (
	ledger        *services.ScoreLedger
	challengeRepo services.ChallengeStore
	progressRepo  services.ProgressStore
	badgeRepo     services.BadgeStore
)

// CategoryStats is the caller's completion state within one category
type CategoryStats struct {
	Category       string  `json:"category"`
	Completed      int     `json:"completed"`
	Total          int     `json:"total"`
	CompletionRate float64 `json:"completion_rate"`
}

// StatsResponse is the caller's engagement summary
type StatsResponse struct {
	TotalPoints          int             `json:"total_points"`
	Rank                 string          `json:"rank"`
	ChallengesCompleted  int             `json:"challenges_completed"`
	ChallengesTotal      int             `json:"challenges_total"`
	ChallengesInProgress int             `json:"challenges_in_progress"`
	CompletionRate       float64         `json:"completion_rate"`
	BadgesEarned         int             `json:"badges_earned"`
	BadgesTotal          int             `json:"badges_total"`
	HintsUsed            int             `json:"hints_used"`
	HintsCost            int             `json:"hints_cost"`
	Categories           []CategoryStats `json:"categories"`
}

// GetStats Get the caller's engagement summary
// @Summary Get user stats
// @Description Get the caller's total score, rank, completion counts, and per-category progress
// @Tags Stats
// @Accept json
// @Produce json
// @Success 200 {object} StatsResponse
// @Failure 401 {object} map[string]string
// @Router /stats [get]
// @Security Bearer
func GetStats(c *gin.Context) {
	session := middleware.GetSession(c)
	ctx := c.Request.Context()

	totalPoints, err := ledger.TotalFor(ctx, session.Namespace, session.UserID)
	if err != nil {
		log.Printf("Error fetching total points: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": ErrFailedFetchStats})
		return
	}

	challengeList, err := challengeRepo.ListChallenges(ctx, "", "", true)
	if err != nil {
		log.Printf("Error fetching challenges: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": ErrFailedFetchStats})
		return
	}
	categoryByChallenge := make(map[string]string, len(challengeList))
	for i := range challengeList {
		categoryByChallenge[challengeList[i].ID] = challengeList[i].Category
	}

	progressList, err := progressRepo.ListProgress(ctx, session.Namespace, session.UserID)
	if err != nil {
		log.Printf("Error fetching progress: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": ErrFailedFetchStats})
		return
	}

	awards, err := badgeRepo.ListBadgeAwards(ctx, session.Namespace, session.UserID)
	if err != nil {
		log.Printf("Error fetching badge awards: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": ErrFailedFetchStats})
		return
	}
	earnedBadges := make(map[string]bool, len(awards))
	for i := range awards {
		earnedBadges[awards[i].BadgeID] = true
	}

	badgeList, err := badgeRepo.ListBadges(ctx, "", true)
	if err != nil {
		log.Printf("Error fetching badges: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": ErrFailedFetchStats})
		return
	}
	// Count badges under the same visibility rule as the catalog: secret
	// badges only exist once earned
	badgesTotal := 0
	for i := range badgeList {
		if badgeList[i].IsSecret && !earnedBadges[badgeList[i].ID] {
			continue
		}
		badgesTotal++
	}

	completedByCategory := make(map[string]int)
	totalByCategory := make(map[string]int)
	for i := range challengeList {
		totalByCategory[challengeList[i].Category]++
	}

	resp := StatsResponse{
		TotalPoints:     totalPoints,
		Rank:            utils.RankForPoints(totalPoints),
		ChallengesTotal: len(challengeList),
		BadgesEarned:    len(awards),
		BadgesTotal:     badgesTotal,
	}

	for i := range progressList {
		progress := &progressList[i]
		resp.HintsUsed += len(progress.UsedHintIndices())
		resp.HintsCost += progress.HintsCost
		switch progress.Status {
		case models.StatusCompleted:
			resp.ChallengesCompleted++
			if category, exists := categoryByChallenge[progress.ChallengeID]; exists {
				completedByCategory[category]++
			}
		case models.StatusInProgress:
			resp.ChallengesInProgress++
		}
	}
	resp.CompletionRate = utils.CompletionRate(resp.ChallengesCompleted, resp.ChallengesTotal)

	for category, total := range totalByCategory {
		resp.Categories = append(resp.Categories, CategoryStats{
			Category:       category,
			Completed:      completedByCategory[category],
			Total:          total,
			CompletionRate: utils.CompletionRate(completedByCategory[category], total),
		})
	}
	sort.Slice(resp.Categories, func(i, j int) bool {
		return resp.Categories[i].Category < resp.Categories[j].Category
	})

	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers all routes related to stats
// r: the RouterGroup to which the routes are added
func RegisterRoutes(r *gin.RouterGroup, scoreLedger *services.ScoreLedger, challengeStore services.ChallengeStore, progressStore services.ProgressStore, badgeStore services.BadgeStore) {
	ledger = scoreLedger
	challengeRepo = challengeStore
	progressRepo = progressStore
	badgeRepo = badgeStore

	group := r.Group("/stats")
	group.Use(middleware.AuthMiddleware())
	{
		group.GET("/", GetStats)
	}
}
