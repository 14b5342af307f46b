package badges

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steadhac/finbot-ctf/middleware"
	"github.com/steadhac/finbot-ctf/models"
	"github.com/steadhac/finbot-ctf/services"
)

var (
	evaluator *services.BadgeEvaluator
	badgeRepo services.BadgeStore
)

// GetBadges Get all badges with the caller's award state
// @Summary Get all badges
// @Description Get all active badges merged with the caller's awards. Secret badges are hidden until earned.
// @Tags Badges
// @Accept json
// @Produce json
// @Param category query string false "Filter by category"
// @Param earned_only query bool false "Only return badges the caller has earned"
// @Success 200 {array} BadgeResponse
// @Failure 401 {object} map[string]string
// @Router /badges [get]
// @Security Bearer
func GetBadges(c *gin.Context) {
	session := middleware.GetSession(c)
	ctx := c.Request.Context()

	badgeList, err := badgeRepo.ListBadges(ctx, c.Query("category"), true)
	if err != nil {
		log.Printf("Error fetching badges: %v", err)
		respondWithError(c, http.StatusInternalServerError, ErrFailedFetch)
		return
	}

	awards, err := badgeRepo.ListBadgeAwards(ctx, session.Namespace, session.UserID)
	if err != nil {
		log.Printf("Error fetching badge awards: %v", err)
		respondWithError(c, http.StatusInternalServerError, ErrFailedFetch)
		return
	}
	awardByBadge := make(map[string]*models.BadgeAward, len(awards))
	for i := range awards {
		awardByBadge[awards[i].BadgeID] = &awards[i]
	}

	earnedOnly := c.Query("earned_only") == "true"
	results := make([]BadgeResponse, 0, len(badgeList))
	for i := range badgeList {
		badge := &badgeList[i]
		award := awardByBadge[badge.ID]

		// Secret badges stay invisible until earned
		if badge.IsSecret && award == nil {
			continue
		}
		if earnedOnly && award == nil {
			continue
		}

		resp := buildBadgeResponse(badge, award)
		if award == nil {
			if progress, err := evaluator.CriterionProgress(ctx, session.Namespace, session.UserID, badge); err == nil {
				resp.Progress = progress
			}
		}
		results = append(results, resp)
	}

	c.JSON(http.StatusOK, results)
}

// GetBadge Get one badge with the caller's award state
// @Summary Get a badge
// @Description Get a single badge merged with the caller's award. Unearned secret badges return 404.
// @Tags Badges
// @Accept json
// @Produce json
// @Param badgeID path string true "Badge ID"
// @Success 200 {object} BadgeResponse
// @Failure 404 {object} map[string]string
// @Router /badges/{badgeID} [get]
// @Security Bearer
func GetBadge(c *gin.Context) {
	session := middleware.GetSession(c)
	ctx := c.Request.Context()
	badgeID := c.Param("badgeID")

	badge, err := badgeRepo.GetBadge(ctx, badgeID)
	if err != nil {
		log.Printf("Error fetching badge %s: %v", badgeID, err)
		respondWithError(c, http.StatusInternalServerError, ErrFailedFetch)
		return
	}
	if badge == nil || !badge.IsActive {
		respondWithError(c, http.StatusNotFound, ErrBadgeNotFound)
		return
	}

	award, err := badgeRepo.GetBadgeAward(ctx, session.Namespace, session.UserID, badgeID)
	if err != nil {
		log.Printf("Error fetching badge award %s: %v", badgeID, err)
		respondWithError(c, http.StatusInternalServerError, ErrFailedFetch)
		return
	}

	if badge.IsSecret && award == nil {
		respondWithError(c, http.StatusNotFound, ErrBadgeNotFound)
		return
	}

	resp := buildBadgeResponse(badge, award)
	if award == nil {
		if progress, err := evaluator.CriterionProgress(ctx, session.Namespace, session.UserID, badge); err == nil {
			resp.Progress = progress
		}
	}

	c.JSON(http.StatusOK, resp)
}
