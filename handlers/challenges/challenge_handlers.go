package challenges

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steadhac/finbot-ctf/middleware"
	"github.com/steadhac/finbot-ctf/models"
	"github.com/steadhac/finbot-ctf/services"
	"github.com/steadhac/finbot-ctf/utils/response"
)

var (
	service       *services.ChallengeService
	challengeRepo services.ChallengeStore
	progressRepo  services.ProgressStore
)

// GetChallenges Get all challenges with the caller's progress
// @Summary Get all challenges
// @Description Get all active challenges merged with the caller's progress, optionally filtered by category and difficulty
// @Tags Challenges
// @Accept json
// @Produce json
// @Param category query string false "Filter by category"
// @Param difficulty query string false "Filter by difficulty"
// @Param status query string false "Filter by the caller's progress status"
// @Success 200 {array} ChallengeResponse
// @Failure 401 {object} map[string]string
// @Router /challenges [get]
// @Security Bearer
func GetChallenges(c *gin.Context) {
	session := middleware.GetSession(c)
	ctx := c.Request.Context()

	challengeList, err := challengeRepo.ListChallenges(ctx, c.Query("category"), c.Query("difficulty"), true)
	if err != nil {
		log.Printf("Error fetching challenges: %v", err)
		respondWithError(c, http.StatusInternalServerError, ErrFailedFetch)
		return
	}

	progressList, err := progressRepo.ListProgress(ctx, session.Namespace, session.UserID)
	if err != nil {
		log.Printf("Error fetching progress: %v", err)
		respondWithError(c, http.StatusInternalServerError, ErrFailedFetchProgress)
		return
	}
	progressByChallenge := make(map[string]*models.ChallengeProgress, len(progressList))
	for i := range progressList {
		progressByChallenge[progressList[i].ChallengeID] = &progressList[i]
	}

	statusFilter := c.Query("status")
	results := make([]ChallengeResponse, 0, len(challengeList))
	for i := range challengeList {
		resp := buildChallengeResponse(&challengeList[i], progressByChallenge[challengeList[i].ID])
		if statusFilter != "" && resp.Status != statusFilter {
			continue
		}
		results = append(results, resp)
	}

	c.JSON(http.StatusOK, results)
}

// GetChallenge Get one challenge with the caller's progress
// @Summary Get a challenge
// @Description Get a single challenge merged with the caller's progress
// @Tags Challenges
// @Accept json
// @Produce json
// @Param challengeID path string true "Challenge ID"
// @Success 200 {object} ChallengeResponse
// @Failure 404 {object} map[string]string
// @Router /challenges/{challengeID} [get]
// @Security Bearer
func GetChallenge(c *gin.Context) {
	session := middleware.GetSession(c)
	ctx := c.Request.Context()
	challengeID := c.Param("challengeID")

	challenge, err := challengeRepo.GetChallenge(ctx, challengeID)
	if err != nil {
		log.Printf("Error fetching challenge %s: %v", challengeID, err)
		respondWithError(c, http.StatusInternalServerError, ErrFailedFetch)
		return
	}
	if challenge == nil || !challenge.IsActive {
		respondWithError(c, http.StatusNotFound, ErrChallengeNotFound)
		return
	}

	progress, err := progressRepo.GetProgress(ctx, session.Namespace, session.UserID, challengeID)
	if err != nil {
		log.Printf("Error fetching progress for %s: %v", challengeID, err)
		respondWithError(c, http.StatusInternalServerError, ErrFailedFetchProgress)
		return
	}

	c.JSON(http.StatusOK, buildChallengeResponse(challenge, progress))
}

// StartChallenge Start an attempt on a challenge
// @Summary Start a challenge
// @Description Transition the challenge to in_progress for the caller. Idempotent.
// @Tags Challenges
// @Accept json
// @Produce json
// @Param challengeID path string true "Challenge ID"
// @Success 200 {object} models.ChallengeProgress
// @Failure 404 {object} map[string]string
// @Router /challenges/{challengeID}/start [post]
// @Security Bearer
func StartChallenge(c *gin.Context) {
	session := middleware.GetSession(c)

	progress, err := service.StartAttempt(c.Request.Context(), session.Namespace, session.UserID, c.Param("challengeID"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// CheckChallenge Check a challenge for completion
// @Summary Check a challenge
// @Description Run the challenge's verifier against the caller's submission. Completion is awarded exactly once.
// @Tags Challenges
// @Accept json
// @Produce json
// @Param challengeID path string true "Challenge ID"
// @Param request body CheckRequest true "Submission to verify"
// @Success 200 {object} services.CheckResult
// @Failure 404 {object} map[string]string
// @Failure 504 {object} map[string]string
// @Router /challenges/{challengeID}/check [post]
// @Security Bearer
func CheckChallenge(c *gin.Context) {
	session := middleware.GetSession(c)

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	result, err := service.CheckCompletion(c.Request.Context(), session.Namespace, session.UserID, c.Param("challengeID"), req.Submission)
	if err != nil {
		response.AppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UseHint Purchase a hint on a challenge
// @Summary Use a hint
// @Description Unlock the hint at the given index, deducting its cost. Each hint is charged at most once.
// @Tags Challenges
// @Accept json
// @Produce json
// @Param challengeID path string true "Challenge ID"
// @Param request body HintRequest true "Hint index to unlock"
// @Success 200 {object} services.HintResult
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /challenges/{challengeID}/hint [post]
// @Security Bearer
func UseHint(c *gin.Context) {
	session := middleware.GetSession(c)

	var req HintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	result, err := service.UseHint(c.Request.Context(), session.Namespace, session.UserID, c.Param("challengeID"), req.HintIndex)
	if err != nil {
		response.AppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
