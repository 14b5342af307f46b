package main

import (
	"context"
	"log"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/steadhac/finbot-ctf/config"
	"github.com/steadhac/finbot-ctf/database"
	"github.com/steadhac/finbot-ctf/middleware"
	"github.com/steadhac/finbot-ctf/realtime"
	v1 "github.com/steadhac/finbot-ctf/routes/v1"
	"github.com/steadhac/finbot-ctf/services"
	"github.com/steadhac/finbot-ctf/workers"
)

// @title Finbot CTF API
// @version 1.0
// @description Engagement engine API: challenges, badges, scoring, and the live activity stream.
// @BasePath /api/v1
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
func main() {
	config.Init()
	database.InitDB()
	database.InitRedis()

	store := database.NewStore(database.DB)
	hub := realtime.NewHub()

	ledger := services.NewScoreLedger(store)
	activityStream := services.NewActivityStream(store, hub)
	badgeEvaluator := services.NewBadgeEvaluator(store, services.CriterionDeps{
		Challenges: store,
		Progress:   store,
		Scores:     store,
		Activity:   store,
	}, ledger, activityStream)
	challengeService := services.NewChallengeService(store, store, ledger, badgeEvaluator, activityStream)

	if database.REDIS != nil {
		processor := workers.NewEventProcessor(database.REDIS, activityStream, challengeService, badgeEvaluator)
		go processor.Run(context.Background())
	}

	middleware.UpdateSystemMetrics()

	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	if config.CORSOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(config.CORSOrigins, ",")
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	v1.Register(r, v1.Deps{
		Store:      store,
		Ledger:     ledger,
		Challenges: challengeService,
		Badges:     badgeEvaluator,
		Activity:   activityStream,
		Hub:        hub,
	})

	log.Printf("Starting server on :%s", config.Port)
	if err := r.Run(":" + config.Port); err != nil {
		log.Fatal("failed to start server: ", err)
	}
}
