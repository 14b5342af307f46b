package database

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/steadhac/finbot-ctf/config"
	"github.com/steadhac/finbot-ctf/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var DB *gorm.DB

// InitDB initializes the database connection, migrates the models, and syncs
// the YAML challenge and badge definitions into the database
func InitDB() {
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=disable TimeZone=UTC", config.PostgresHost, config.PostgresPort, config.PostgresUser, config.PostgresDB, config.PostgresPassword)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database: ", err)
	}

	err = DB.AutoMigrate(
		&models.Challenge{},
		&models.ChallengeProgress{},
		&models.ScoreEvent{},
		&models.Badge{},
		&models.BadgeAward{},
		&models.ActivityEvent{},
	)
	if err != nil {
		log.Fatal("failed to migrate database: ", err)
	}

	Populate()
}

// Populate loads the YAML definitions from the definitions directory and
// upserts them. Rows absent from the directory are deactivated rather than
// deleted so existing progress and awards keep their references.
func Populate() {
	if config.DefinitionsDir == "" {
		log.Println("No definitions directory configured, skipping definition sync")
		return
	}

	challengeDefs, err := LoadChallengeDefinitions(filepath.Join(config.DefinitionsDir, "challenges"))
	if err != nil {
		log.Fatal("failed to load challenge definitions: ", err)
	}
	badgeDefs, err := LoadBadgeDefinitions(filepath.Join(config.DefinitionsDir, "badges"))
	if err != nil {
		log.Fatal("failed to load badge definitions: ", err)
	}

	challengeIDs := make([]string, 0, len(challengeDefs))
	for i := range challengeDefs {
		challenge, err := challengeDefs[i].ToModel()
		if err != nil {
			log.Fatal("failed to convert challenge definition: ", err)
		}
		if err := DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(challenge).Error; err != nil {
			log.Fatal("failed to upsert challenge: ", err)
		}
		challengeIDs = append(challengeIDs, challenge.ID)
	}
	if len(challengeIDs) > 0 {
		DB.Model(&models.Challenge{}).Where("id NOT IN ?", challengeIDs).Update("is_active", false)
	}

	badgeIDs := make([]string, 0, len(badgeDefs))
	for i := range badgeDefs {
		badge, err := badgeDefs[i].ToModel()
		if err != nil {
			log.Fatal("failed to convert badge definition: ", err)
		}
		if err := DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(badge).Error; err != nil {
			log.Fatal("failed to upsert badge: ", err)
		}
		badgeIDs = append(badgeIDs, badge.ID)
	}
	if len(badgeIDs) > 0 {
		DB.Model(&models.Badge{}).Where("id NOT IN ?", badgeIDs).Update("is_active", false)
	}

	log.Printf("Definitions synced: %d challenges, %d badges", len(challengeIDs), len(badgeIDs))
}
