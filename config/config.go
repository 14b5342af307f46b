package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Environment configuration, loaded once at startup
var (
	Port             string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	RedisURL         string
	JWTSecret        string
	DefinitionsDir   string
	CORSOrigins      string
	VerifierBaseURL  string
)

// Init loads the .env file if present and resolves all configuration values
func Init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	Port = getEnv("PORT", "8080")
	PostgresHost = getEnv("POSTGRES_HOST", "localhost")
	PostgresPort = getEnv("POSTGRES_PORT", "5432")
	PostgresUser = getEnv("POSTGRES_USER", "finbot")
	PostgresPassword = getEnv("POSTGRES_PASSWORD", "finbot")
	PostgresDB = getEnv("POSTGRES_DB", "finbot_ctf")
	RedisURL = getEnv("REDIS_URL", "redis://localhost:6379/0")
	JWTSecret = getEnv("JWT_SECRET", "")
	DefinitionsDir = getEnv("DEFINITIONS_DIR", "definitions")
	CORSOrigins = getEnv("CORS_ORIGINS", "*")
	VerifierBaseURL = getEnv("VERIFIER_BASE_URL", "")

	if JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET is not set, sessions cannot be validated")
	}
}

func getEnv(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
