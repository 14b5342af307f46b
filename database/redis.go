package database

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/steadhac/finbot-ctf/config"
)

var REDIS *redis.Client

// InitRedis connects the shared Redis client used by the event stream
// consumer. A missing Redis is not fatal: the processor is disabled.
func InitRedis() {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		log.Printf("Invalid Redis URL, Redis disabled: %v", err)
		return
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Failed to connect to Redis, Redis disabled: %v", err)
		return
	}

	REDIS = client
	log.Println("Successfully connected to Redis")
}
