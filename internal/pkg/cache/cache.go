package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PropFox/internal/pkg/env"
)

var client *redis.Client

// SetupCache initializes the connection to the Redis server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")
	db, _ := strconv.Atoi(env.GetEnv("CACHE_DB", "0"))

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if pong, err := client.Ping(ctx).Result(); err != nil {
		log.Warnf("[Cache] Could not connect to Redis at %s:%s: %v", host, port, err)
	} else {
		log.Infof("[Cache] Connected to Redis: %s", pong)
	}
}

// SetClient replaces the shared client (tests, custom wiring)
func SetClient(c *redis.Client) {
	client = c
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Acquire sets key only if it does not exist yet. It returns true for the
// single caller that won; the key expires after ttl.
func Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return GetClient().SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Release deletes a key taken with Acquire so the next caller can win it.
func Release(ctx context.Context, key string) error {
	return GetClient().Del(ctx, key).Err()
}
