package testutil

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

	"wordmaster-live/internal/config"
)

// OpenTestRedis connects to TEST_REDIS_URL or skips the test.
func OpenTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil || cfg.TestRedisURL == "" {
		t.Skip("skip test redis: TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(cfg.TestRedisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Fatalf("ping redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
