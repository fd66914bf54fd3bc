package markers

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "wordmaster:quiz_done:"

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(ctx context.Context, rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing client. A zero ttl keeps markers forever.
func NewRedisFromClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) MarkCompleted(ctx context.Context, sessionID, userID string) error {
	return r.client.SetNX(ctx, redisKeyPrefix+key(sessionID, userID), time.Now().UTC().Format(time.RFC3339), r.ttl).Err()
}

func (r *Redis) Completed(ctx context.Context, sessionID, userID string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKeyPrefix+key(sessionID, userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
