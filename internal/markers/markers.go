// Package markers persists the per-participant "comprehension quiz done"
// flag so a finished quiz is never offered twice for the same session.
package markers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wordmaster-live/internal/config"
)

var ErrUnknownBackend = errors.New("unknown_marker_backend")

type Store interface {
	MarkCompleted(ctx context.Context, sessionID, userID string) error
	Completed(ctx context.Context, sessionID, userID string) (bool, error)
	Close() error
}

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.MarkerConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		return NewFile(cfg.File)
	case "memory":
		return NewMemory(), nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres marker backend: POSTGRES_DSN is empty")
		}
		return NewPostgres(ctx, cfg.PostgresDSN)
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis marker backend: REDIS_URL is empty")
		}
		return NewRedis(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func key(sessionID, userID string) string {
	return sessionID + "/" + userID
}
