package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects and pings, retrying a few times so the worker can
// start alongside a redis container that is still booting.
func NewRedisClient(ctx context.Context, url string, log *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	var pingErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if pingErr = client.Ping(ctx).Err(); pingErr == nil {
			break
		}
		log.Warn("redis ping failed", zap.Int("attempt", attempt), zap.Error(pingErr))
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	if pingErr != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unreachable: %w", pingErr)
	}

	log.Info("redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return client, nil
}
