package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const webhookDedupTTL = 24 * time.Hour

// RedisDuplicateGuard short-circuits exact webhook replays with SETNX.
type RedisDuplicateGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDuplicateGuard(client *redis.Client) *RedisDuplicateGuard {
	return &RedisDuplicateGuard{client: client, ttl: webhookDedupTTL}
}

func (g *RedisDuplicateGuard) FirstSeen(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, key, 1, g.ttl).Result()
}

func (g *RedisDuplicateGuard) Forget(ctx context.Context, key string) error {
	return g.client.Del(ctx, key).Err()
}

func statusDedupKey(messageID, status string) string {
	return "wh:" + messageID + ":" + status
}
