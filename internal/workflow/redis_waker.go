package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultWakeKey = "dispatch:wake"

// RedisWaker wakes idle runners through a capped redis list.
type RedisWaker struct {
	client *redis.Client
	key    string
}

func NewRedisWaker(client *redis.Client) *RedisWaker {
	return &RedisWaker{client: client, key: DefaultWakeKey}
}

func (w *RedisWaker) Notify(ctx context.Context) error {
	pipe := w.client.TxPipeline()
	pipe.LPush(ctx, w.key, time.Now().Unix())
	pipe.LTrim(ctx, w.key, 0, 99)
	_, err := pipe.Exec(ctx)
	return err
}

// Wait returns nil on a wake-up or on timeout.
func (w *RedisWaker) Wait(ctx context.Context, timeout time.Duration) error {
	if timeout < time.Second {
		timeout = time.Second
	}
	err := w.client.BLPop(ctx, timeout, w.key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
