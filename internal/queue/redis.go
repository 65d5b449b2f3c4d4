package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teleagent/teleagent/internal/config"
)

// RedisQueue stores announcements in a Redis list: LPUSH to publish and
// BRPOP to consume.
type RedisQueue struct {
	client *redis.Client
	name   string
	wait   time.Duration
	log    *slog.Logger
}

// NewRedisQueue connects to Redis and checks the connection.
func NewRedisQueue(ctx context.Context, cfg config.QueueConfig, log *slog.Logger) (*RedisQueue, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return newRedisQueue(client, cfg, log), nil
}

func newRedisQueue(client *redis.Client, cfg config.QueueConfig, log *slog.Logger) *RedisQueue {
	name := cfg.Name
	if name == "" {
		name = config.DefaultQueueName
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = config.DefaultQueueBlockWait
	}
	return &RedisQueue{client: client, name: name, wait: wait, log: log.With("component", "redis_queue")}
}

func (q *RedisQueue) Publish(ctx context.Context, a Announcement) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode announcement: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, payload).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("failed to publish announcement: %w", err)
	}
	return nil
}

func (q *RedisQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		values, err := q.client.BRPop(ctx, q.wait, q.name).Result()
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				continue
			case errors.Is(err, redis.ErrClosed):
				return ErrClosed
			case ctx.Err() != nil:
				return ctx.Err()
			}
			return fmt.Errorf("failed to pop announcement: %w", err)
		}
		if len(values) != 2 {
			continue
		}

		var a Announcement
		if err := json.Unmarshal([]byte(values[1]), &a); err != nil {
			q.log.ErrorContext(ctx, "Dropping malformed announcement", "error", err)
			continue
		}
		if err := handler(ctx, a); err != nil {
			q.requeue(ctx, a, err)
		}
	}
}

func (q *RedisQueue) requeue(ctx context.Context, a Announcement, err error) {
	a, ok := retry(ctx, q.log, a, err)
	if !ok {
		return
	}
	payload, mErr := json.Marshal(a)
	if mErr != nil {
		return
	}
	if pErr := q.client.RPush(ctx, q.name, payload).Err(); pErr != nil {
		q.log.ErrorContext(ctx, "Failed to re-queue announcement", "error", pErr)
	}
}

func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}
