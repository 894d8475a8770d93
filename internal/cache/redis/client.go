package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rulings-explorer/backend/internal/metrics"
	"github.com/rulings-explorer/backend/pkg/circuitbreaker"
	"github.com/rulings-explorer/backend/pkg/logger"
	"github.com/rulings-explorer/backend/pkg/retry"
)

const rowsPrefix = "rows:"

// Client stores filtered row sets shared between replicas. Every call goes
// through a circuit breaker so an unreachable server degrades to a miss
// instead of stalling requests.
type Client struct {
	client  *redis.Client
	breaker *circuitbreaker.Breaker
}

func NewClient(ctx context.Context, host string, port int, password string, db int) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	c := newClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))

	err := retry.Do(ctx, "redis ping", retry.Config{MaxAttempts: 3, Logger: logger.Log}, func(ctx context.Context) error {
		return c.client.Ping(ctx).Err()
	})
	if err != nil {
		c.client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))
	return c, nil
}

func newClient(rc *redis.Client) *Client {
	return &Client{
		client: rc,
		breaker: circuitbreaker.New("redis", circuitbreaker.Config{
			FailureThreshold: 3,
			Cooldown:         15 * time.Second,
			Logger:           logger.Log,
			OnStateChange: func(_ string, _, to circuitbreaker.State) {
				metrics.CacheBreakerState.Set(float64(to))
			},
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetRows(ctx context.Context, key string, rows []int, ttl time.Duration) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}

	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, rowsPrefix+key, data, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set rows cache: %w", err)
	}

	logger.Debug("Rows cached", zap.String("key", key), zap.Int("rows", len(rows)), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetRows(ctx context.Context, key string) ([]int, bool, error) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.client.Get(ctx, rowsPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows cache: %w", err)
	}
	if data == nil {
		return nil, false, nil
	}

	var rows []int
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal rows: %w", err)
	}

	logger.Debug("Rows cache hit", zap.String("key", key))
	return rows, true, nil
}

// Invalidate drops every cached row set, e.g. after the dataset file has
// been replaced.
func (c *Client) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, rowsPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Row cache invalidated")
	return nil
}

// Ping reports whether the server answers, for readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.breaker.Execute(func() error {
		return c.client.Ping(ctx).Err()
	})
}
