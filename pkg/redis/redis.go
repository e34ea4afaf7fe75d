package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/ride-booking/pkg/config"
	"github.com/richxcame/ride-booking/pkg/resilience"
)

// Client is the shared connection used for trip locks and rate limiting.
type Client struct {
	*redis.Client
}

// Short socket timeouts keep a stalled Redis from eating the trip lock wait.
func options(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// NewRedisClient connects and pings, retrying a few times so services can
// start alongside Redis.
func NewRedisClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 4
	retry.InitialBackoff = 500 * time.Millisecond
	if _, err := resilience.Retry(ctx, retry, func(ctx context.Context) (interface{}, error) {
		return nil, client.Ping(ctx).Err()
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to connect to redis at %s: %w", cfg.RedisAddr(), err)
	}

	return &Client{Client: client}, nil
}
