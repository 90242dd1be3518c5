package database

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/config"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/retry"
)

// NewRedisClient connects the progress ledger's Redis. The first ping is
// retried like the catalog store connect.
// Returns nil if Redis is not configured (host is empty).
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis not reachable yet", zap.String("addr", client.Options().Addr), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisPinger adapts a Redis client to the health check interface.
type RedisPinger struct {
	Client *redis.Client
}

func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
