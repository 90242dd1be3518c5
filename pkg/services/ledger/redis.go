package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// RedisLedger stores each process status as one JSON value with a TTL.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisLedger creates a ledger on an existing Redis client.
func NewRedisLedger(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLedger{client: client, ttl: ttl, logger: logger.Named("ledger"), now: time.Now}
}

var _ Ledger = (*RedisLedger)(nil)

func (l *RedisLedger) Update(ctx context.Context, processID string, update models.ProgressUpdate) error {
	data, err := json.Marshal(toStatus(processID, update, l.now()))
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := l.client.Set(ctx, keyFor(processID), data, l.ttl).Err(); err != nil {
		return fmt.Errorf("write status for %s: %w", processID, err)
	}
	l.logger.Debug("Progress updated",
		zap.String("process_id", processID),
		zap.String("status", update.Status),
		zap.String("phase", update.Phase),
		zap.Int("progress", update.Progress))
	return nil
}

func (l *RedisLedger) Read(ctx context.Context, processID string) (*models.ProcessStatus, error) {
	data, err := l.client.Get(ctx, keyFor(processID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NotFoundStatus(processID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read status for %s: %w", processID, err)
	}
	var status models.ProcessStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode status for %s: %w", processID, err)
	}
	return &status, nil
}
