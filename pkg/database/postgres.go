package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/retry"
)

const (
	defaultMaxConns        = 25
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
)

// DB is the catalog store pool. Repositories embed it for Query/Exec/Begin.
type DB struct {
	*pgxpool.Pool
}

// Config holds catalog store connection settings.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (c *Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	pc.MaxConns = orDefault(c.MaxConnections, defaultMaxConns)
	pc.MaxConnLifetime = orDefault(c.MaxConnLifetime, defaultMaxConnLifetime)
	pc.MaxConnIdleTime = orDefault(c.MaxConnIdleTime, defaultMaxConnIdleTime)
	return pc, nil
}

func orDefault[T int32 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// NewConnection opens the catalog store pool. The first connect is retried
// so the service can start alongside its database.
func NewConnection(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*pgxpool.Pool, error) {
		p, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.Warn("Catalog store not reachable yet", zap.Error(err))
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog store: %w", err)
	}

	logger.Info("Catalog store connected",
		zap.String("host", pc.ConnConfig.Host),
		zap.String("database", pc.ConnConfig.Database),
		zap.Int32("max_conns", pc.MaxConns))

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
