package snowflake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/logging"
)

// Session is one authenticated Snowflake session. It is not safe for
// concurrent use; open one session per goroutine.
type Session struct {
	db      *sql.DB
	account string
	role    string
	version string
	logger  *zap.Logger
}

// Open establishes a session, applies the session parameters and probes
// it. Any failure is returned as a *apperrors.ConnectionError and no
// connection is left open.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	connErr := func(err error) error {
		return &apperrors.ConnectionError{Account: cfg.Account, Cause: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, connErr(fmt.Errorf("invalid config: %w", err))
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, connErr(err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, connErr(errors.New(logging.SanitizeError(err)))
	}
	// A single connection keeps session state (parameters, USE context) stable.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	probeCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout+cfg.LoginTimeout)
	defer cancel()

	s := &Session{db: db, account: cfg.Account, logger: logger}
	if err := db.QueryRowContext(probeCtx, "SELECT CURRENT_ROLE(), CURRENT_VERSION()").Scan(&s.role, &s.version); err != nil {
		db.Close()
		return nil, connErr(errors.New(logging.SanitizeError(err)))
	}

	logger.Info("Snowflake session opened",
		zap.String("account", cfg.Account),
		zap.String("role", s.role),
		zap.String("version", s.version))
	return s, nil
}

// WithSession opens a session, runs fn and always closes the session,
// whether fn returns normally, fails or panics.
func WithSession(ctx context.Context, cfg *Config, logger *zap.Logger, fn func(*Session) error) (err error) {
	s, err := Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// Query runs a projecting statement.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*warehouse.QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Debug("Snowflake query failed", zap.String("query", logging.SanitizeQuery(query)), zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	return warehouse.ScanRows(rows)
}

// Exec runs a non-projecting statement and reports affected rows.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (*warehouse.QueryResult, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Debug("Snowflake statement failed", zap.String("query", logging.SanitizeQuery(query)), zap.Error(err))
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// DDL has no affected-row count.
		n = 0
	}
	return &warehouse.QueryResult{RowsAffected: n}, nil
}

// Role is the role the session resolved to.
func (s *Session) Role() string { return s.role }

// Version is the Snowflake server version.
func (s *Session) Version() string { return s.version }

// Account is the normalized account identifier.
func (s *Session) Account() string { return s.account }

// Close releases the session. Safe to call more than once.
func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	s.logger.Debug("Snowflake session closed", zap.String("account", s.account))
	return db.Close()
}
