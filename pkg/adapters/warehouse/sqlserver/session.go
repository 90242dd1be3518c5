package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/logging"
)

// Session is a single SQL Server connection used by one walk.
type Session struct {
	db      *sql.DB
	version string
}

// Open connects, probes the server version and returns a session.
// Failures are returned as *apperrors.ConnectionError.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	connErr := func(err error) error {
		return &apperrors.ConnectionError{Account: cfg.Host, Cause: errors.New(logging.SanitizeError(err))}
	}

	var (
		db  *sql.DB
		err error
	)
	switch cfg.AuthMethod {
	case "sql":
		db, err = createSQLAuthConnection(cfg)
	case "service_principal":
		db, err = createServicePrincipalConnection(cfg)
	default:
		err = fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
	if err != nil {
		return nil, connErr(err)
	}
	db.SetMaxOpenConns(1)

	s := &Session{db: db}
	if err := db.QueryRowContext(ctx, "SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))").Scan(&s.version); err != nil {
		db.Close()
		return nil, connErr(err)
	}
	logger.Info("SQL Server session opened", zap.String("host", cfg.Host), zap.String("version", s.version))
	return s, nil
}

// connectionQuery holds the options shared by every auth method.
func connectionQuery(cfg *Config) url.Values {
	query := url.Values{}
	if cfg.Database != "" {
		query.Add("database", cfg.Database)
	}
	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeout))
	}
	return query
}

// sqlAuthConnString builds a connection string for SQL Server authentication.
func sqlAuthConnString(cfg *Config) string {
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		connectionQuery(cfg).Encode(),
	)
}

func createSQLAuthConnection(cfg *Config) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", sqlAuthConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open SQL auth connection: %w", err)
	}
	return db, nil
}

// createServicePrincipalConnection uses the azuresql driver with a
// client-credentials Azure AD login.
func createServicePrincipalConnection(cfg *Config) (*sql.DB, error) {
	query := connectionQuery(cfg)
	query.Add("fedauth", "ActiveDirectoryServicePrincipal")
	query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
	query.Add("password", cfg.ClientSecret)

	connStr := fmt.Sprintf("sqlserver://%s:%d?%s", cfg.Host, cfg.Port, query.Encode())
	db, err := sql.Open("azuresql", connStr)
	if err != nil {
		return nil, fmt.Errorf("open service principal connection: %w", err)
	}
	return db, nil
}

// Query runs a projecting statement. SET NOCOUNT ON keeps row-count
// messages out of the result stream.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*warehouse.QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, "SET NOCOUNT ON; "+query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return warehouse.ScanRows(rows)
}

// Version is the server product version.
func (s *Session) Version() string { return s.version }

// Close releases the connection.
func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	return db.Close()
}
