package snowflake

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"

	pkgsql "github.com/Sumeet513/snowflake-data-catalog/pkg/sql"
)

const (
	DefaultRegion           = "ap-south-1"
	DefaultConnectTimeout   = 30 * time.Second
	DefaultLoginTimeout     = 60 * time.Second
	DefaultStatementTimeout = 300 * time.Second

	hostSuffix = ".snowflakecomputing.com"
)

// Config contains Snowflake connection options.
type Config struct {
	Account   string
	User      string
	Password  string
	Warehouse string
	Role      string

	// Database and Schema restrict collection when set.
	Database string
	Schema   string

	// DefaultRegion is appended to account identifiers that carry none.
	DefaultRegion string

	ConnectTimeout   time.Duration
	LoginTimeout     time.Duration
	StatementTimeout time.Duration
}

// NormalizeAccount turns whatever a user pasted (URL, host name or bare
// locator) into an account identifier. Identifiers without a region or
// org separator get defaultRegion appended.
func NormalizeAccount(account, defaultRegion string) string {
	a := strings.TrimSpace(account)
	a = strings.TrimPrefix(a, "https://")
	a = strings.TrimPrefix(a, "http://")
	a = strings.TrimSuffix(a, "/")
	if i := strings.Index(strings.ToLower(a), hostSuffix); i >= 0 {
		a = a[:i]
	}
	if a == "" {
		return a
	}
	if defaultRegion == "" {
		defaultRegion = DefaultRegion
	}
	if !strings.ContainsAny(a, "-.") {
		a = a + "." + defaultRegion
	}
	return a
}

// RegionOf returns the region segment of a normalized account identifier.
func RegionOf(account string) string {
	if i := strings.Index(account, "."); i >= 0 {
		return account[i+1:]
	}
	return ""
}

// FromMap builds a Config from a generic config map.
// Timeouts are given in seconds.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		DefaultRegion:    DefaultRegion,
		ConnectTimeout:   DefaultConnectTimeout,
		LoginTimeout:     DefaultLoginTimeout,
		StatementTimeout: DefaultStatementTimeout,
	}

	str := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := config[k].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}

	if region := str("default_region"); region != "" {
		cfg.DefaultRegion = region
	}
	cfg.Account = NormalizeAccount(str("account"), cfg.DefaultRegion)
	cfg.User = str("user", "username")
	cfg.Password = str("password")
	cfg.Warehouse = str("warehouse")
	cfg.Role = str("role")
	cfg.Database = str("database")
	cfg.Schema = str("schema")

	for key, dst := range map[string]*time.Duration{
		"connect_timeout":   &cfg.ConnectTimeout,
		"login_timeout":     &cfg.LoginTimeout,
		"statement_timeout": &cfg.StatementTimeout,
	} {
		secs, err := seconds(config[key])
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		if secs > 0 {
			*dst = time.Duration(secs) * time.Second
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func seconds(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64: // JSON numbers
		return int(n), nil
	case string:
		if n == "" {
			return 0, nil
		}
		return strconv.Atoi(n)
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}

// Validate checks required fields and rejects values that look like
// injection attempts, since database and schema names end up in SHOW commands.
func (c *Config) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("account is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	if c.Warehouse == "" {
		return fmt.Errorf("warehouse is required")
	}
	if bad := pkgsql.CheckValues(map[string]string{
		"warehouse": c.Warehouse,
		"role":      c.Role,
		"database":  c.Database,
		"schema":    c.Schema,
	}); bad != nil {
		return bad
	}
	return nil
}

// SessionParams are applied to every connection.
func (c *Config) SessionParams() map[string]string {
	return map[string]string{
		"STATEMENT_TIMEOUT_IN_SECONDS": strconv.Itoa(int(c.StatementTimeout / time.Second)),
		"TIMESTAMP_OUTPUT_FORMAT":      "YYYY-MM-DD HH24:MI:SS.FF",
		"DATE_OUTPUT_FORMAT":           "YYYY-MM-DD",
	}
}

// DSN renders the driver connection string.
func (c *Config) DSN() (string, error) {
	params := map[string]*string{}
	for k, v := range c.SessionParams() {
		params[k] = &v
	}

	sfCfg := &gosnowflake.Config{
		Account:        c.Account,
		User:           c.User,
		Password:       c.Password,
		Warehouse:      c.Warehouse,
		Role:           c.Role,
		Database:       c.Database,
		Schema:         c.Schema,
		LoginTimeout:   c.LoginTimeout,
		RequestTimeout: c.ConnectTimeout,
		Params:         params,
		Application:    "snowflake-data-catalog",
	}
	dsn, err := gosnowflake.DSN(sfCfg)
	if err != nil {
		return "", fmt.Errorf("build snowflake DSN: %w", err)
	}
	return dsn, nil
}
