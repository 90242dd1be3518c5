package sqlserver

import (
	"fmt"
	"strconv"

	pkgsql "github.com/Sumeet513/snowflake-data-catalog/pkg/sql"
)

// Config contains SQL Server connection options.
type Config struct {
	Host string
	Port int

	// Database restricts collection to one database when set.
	Database string

	// AuthMethod is "sql" or "service_principal".
	AuthMethod string

	// SQL Authentication fields
	Username string
	Password string

	// Service Principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromMap creates a Config from a generic config map and auto-detects the auth method.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort(),
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}

	if host, ok := config["host"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	if port, err := intValue(config["port"]); err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	} else if port > 0 {
		cfg.Port = port
	}

	if database, ok := config["database"].(string); ok {
		cfg.Database = database
	}

	if encrypt, ok := config["encrypt"].(bool); ok {
		cfg.Encrypt = encrypt
	} else if encryptStr, ok := config["encrypt"].(string); ok {
		// Support string values: "true", "false", "strict"
		cfg.Encrypt = encryptStr == "true" || encryptStr == "strict"
	}

	if trust, ok := config["trust_server_certificate"].(bool); ok {
		cfg.TrustServerCertificate = trust
	}

	for _, key := range []string{"connection_timeout", "connect_timeout"} {
		if timeout, err := intValue(config[key]); err == nil && timeout > 0 {
			cfg.ConnectionTimeout = timeout
			break
		}
	}

	// Priority: client_id > username/user
	if authMethod, ok := config["auth_method"].(string); ok && authMethod != "" {
		cfg.AuthMethod = authMethod
	} else if _, hasClientID := config["client_id"].(string); hasClientID {
		cfg.AuthMethod = "service_principal"
	} else if username, _ := config["username"].(string); username != "" {
		cfg.AuthMethod = "sql"
	} else if user, _ := config["user"].(string); user != "" {
		cfg.AuthMethod = "sql"
	} else {
		return nil, fmt.Errorf("could not auto-detect auth method; no credentials provided")
	}

	switch cfg.AuthMethod {
	case "sql":
		if username, ok := config["username"].(string); ok && username != "" {
			cfg.Username = username
		} else if user, ok := config["user"].(string); ok {
			cfg.Username = user
		}
		cfg.Password, _ = config["password"].(string)
	case "service_principal":
		cfg.TenantID, _ = config["tenant_id"].(string)
		cfg.ClientID, _ = config["client_id"].(string)
		cfg.ClientSecret, _ = config["client_secret"].(string)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func intValue(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case float64: // JSON numbers are float64
		return int(n), nil
	case string:
		if n == "" {
			return 0, nil
		}
		return strconv.Atoi(n)
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}

// Validate checks if the config has all required fields for the selected auth method.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case "sql":
		if c.Username == "" {
			return fmt.Errorf("username is required for SQL authentication")
		}
	case "service_principal":
		if c.TenantID == "" {
			return fmt.Errorf("tenant_id is required for service principal")
		}
		if c.ClientID == "" {
			return fmt.Errorf("client_id is required for service principal")
		}
		if c.ClientSecret == "" {
			return fmt.Errorf("client_secret is required for service principal")
		}
	default:
		return fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", c.AuthMethod)
	}

	if bad := pkgsql.CheckValue("database", c.Database); bad != nil {
		return bad
	}
	return nil
}
