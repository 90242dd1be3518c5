package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the configuration file read when no --config flag is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for the catalog service.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Database configuration (PostgreSQL catalog store)
	Database DatabaseConfig `yaml:"database"`

	// Redis backs the progress ledger. Empty host selects the in-memory ledger.
	Redis RedisConfig `yaml:"redis"`

	Warehouse  WarehouseConfig  `yaml:"warehouse"`
	Collection CollectionConfig `yaml:"collection"`
	LLM        LLMConfig        `yaml:"llm"`
	Glue       GlueConfig       `yaml:"glue"`
	Export     ExportConfig     `yaml:"export"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"catalog"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"data_catalog"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// WarehouseConfig holds session defaults applied to every warehouse connection.
type WarehouseConfig struct {
	// DefaultRegion is appended to account identifiers that carry no region.
	DefaultRegion           string `yaml:"default_region" env:"SNOWFLAKE_DEFAULT_REGION" env-default:"ap-south-1"`
	ConnectTimeoutSeconds   int    `yaml:"connect_timeout_seconds" env:"SNOWFLAKE_CONNECT_TIMEOUT" env-default:"30"`
	LoginTimeoutSeconds     int    `yaml:"login_timeout_seconds" env:"SNOWFLAKE_LOGIN_TIMEOUT" env-default:"60"`
	StatementTimeoutSeconds int    `yaml:"statement_timeout_seconds" env:"SNOWFLAKE_STATEMENT_TIMEOUT" env-default:"300"`
}

// CollectionConfig bounds the cost of a metadata walk.
type CollectionConfig struct {
	MaxTablesPerSchema     int `yaml:"max_tables_per_schema" env:"COLLECTION_MAX_TABLES_PER_SCHEMA" env-default:"1000"`
	MaxSchemasPerDatabase  int `yaml:"max_schemas_per_db" env:"COLLECTION_MAX_SCHEMAS_PER_DB" env-default:"100"`
	MetadataTimeoutSeconds int `yaml:"metadata_timeout_seconds" env:"COLLECTION_METADATA_TIMEOUT" env-default:"1800"`
	ParallelWorkers        int `yaml:"parallel_workers" env:"COLLECTION_PARALLEL_WORKERS" env-default:"4"`
	LedgerTTLSeconds       int `yaml:"ledger_ttl_seconds" env:"COLLECTION_LEDGER_TTL" env-default:"3600"`
}

// LLMConfig selects and configures the enrichment provider.
type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	// Empty disables enrichment; the enrichment pass then records empty results.
	Provider      string  `yaml:"provider" env:"LLM_PROVIDER" env-default:""`
	BaseURL       string  `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model         string  `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	Temperature   float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.3"`
	MaxTokens     int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`
	MaxConcurrent int     `yaml:"max_concurrent" env:"LLM_MAX_CONCURRENT" env-default:"4"`
	APIKey        string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
}

// IsEnabled returns true if an enrichment provider is configured.
func (c *LLMConfig) IsEnabled() bool {
	return c.Provider != "" && c.Model != ""
}

// GlueConfig holds AWS settings for the Glue catalog source.
type GlueConfig struct {
	Profile string `yaml:"profile" env:"AWS_PROFILE" env-default:""`
	Region  string `yaml:"region" env:"AWS_REGION" env-default:""`
}

// ExportConfig controls the optional post-collection exports.
type ExportConfig struct {
	S3Bucket string `yaml:"s3_bucket" env:"EXPORT_S3_BUCKET" env-default:""`
	S3Prefix string `yaml:"s3_prefix" env:"EXPORT_S3_PREFIX" env-default:"catalog-snapshots"`
	// Format is "json" or "yaml".
	Format string `yaml:"format" env:"EXPORT_FORMAT" env-default:"json"`
	// WarehouseMirror writes the snapshot back into SNOWFLAKE_CATALOG tables.
	WarehouseMirror bool `yaml:"warehouse_mirror" env:"EXPORT_WAREHOUSE_MIRROR" env-default:"false"`
}

// Load reads configuration from path with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv builds a Config from environment variables and defaults only.
func LoadFromEnv(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finalize() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if c.BaseURL == "" {
		c.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + c.Port,
		}).String()
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	return nil
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "", "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic, got %q", c.LLM.Provider)
	}
	switch c.Export.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("export.format must be json or yaml, got %q", c.Export.Format)
	}
	if c.Collection.ParallelWorkers < 1 {
		return fmt.Errorf("collection.parallel_workers must be at least 1")
	}
	if c.Collection.LedgerTTLSeconds < 1 {
		return fmt.Errorf("collection.ledger_ttl_seconds must be positive")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the store connection string in URL form, used by migrations.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// MetadataTimeout returns the default wall-clock budget for one collection job.
func (c *CollectionConfig) MetadataTimeout() time.Duration {
	return time.Duration(c.MetadataTimeoutSeconds) * time.Second
}

// LedgerTTL returns how long progress records are retained.
func (c *CollectionConfig) LedgerTTL() time.Duration {
	return time.Duration(c.LedgerTTLSeconds) * time.Second
}
