package models

import (
	"time"
)

// Process statuses reported by the progress ledger.
const (
	StatusInitiated  = "initiated"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
	StatusTimeout    = "timeout"
	StatusNotFound   = "not_found"
)

// Collection phases, in the order a job passes through them.
const (
	PhaseInitialization      = "initialization"
	PhaseConnection          = "connection"
	PhaseCollectingDatabases = "collecting_databases"
	PhaseCollectingSchemas   = "collecting_schemas"
	PhaseCollectingTables    = "collecting_tables"
	PhaseCollectingColumns   = "collecting_columns"
	PhaseSaving              = "saving"
	PhaseSetupCatalog        = "setup_catalog"
	PhaseStoring             = "storing"
	PhaseCompleted           = "completed"
)

// CollectionStats accumulates counts over one job.
type CollectionStats struct {
	DatabaseCount     int `json:"database_count"`
	SchemaCount       int `json:"schema_count"`
	TableCount        int `json:"table_count"`
	ColumnCount       int `json:"column_count"`
	SkippedTables     int `json:"skipped_tables"`
	ErrorCount        int `json:"error_count"`
	PersistenceErrors int `json:"persistence_errors"`
}

// Add folds other into s.
func (s *CollectionStats) Add(other CollectionStats) {
	s.DatabaseCount += other.DatabaseCount
	s.SchemaCount += other.SchemaCount
	s.TableCount += other.TableCount
	s.ColumnCount += other.ColumnCount
	s.SkippedTables += other.SkippedTables
	s.ErrorCount += other.ErrorCount
	s.PersistenceErrors += other.PersistenceErrors
}

// HasErrors reports whether any node or record failed.
func (s *CollectionStats) HasErrors() bool {
	return s.ErrorCount > 0 || s.PersistenceErrors > 0
}

// ProgressUpdate is one write to the progress ledger.
// A zero Timestamp is stamped by the ledger.
type ProgressUpdate struct {
	Status    string           `json:"status"`
	Phase     string           `json:"phase,omitempty"`
	Progress  int              `json:"progress"`
	Message   string           `json:"message,omitempty"`
	Stats     *CollectionStats `json:"stats,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// ProcessStatus is what the status endpoint returns.
type ProcessStatus struct {
	ProcessID string           `json:"process_id"`
	Status    string           `json:"status"`
	Phase     string           `json:"phase,omitempty"`
	Progress  int              `json:"progress"`
	Message   string           `json:"message,omitempty"`
	Stats     *CollectionStats `json:"stats,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NotFoundStatus is returned for unknown or expired process identifiers.
func NotFoundStatus(processID string) *ProcessStatus {
	return &ProcessStatus{
		ProcessID: processID,
		Status:    StatusNotFound,
		Message:   "Process not found or expired",
	}
}

// Credentials identify a warehouse (or catalog service) to collect from.
// Only the fields relevant to the chosen source type are read.
type Credentials struct {
	Account   string `json:"account,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	Warehouse string `json:"warehouse,omitempty"`
	Role      string `json:"role,omitempty"`
	Database  string `json:"database,omitempty"`
	Schema    string `json:"schema,omitempty"`

	// SQL Server
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// AWS Glue
	CatalogID string `json:"catalog_id,omitempty"`
	Region    string `json:"region,omitempty"`
	Profile   string `json:"profile,omitempty"`

	ConnectTimeout   int `json:"connect_timeout,omitempty"`
	LoginTimeout     int `json:"login_timeout,omitempty"`
	StatementTimeout int `json:"statement_timeout,omitempty"`
}

// ToMap renders the credentials in the form source factories accept.
// Empty values are omitted so factory defaults apply.
func (c Credentials) ToMap() map[string]any {
	m := map[string]any{}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	putInt := func(k string, v int) {
		if v > 0 {
			m[k] = v
		}
	}
	put("account", c.Account)
	put("user", c.Username)
	put("password", c.Password)
	put("warehouse", c.Warehouse)
	put("role", c.Role)
	put("database", c.Database)
	put("schema", c.Schema)
	put("host", c.Host)
	putInt("port", c.Port)
	put("catalog_id", c.CatalogID)
	put("region", c.Region)
	put("profile", c.Profile)
	putInt("connect_timeout", c.ConnectTimeout)
	putInt("login_timeout", c.LoginTimeout)
	putInt("statement_timeout", c.StatementTimeout)
	return m
}

// Source types understood by the collector.
const (
	SourceSnowflake = "snowflake"
	SourceSQLServer = "sqlserver"
	SourceGlue      = "glue"
)

// CollectionRequest starts a metadata collection job.
type CollectionRequest struct {
	SourceType string `json:"source_type,omitempty"`
	Credentials
	MaxTablesPerSchema *int `json:"max_tables_per_schema,omitempty"`
	MaxSchemasPerDB    *int `json:"max_schemas_per_db,omitempty"`
	CollectStatistics  bool `json:"collect_statistics,omitempty"`
	// MetadataTimeout is the wall-clock budget in seconds.
	MetadataTimeout   *int `json:"metadata_timeout,omitempty"`
	ParallelDatabases bool `json:"parallel_databases,omitempty"`
}

// CollectionStarted is returned as soon as the background job is spawned.
type CollectionStarted struct {
	Status           string `json:"status"`
	ProcessID        string `json:"process_id"`
	TrackingEndpoint string `json:"tracking_endpoint"`
}
