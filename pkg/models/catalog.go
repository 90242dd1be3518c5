package models

import (
	"time"
)

// Database is the top level of the catalog hierarchy.
// DatabaseID equals the database name.
type Database struct {
	DatabaseID      string            `json:"database_id"`
	Name            string            `json:"name"`
	Owner           string            `json:"owner"`
	DatabaseType    string            `json:"database_type"`
	Region          string            `json:"region"`
	Version         string            `json:"version"`
	Environment     string            `json:"environment"`
	Comment         string            `json:"comment"`
	Description     string            `json:"description"`
	Tags            map[string]string `json:"tags"`
	BusinessTerms   []string          `json:"business_terms"`
	SourceCreatedAt *time.Time        `json:"source_created_at,omitempty"`
	SourceAlteredAt *time.Time        `json:"source_altered_at,omitempty"`
	CollectedAt     time.Time         `json:"collected_at"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Revision        int64             `json:"revision"`

	// LastEnrichmentAttempt is set only on enrichment candidate listings.
	LastEnrichmentAttempt *time.Time `json:"last_enrichment_attempt,omitempty"`
}

// Schema belongs to exactly one Database.
type Schema struct {
	SchemaID        string            `json:"schema_id"`
	DatabaseID      string            `json:"database_id"`
	Name            string            `json:"name"`
	Owner           string            `json:"owner"`
	Comment         string            `json:"comment"`
	Description     string            `json:"description"`
	Tags            map[string]string `json:"tags"`
	BusinessTerms   []string          `json:"business_terms"`
	SourceCreatedAt *time.Time        `json:"source_created_at,omitempty"`
	SourceAlteredAt *time.Time        `json:"source_altered_at,omitempty"`
	CollectedAt     time.Time         `json:"collected_at"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Revision        int64             `json:"revision"`
}

// Table is a base table or view within a Schema.
type Table struct {
	TableID          string            `json:"table_id"`
	SchemaID         string            `json:"schema_id"`
	DatabaseID       string            `json:"database_id"`
	Name             string            `json:"name"`
	TableType        string            `json:"table_type"`
	Owner            string            `json:"owner"`
	RowCount         *int64            `json:"row_count,omitempty"`
	ByteSize         *int64            `json:"byte_size,omitempty"`
	Comment          string            `json:"comment"`
	Description      string            `json:"description"`
	SensitivityLevel string            `json:"sensitivity_level"`
	DataDomain       string            `json:"data_domain"`
	RefreshFrequency string            `json:"refresh_frequency"`
	Keywords         []string          `json:"keywords"`
	BusinessTerms    []string          `json:"business_terms"`
	Tags             map[string]string `json:"tags"`
	LineageSources   []string          `json:"lineage_sources"`
	LineageTargets   []string          `json:"lineage_targets"`
	Profile          *ProfileSummary   `json:"profile,omitempty"`
	SourceCreatedAt  *time.Time        `json:"source_created_at,omitempty"`
	SourceAlteredAt  *time.Time        `json:"source_altered_at,omitempty"`
	CollectedAt      time.Time         `json:"collected_at"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Revision         int64             `json:"revision"`
	Columns          []*Column         `json:"columns,omitempty"` // populated on demand

	// LastEnrichmentAttempt is set only on enrichment candidate listings.
	LastEnrichmentAttempt *time.Time `json:"last_enrichment_attempt,omitempty"`
}

// Column belongs to a Table. OrdinalPosition is 1-based and as reported by the source.
type Column struct {
	ColumnID         string            `json:"column_id"`
	TableID          string            `json:"table_id"`
	Name             string            `json:"name"`
	OrdinalPosition  int               `json:"ordinal_position"`
	DataType         string            `json:"data_type"`
	IsNullable       bool              `json:"is_nullable"`
	DefaultValue     *string           `json:"default_value,omitempty"`
	MaxLength        *int64            `json:"max_length,omitempty"`
	NumericPrecision *int64            `json:"numeric_precision,omitempty"`
	NumericScale     *int64            `json:"numeric_scale,omitempty"`
	IsPrimaryKey     bool              `json:"is_primary_key"`
	IsForeignKey     bool              `json:"is_foreign_key"`
	IsUnique         bool              `json:"is_unique"`
	ReferencedTable  string            `json:"referenced_table,omitempty"`
	ReferencedColumn string            `json:"referenced_column,omitempty"`
	IsPII            bool              `json:"is_pii"`
	SensitivityLevel string            `json:"sensitivity_level"`
	Tags             map[string]string `json:"tags"`
	Stats            *ColumnStats      `json:"stats,omitempty"`
	Comment          string            `json:"comment"`
	Description      string            `json:"description"`
	CollectedAt      time.Time         `json:"collected_at"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Revision         int64             `json:"revision"`
}

// ColumnStats holds optional profiling results for one column.
type ColumnStats struct {
	NullCount     *int64     `json:"null_count,omitempty"`
	DistinctCount *int64     `json:"distinct_count,omitempty"`
	MinValue      *string    `json:"min_value,omitempty"`
	MaxValue      *string    `json:"max_value,omitempty"`
	ProfiledAt    *time.Time `json:"profiled_at,omitempty"`
}

// ProfileSummary aggregates a table's column profiles.
type ProfileSummary struct {
	RowCount      *int64     `json:"row_count,omitempty"`
	TotalColumns  int        `json:"total_columns"`
	PIIColumns    int        `json:"pii_columns"`
	ProfilingDate *time.Time `json:"profiling_date,omitempty"`
}

// Constraint types reported by the constraint resolver.
const (
	ConstraintPrimaryKey = "PRIMARY KEY"
	ConstraintForeignKey = "FOREIGN KEY"
	ConstraintUnique     = "UNIQUE"
)

// Constraint sources, from most to least authoritative.
const (
	ConstraintSourceMetadata = "metadata"
	ConstraintSourceIdentity = "identity"
	ConstraintSourceNaming   = "naming_convention"
)

// Constraint is one column-level key or uniqueness fact.
type Constraint struct {
	Type             string `json:"constraint_type"`
	Name             string `json:"constraint_name,omitempty"`
	ColumnName       string `json:"column_name"`
	ReferencedTable  string `json:"referenced_table,omitempty"`
	ReferencedColumn string `json:"referenced_column,omitempty"`
	Source           string `json:"source"`
}

// Sensitivity levels.
const (
	SensitivityHigh   = "high"
	SensitivityMedium = "medium"
	SensitivityLow    = "low"
	SensitivityNone   = "none"
)

// Page bounds list queries.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// DefaultPageLimit applies when a caller passes no limit.
const DefaultPageLimit = 100

// Normalize clamps the page into a usable range.
func (p Page) Normalize() Page {
	if p.Limit <= 0 || p.Limit > 1000 {
		p.Limit = DefaultPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Snapshot is the flat four-collection export shape.
type Snapshot struct {
	ProcessID   string      `json:"process_id" yaml:"process_id"`
	GeneratedAt time.Time   `json:"generated_at" yaml:"generated_at"`
	Databases   []*Database `json:"databases" yaml:"databases"`
	Schemas     []*Schema   `json:"schemas" yaml:"schemas"`
	Tables      []*Table    `json:"tables" yaml:"tables"`
	Columns     []*Column   `json:"columns" yaml:"columns"`
}
