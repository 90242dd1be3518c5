package warehouse

import (
	"context"
	"time"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// Querier runs SQL against an open warehouse session.
// Column names in the result are lower-cased so callers can address
// SHOW output and INFORMATION_SCHEMA views the same way.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*QueryResult, error)
}

// QueryResult contains the results of a SQL statement.
// Non-projecting statements leave Columns and Rows empty and set RowsAffected.
type QueryResult struct {
	Columns      []string         `json:"columns"`
	Rows         []map[string]any `json:"rows"`
	RowsAffected int64            `json:"rows_affected"`
}

// SourceInfo describes the engine behind a MetadataSource.
type SourceInfo struct {
	Engine      string // "Snowflake", "SQL Server", "AWS Glue"
	Version     string
	Environment string
}

// DatabaseInfo is a raw database row as reported by a source.
type DatabaseInfo struct {
	Name      string
	Owner     string
	Region    string
	Comment   string
	CreatedAt *time.Time
	AlteredAt *time.Time
}

// SchemaInfo is a raw schema row as reported by a source.
type SchemaInfo struct {
	Name      string
	Owner     string
	Comment   string
	CreatedAt *time.Time
	AlteredAt *time.Time
}

// TableInfo is a raw table row. RowCount and Bytes come from cached
// statistics and are nil when the source does not report them.
type TableInfo struct {
	Name             string
	TableType        string
	Owner            string
	Comment          string
	RowCount         *int64
	Bytes            *int64
	CreatedAt        *time.Time
	AlteredAt        *time.Time
	SensitivityLevel string
	RefreshFrequency string
	Tags             map[string]string
}

// ColumnInfo is a raw column row. OrdinalPosition is 1-based.
type ColumnInfo struct {
	Name             string
	OrdinalPosition  int
	DataType         string
	IsNullable       bool
	Default          *string
	MaxLength        *int64
	NumericPrecision *int64
	NumericScale     *int64
	Comment          string
	IsPrimaryKey     bool
	IsUnique         bool
}

// MetadataSource enumerates one warehouse's structural metadata.
// Implementations own their session and must be closed when done.
// A source is used by a single goroutine; parallel walks open one source per database.
type MetadataSource interface {
	Info() SourceInfo

	// ListDatabases returns user databases, excluding system and sample databases.
	ListDatabases(ctx context.Context) ([]DatabaseInfo, error)

	// ListSchemas returns schemas of a database, excluding INFORMATION_SCHEMA.
	ListSchemas(ctx context.Context, database string) ([]SchemaInfo, error)

	// ListTables returns tables and views of a schema.
	ListTables(ctx context.Context, database, schema string) ([]TableInfo, error)

	// ListColumns returns columns of a table ordered by ordinal position.
	ListColumns(ctx context.Context, database, schema, table string) ([]ColumnInfo, error)

	// ResolveConstraints returns whatever key facts could be found.
	// It never fails; sub-query errors are logged and yield fewer constraints.
	ResolveConstraints(ctx context.Context, database, schema, table string) []models.Constraint

	// CollectColumnStats profiles columns on a best-effort basis, keyed by column name.
	CollectColumnStats(ctx context.Context, database, schema, table string, columns []ColumnInfo) map[string]*models.ColumnStats

	Close() error
}

// Annotator is implemented by sources that can read the optional catalog
// tables (glossary, tags, lineage, profile stats) kept inside a database.
type Annotator interface {
	CatalogAnnotations(ctx context.Context, database string) (*CatalogAnnotations, error)
}

// SnapshotWriter is implemented by sources that can mirror a finished
// snapshot back into the warehouse. Returns the number of records written.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, snapshot *models.Snapshot) (int, error)
}

// GlossaryTerm is one business glossary entry.
type GlossaryTerm struct {
	ID         string
	Name       string
	Definition string
}

// TagAssignment attaches a tag to an object by its composite identifier.
type TagAssignment struct {
	ObjectType string
	ObjectID   string
	TagName    string
	TagValue   string
}

// LineageEdge links two objects by composite identifier.
type LineageEdge struct {
	SourceID string
	TargetID string
}

// ProfileStat is the most recent profile of one column.
type ProfileStat struct {
	ColumnID      string
	RowCount      *int64
	NullCount     *int64
	DistinctCount *int64
	MinValue      *string
	MaxValue      *string
	ProfilingDate *time.Time
}

// CatalogAnnotations is everything read from the optional catalog tables.
// Missing tables leave the corresponding field empty.
type CatalogAnnotations struct {
	GlossaryTerms  []GlossaryTerm
	TagAssignments []TagAssignment
	LineageEdges   []LineageEdge
	ProfileStats   []ProfileStat
}

// IsEmpty reports whether no optional catalog table contributed anything.
func (a *CatalogAnnotations) IsEmpty() bool {
	return a == nil || (len(a.GlossaryTerms) == 0 && len(a.TagAssignments) == 0 &&
		len(a.LineageEdges) == 0 && len(a.ProfileStats) == 0)
}
