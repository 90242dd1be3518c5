package snowflake

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/catalog"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	pkgsql "github.com/Sumeet513/snowflake-data-catalog/pkg/sql"
)

// Databases that ship with every account and are never collected.
var systemDatabases = map[string]bool{
	"SNOWFLAKE":             true,
	"SNOWFLAKE_SAMPLE_DATA": true,
	MirrorDatabase:          true,
}

var refreshPattern = regexp.MustCompile(`(?i)(?:refresh|frequency)[:\s]+(\w+)`)

// Execer runs non-projecting statements.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) (*warehouse.QueryResult, error)
}

// SourceOptions scope a Source.
type SourceOptions struct {
	Account  string
	Version  string
	Database string // only this database when set
	Schema   string // only this schema when set
}

// Source implements warehouse.MetadataSource over a Snowflake session.
type Source struct {
	q       warehouse.Querier
	closeFn func() error
	opts    SourceOptions
	logger  *zap.Logger

	// Table names per schema from the last ListTables, used to resolve
	// foreign keys guessed from column names.
	knownTables map[string][]string
}

// NewSource wraps an already-open querier. closeFn may be nil.
func NewSource(q warehouse.Querier, closeFn func() error, opts SourceOptions, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		q:           q,
		closeFn:     closeFn,
		opts:        opts,
		logger:      logger.Named("snowflake"),
		knownTables: map[string][]string{},
	}
}

// OpenSource opens a session and wraps it as a metadata source.
func OpenSource(ctx context.Context, cfg *Config, logger *zap.Logger) (*Source, error) {
	s, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewSource(s, s.Close, SourceOptions{
		Account:  cfg.Account,
		Version:  s.Version(),
		Database: cfg.Database,
		Schema:   cfg.Schema,
	}, logger), nil
}

func (s *Source) Info() warehouse.SourceInfo {
	return warehouse.SourceInfo{Engine: "Snowflake", Version: s.opts.Version}
}

func (s *Source) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// ListDatabases runs SHOW DATABASES and falls back to the account-level
// INFORMATION_SCHEMA view when SHOW fails or returns nothing.
func (s *Source) ListDatabases(ctx context.Context) ([]warehouse.DatabaseInfo, error) {
	res, err := s.q.Query(ctx, "SHOW DATABASES")
	if err != nil || len(res.Rows) == 0 {
		s.logger.Warn("SHOW DATABASES returned nothing, trying INFORMATION_SCHEMA", zap.Error(err))
		fb, fbErr := s.q.Query(ctx, `SELECT DATABASE_NAME AS "name", DATABASE_OWNER AS "owner", COMMENT AS "comment",
			CREATED AS "created_on", LAST_ALTERED AS "last_altered"
			FROM SNOWFLAKE.INFORMATION_SCHEMA.DATABASES ORDER BY DATABASE_NAME`)
		if fbErr != nil {
			if err == nil {
				return nil, fmt.Errorf("list databases: %w", fbErr)
			}
			return nil, fmt.Errorf("list databases: %w", errors.Join(err, fbErr))
		}
		res = fb
	}

	region := RegionOf(s.opts.Account)
	var dbs []warehouse.DatabaseInfo
	for _, row := range res.Rows {
		name := warehouse.String(row, "name")
		if name == "" || systemDatabases[strings.ToUpper(name)] {
			continue
		}
		if s.opts.Database != "" && !strings.EqualFold(name, s.opts.Database) {
			continue
		}
		dbs = append(dbs, warehouse.DatabaseInfo{
			Name:      name,
			Owner:     warehouse.String(row, "owner"),
			Region:    region,
			Comment:   warehouse.String(row, "comment"),
			CreatedAt: warehouse.Time(row, "created_on"),
			AlteredAt: warehouse.Time(row, "last_altered"),
		})
	}
	return dbs, nil
}

// ListSchemas runs SHOW SCHEMAS with an INFORMATION_SCHEMA.SCHEMATA fallback.
func (s *Source) ListSchemas(ctx context.Context, database string) ([]warehouse.SchemaInfo, error) {
	res, err := s.q.Query(ctx, "SHOW SCHEMAS IN DATABASE "+pkgsql.QuoteIdent(database))
	if err != nil || len(res.Rows) == 0 {
		s.logger.Debug("SHOW SCHEMAS returned nothing, trying INFORMATION_SCHEMA",
			zap.String("database", database), zap.Error(err))
		fb, fbErr := s.q.Query(ctx, `SELECT SCHEMA_NAME AS "name", SCHEMA_OWNER AS "owner", COMMENT AS "comment",
			CREATED AS "created_on", LAST_ALTERED AS "last_altered"
			FROM `+pkgsql.QuoteIdent(database)+`.INFORMATION_SCHEMA.SCHEMATA ORDER BY SCHEMA_NAME`)
		if fbErr != nil {
			if err == nil {
				return nil, fmt.Errorf("list schemas: %w", fbErr)
			}
			return nil, fmt.Errorf("list schemas: %w", errors.Join(err, fbErr))
		}
		res = fb
	}

	var schemas []warehouse.SchemaInfo
	for _, row := range res.Rows {
		name := warehouse.String(row, "name")
		if name == "" || strings.EqualFold(name, "INFORMATION_SCHEMA") {
			continue
		}
		if s.opts.Schema != "" && !strings.EqualFold(name, s.opts.Schema) {
			continue
		}
		schemas = append(schemas, warehouse.SchemaInfo{
			Name:      name,
			Owner:     warehouse.String(row, "owner"),
			Comment:   warehouse.String(row, "comment"),
			CreatedAt: warehouse.Time(row, "created_on"),
			AlteredAt: warehouse.Time(row, "last_altered"),
		})
	}
	return schemas, nil
}

// ListTables runs SHOW TABLES and SHOW VIEWS. When SHOW TABLES fails or is
// empty the INFORMATION_SCHEMA.TABLES view is used instead, which covers
// views too. Row counts and bytes come from cached statistics.
func (s *Source) ListTables(ctx context.Context, database, schema string) ([]warehouse.TableInfo, error) {
	in := pkgsql.QualifiedName(database, schema)

	var tables []warehouse.TableInfo
	res, err := s.q.Query(ctx, "SHOW TABLES IN SCHEMA "+in)
	if err == nil && len(res.Rows) > 0 {
		for _, row := range res.Rows {
			tableType := "BASE TABLE"
			if kind := strings.ToUpper(warehouse.String(row, "kind")); kind != "" && kind != "TABLE" {
				tableType = kind + " TABLE"
			}
			tables = append(tables, tableFromRow(row, tableType))
		}
		if views, vErr := s.q.Query(ctx, "SHOW VIEWS IN SCHEMA "+in); vErr != nil {
			s.logger.Debug("SHOW VIEWS failed", zap.String("schema", in), zap.Error(vErr))
		} else {
			for _, row := range views.Rows {
				tables = append(tables, tableFromRow(row, "VIEW"))
			}
		}
	} else {
		s.logger.Debug("SHOW TABLES returned nothing, trying INFORMATION_SCHEMA",
			zap.String("schema", in), zap.Error(err))
		fb, fbErr := s.q.Query(ctx, `SELECT TABLE_NAME AS "name", TABLE_TYPE AS "table_type", TABLE_OWNER AS "owner",
			COMMENT AS "comment", ROW_COUNT AS "rows", BYTES AS "bytes",
			CREATED AS "created_on", LAST_ALTERED AS "last_altered"
			FROM `+pkgsql.QuoteIdent(database)+`.INFORMATION_SCHEMA.TABLES
			WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME`, schema)
		if fbErr != nil {
			if err == nil {
				return nil, fmt.Errorf("list tables: %w", fbErr)
			}
			return nil, fmt.Errorf("list tables: %w", errors.Join(err, fbErr))
		}
		for _, row := range fb.Rows {
			tables = append(tables, tableFromRow(row, warehouse.String(row, "table_type")))
		}
	}

	s.applyTagReferences(ctx, database, schema, tables)

	names := make([]string, 0, len(tables))
	for i := range tables {
		names = append(names, tables[i].Name)
	}
	s.knownTables[catalog.SchemaID(database, schema)] = names
	return tables, nil
}

// applyTagReferences attaches governance tags to tables and marks tables
// carrying a PII or confidentiality tag as highly sensitive. One query
// per schema; failures (usually missing ACCOUNT_USAGE privileges) are logged.
func (s *Source) applyTagReferences(ctx context.Context, database, schema string, tables []warehouse.TableInfo) {
	if len(tables) == 0 {
		return
	}
	res, err := s.q.Query(ctx, `SELECT OBJECT_NAME AS "object_name", TAG_NAME AS "tag_name", TAG_VALUE AS "tag_value"
		FROM SNOWFLAKE.ACCOUNT_USAGE.TAG_REFERENCES
		WHERE OBJECT_DATABASE = ? AND OBJECT_SCHEMA = ? AND DOMAIN = 'TABLE' AND OBJECT_DELETED IS NULL`,
		database, schema)
	if err != nil {
		s.logger.Debug("Tag references unavailable",
			zap.String("schema", catalog.SchemaID(database, schema)), zap.Error(err))
		return
	}

	byName := make(map[string]*warehouse.TableInfo, len(tables))
	for i := range tables {
		byName[strings.ToUpper(tables[i].Name)] = &tables[i]
	}
	for _, row := range res.Rows {
		t, ok := byName[strings.ToUpper(warehouse.String(row, "object_name"))]
		if !ok {
			continue
		}
		name, value := warehouse.String(row, "tag_name"), warehouse.String(row, "tag_value")
		if t.Tags == nil {
			t.Tags = map[string]string{}
		}
		t.Tags[name] = value
		if catalog.IsSensitiveTag(name, value) {
			t.SensitivityLevel = models.SensitivityHigh
		}
	}
}

func tableFromRow(row map[string]any, tableType string) warehouse.TableInfo {
	comment := warehouse.String(row, "comment")
	t := warehouse.TableInfo{
		Name:      warehouse.String(row, "name"),
		TableType: tableType,
		Owner:     warehouse.String(row, "owner"),
		Comment:   comment,
		RowCount:  warehouse.Int64(row, "rows"),
		Bytes:     warehouse.Int64(row, "bytes"),
		CreatedAt: warehouse.Time(row, "created_on"),
		AlteredAt: warehouse.Time(row, "last_altered"),
	}
	if m := refreshPattern.FindStringSubmatch(comment); m != nil {
		t.RefreshFrequency = strings.ToLower(m[1])
	}
	return t
}

// ListColumns reads INFORMATION_SCHEMA.COLUMNS in one query and falls back
// to DESCRIBE TABLE when the view fails or returns nothing.
func (s *Source) ListColumns(ctx context.Context, database, schema, table string) ([]warehouse.ColumnInfo, error) {
	res, err := s.q.Query(ctx, `SELECT COLUMN_NAME AS "name", ORDINAL_POSITION AS "position", DATA_TYPE AS "type",
		IS_NULLABLE AS "nullable", COLUMN_DEFAULT AS "default", CHARACTER_MAXIMUM_LENGTH AS "max_length",
		NUMERIC_PRECISION AS "precision", NUMERIC_SCALE AS "scale", COMMENT AS "comment"
		FROM `+pkgsql.QuoteIdent(database)+`.INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, schema, table)
	if err == nil && len(res.Rows) > 0 {
		cols := make([]warehouse.ColumnInfo, 0, len(res.Rows))
		for _, row := range res.Rows {
			cols = append(cols, warehouse.ColumnInfo{
				Name:             warehouse.String(row, "name"),
				OrdinalPosition:  warehouse.Int(row, "position"),
				DataType:         warehouse.String(row, "type"),
				IsNullable:       warehouse.Bool(row, "nullable"),
				Default:          warehouse.StringPtr(row, "default"),
				MaxLength:        warehouse.Int64(row, "max_length"),
				NumericPrecision: warehouse.Int64(row, "precision"),
				NumericScale:     warehouse.Int64(row, "scale"),
				Comment:          warehouse.String(row, "comment"),
			})
		}
		return cols, nil
	}

	fqn := pkgsql.QualifiedName(database, schema, table)
	s.logger.Debug("INFORMATION_SCHEMA.COLUMNS returned nothing, trying DESCRIBE TABLE",
		zap.String("table", fqn), zap.Error(err))
	desc, dErr := s.q.Query(ctx, "DESCRIBE TABLE "+fqn)
	if dErr != nil {
		if err == nil {
			return nil, fmt.Errorf("list columns: %w", dErr)
		}
		return nil, fmt.Errorf("list columns: %w", errors.Join(err, dErr))
	}

	cols := make([]warehouse.ColumnInfo, 0, len(desc.Rows))
	for i, row := range desc.Rows {
		cols = append(cols, warehouse.ColumnInfo{
			Name:            warehouse.String(row, "name"),
			OrdinalPosition: i + 1,
			DataType:        warehouse.String(row, "type"),
			IsNullable:      warehouse.Bool(row, "null?"),
			Default:         warehouse.StringPtr(row, "default"),
			Comment:         warehouse.String(row, "comment"),
			IsPrimaryKey:    warehouse.Bool(row, "primary key"),
			IsUnique:        warehouse.Bool(row, "unique key"),
		})
	}
	return cols, nil
}

var _ warehouse.MetadataSource = (*Source)(nil)
