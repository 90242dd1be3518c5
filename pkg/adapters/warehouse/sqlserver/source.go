package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/catalog"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// Source implements warehouse.MetadataSource over a SQL Server session.
// sys catalog views are read through three-part names so one connection
// can walk every database on the server.
type Source struct {
	q        warehouse.Querier
	closeFn  func() error
	host     string
	version  string
	database string
	logger   *zap.Logger

	knownTables map[string][]string
}

// NewSource wraps an already-open querier. closeFn may be nil.
func NewSource(q warehouse.Querier, closeFn func() error, host, version, database string, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		q:           q,
		closeFn:     closeFn,
		host:        host,
		version:     version,
		database:    database,
		logger:      logger.Named("sqlserver"),
		knownTables: map[string][]string{},
	}
}

// OpenSource connects and wraps the session as a metadata source.
func OpenSource(ctx context.Context, cfg *Config, logger *zap.Logger) (*Source, error) {
	s, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewSource(s, s.Close, cfg.Host, s.Version(), cfg.Database, logger), nil
}

func (s *Source) Info() warehouse.SourceInfo {
	return warehouse.SourceInfo{Engine: "SQL Server", Version: s.version}
}

func (s *Source) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// ListDatabases returns online user databases. IDs 1-4 are master, tempdb,
// model and msdb.
func (s *Source) ListDatabases(ctx context.Context) ([]warehouse.DatabaseInfo, error) {
	res, err := s.q.Query(ctx, `
	SELECT d.name AS name, SUSER_SNAME(d.owner_sid) AS owner, d.create_date AS created_on
	FROM sys.databases d
	WHERE d.database_id > 4 AND d.state_desc = 'ONLINE'
	ORDER BY d.name`)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}

	var dbs []warehouse.DatabaseInfo
	for _, row := range res.Rows {
		name := warehouse.String(row, "name")
		if name == "" {
			continue
		}
		if s.database != "" && !strings.EqualFold(name, s.database) {
			continue
		}
		dbs = append(dbs, warehouse.DatabaseInfo{
			Name:      name,
			Owner:     warehouse.String(row, "owner"),
			CreatedAt: warehouse.Time(row, "created_on"),
		})
	}
	return dbs, nil
}

// ListSchemas reads sys.schemas, falling back to INFORMATION_SCHEMA.SCHEMATA.
func (s *Source) ListSchemas(ctx context.Context, database string) ([]warehouse.SchemaInfo, error) {
	db := quoteName(database)
	res, err := s.q.Query(ctx, `
	SELECT sc.name AS name, p.name AS owner
	FROM `+db+`.sys.schemas sc
	LEFT JOIN `+db+`.sys.database_principals p ON sc.principal_id = p.principal_id
	ORDER BY sc.name`)
	if err != nil {
		s.logger.Debug("sys.schemas failed, trying INFORMATION_SCHEMA",
			zap.String("database", database), zap.Error(err))
		fb, fbErr := s.q.Query(ctx, `SELECT SCHEMA_NAME AS name, SCHEMA_OWNER AS owner
		FROM `+db+`.INFORMATION_SCHEMA.SCHEMATA ORDER BY SCHEMA_NAME`)
		if fbErr != nil {
			return nil, fmt.Errorf("list schemas: %w", errors.Join(err, fbErr))
		}
		res = fb
	}

	var schemas []warehouse.SchemaInfo
	for _, row := range res.Rows {
		name := warehouse.String(row, "name")
		if name == "" || isSystemSchema(name) {
			continue
		}
		schemas = append(schemas, warehouse.SchemaInfo{
			Name:  name,
			Owner: warehouse.String(row, "owner"),
		})
	}
	return schemas, nil
}

// ListTables returns user tables and views with partition row counts,
// reserved bytes and the MS_Description extended property as comment.
func (s *Source) ListTables(ctx context.Context, database, schema string) ([]warehouse.TableInfo, error) {
	db := quoteName(database)
	res, err := s.q.Query(ctx, `
	SELECT
	    o.name AS name,
	    CASE o.type WHEN 'V' THEN 'VIEW' ELSE 'BASE TABLE' END AS table_type,
	    (SELECT SUM(p.rows) FROM `+db+`.sys.partitions p
	        WHERE p.object_id = o.object_id AND p.index_id IN (0, 1)) AS row_count,
	    (SELECT SUM(a.total_pages) * 8192 FROM `+db+`.sys.partitions p
	        INNER JOIN `+db+`.sys.allocation_units a ON a.container_id = p.partition_id
	        WHERE p.object_id = o.object_id) AS bytes,
	    CAST(ep.value AS NVARCHAR(4000)) AS comment,
	    o.create_date AS created_on,
	    o.modify_date AS last_altered
	FROM `+db+`.sys.objects o
	INNER JOIN `+db+`.sys.schemas sc ON o.schema_id = sc.schema_id
	LEFT JOIN `+db+`.sys.extended_properties ep
	    ON ep.major_id = o.object_id AND ep.minor_id = 0 AND ep.class = 1 AND ep.name = 'MS_Description'
	WHERE o.type IN ('U', 'V') AND o.is_ms_shipped = 0 AND sc.name = @schema
	ORDER BY o.name`, sql.Named("schema", schema))
	if err != nil {
		s.logger.Debug("sys.objects failed, trying INFORMATION_SCHEMA",
			zap.String("schema", database+"."+schema), zap.Error(err))
		fb, fbErr := s.q.Query(ctx, `SELECT TABLE_NAME AS name, TABLE_TYPE AS table_type
		FROM `+db+`.INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @schema ORDER BY TABLE_NAME`,
			sql.Named("schema", schema))
		if fbErr != nil {
			return nil, fmt.Errorf("list tables: %w", errors.Join(err, fbErr))
		}
		res = fb
	}

	tables := make([]warehouse.TableInfo, 0, len(res.Rows))
	names := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		name := warehouse.String(row, "name")
		if name == "" {
			continue
		}
		tableType := warehouse.String(row, "table_type")
		if tableType == "" {
			tableType = "BASE TABLE"
		}
		tables = append(tables, warehouse.TableInfo{
			Name:      name,
			TableType: tableType,
			Comment:   warehouse.String(row, "comment"),
			RowCount:  warehouse.Int64(row, "row_count"),
			Bytes:     warehouse.Int64(row, "bytes"),
			CreatedAt: warehouse.Time(row, "created_on"),
			AlteredAt: warehouse.Time(row, "last_altered"),
		})
		names = append(names, name)
	}
	s.knownTables[catalog.SchemaID(database, schema)] = names
	return tables, nil
}

// ListColumns reads sys.columns for one object, falling back to
// INFORMATION_SCHEMA.COLUMNS.
func (s *Source) ListColumns(ctx context.Context, database, schema, table string) ([]warehouse.ColumnInfo, error) {
	db := quoteName(database)
	fqn := buildFullyQualifiedName(database, schema, table)
	res, err := s.q.Query(ctx, `
	SELECT
	    c.name AS name,
	    c.column_id AS position,
	    tp.name AS type,
	    c.is_nullable AS nullable,
	    dc.definition AS column_default,
	    CASE WHEN c.max_length = -1 THEN NULL
	         WHEN tp.name IN ('nchar', 'nvarchar') THEN c.max_length / 2
	         ELSE c.max_length END AS max_length,
	    c.precision AS numeric_precision,
	    c.scale AS numeric_scale,
	    CAST(ep.value AS NVARCHAR(4000)) AS comment
	FROM `+db+`.sys.columns c
	INNER JOIN `+db+`.sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN `+db+`.sys.default_constraints dc ON dc.object_id = c.default_object_id
	LEFT JOIN `+db+`.sys.extended_properties ep
	    ON ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.class = 1 AND ep.name = 'MS_Description'
	WHERE c.object_id = OBJECT_ID(@fqn)
	ORDER BY c.column_id`, sql.Named("fqn", fqn))
	if err != nil || len(res.Rows) == 0 {
		s.logger.Debug("sys.columns returned nothing, trying INFORMATION_SCHEMA",
			zap.String("table", fqn), zap.Error(err))
		fb, fbErr := s.q.Query(ctx, `
		SELECT COLUMN_NAME AS name, ORDINAL_POSITION AS position, DATA_TYPE AS type,
		    IS_NULLABLE AS nullable, COLUMN_DEFAULT AS column_default,
		    CHARACTER_MAXIMUM_LENGTH AS max_length, NUMERIC_PRECISION AS numeric_precision,
		    NUMERIC_SCALE AS numeric_scale
		FROM `+db+`.INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @schema AND TABLE_NAME = @table
		ORDER BY ORDINAL_POSITION`, sql.Named("schema", schema), sql.Named("table", table))
		if fbErr != nil {
			if err == nil {
				return nil, fmt.Errorf("list columns: %w", fbErr)
			}
			return nil, fmt.Errorf("list columns: %w", errors.Join(err, fbErr))
		}
		res = fb
	}

	cols := make([]warehouse.ColumnInfo, 0, len(res.Rows))
	for i, row := range res.Rows {
		pos := warehouse.Int(row, "position")
		if pos == 0 {
			pos = i + 1
		}
		cols = append(cols, warehouse.ColumnInfo{
			Name:             warehouse.String(row, "name"),
			OrdinalPosition:  pos,
			DataType:         mapSQLServerType(warehouse.String(row, "type")),
			IsNullable:       warehouse.Bool(row, "nullable"),
			Default:          warehouse.StringPtr(row, "column_default"),
			MaxLength:        warehouse.Int64(row, "max_length"),
			NumericPrecision: warehouse.Int64(row, "numeric_precision"),
			NumericScale:     warehouse.Int64(row, "numeric_scale"),
			Comment:          warehouse.String(row, "comment"),
		})
	}
	return cols, nil
}

// ResolveConstraints reads declared keys from sys.indexes and
// sys.foreign_keys. When none are declared, identity columns stand in for
// primary keys and the remaining keys are guessed from column names.
func (s *Source) ResolveConstraints(ctx context.Context, database, schema, table string) []models.Constraint {
	db := quoteName(database)
	fqn := buildFullyQualifiedName(database, schema, table)
	log := s.logger.With(zap.String("table", catalog.TableID(database, schema, table)))

	var result []models.Constraint
	keys, err := s.q.Query(ctx, `
	SELECT i.name AS constraint_name, col.name AS column_name,
	    CASE WHEN i.is_primary_key = 1 THEN 'PRIMARY KEY' ELSE 'UNIQUE' END AS constraint_type
	FROM `+db+`.sys.indexes i
	INNER JOIN `+db+`.sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	INNER JOIN `+db+`.sys.columns col ON col.object_id = ic.object_id AND col.column_id = ic.column_id
	WHERE i.object_id = OBJECT_ID(@fqn) AND (i.is_primary_key = 1 OR i.is_unique_constraint = 1)
	ORDER BY i.index_id, ic.key_ordinal`, sql.Named("fqn", fqn))
	if err != nil {
		log.Debug("Declared keys unavailable", zap.Error(err))
	} else {
		for _, row := range keys.Rows {
			result = append(result, models.Constraint{
				Type:       warehouse.String(row, "constraint_type"),
				Name:       warehouse.String(row, "constraint_name"),
				ColumnName: warehouse.String(row, "column_name"),
				Source:     models.ConstraintSourceMetadata,
			})
		}
	}

	fks, err := s.q.Query(ctx, `
	SELECT
	    fk.name AS constraint_name,
	    pc.name AS column_name,
	    rt.name AS referenced_table,
	    rc.name AS referenced_column
	FROM `+db+`.sys.foreign_keys fk
	INNER JOIN `+db+`.sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	INNER JOIN `+db+`.sys.tables rt ON fk.referenced_object_id = rt.object_id
	INNER JOIN `+db+`.sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
	INNER JOIN `+db+`.sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
	WHERE fk.parent_object_id = OBJECT_ID(@fqn)
	ORDER BY fk.name, fkc.constraint_column_id`, sql.Named("fqn", fqn))
	if err != nil {
		log.Debug("Declared foreign keys unavailable", zap.Error(err))
	} else {
		for _, row := range fks.Rows {
			result = append(result, models.Constraint{
				Type:             models.ConstraintForeignKey,
				Name:             warehouse.String(row, "constraint_name"),
				ColumnName:       warehouse.String(row, "column_name"),
				ReferencedTable:  warehouse.String(row, "referenced_table"),
				ReferencedColumn: warehouse.String(row, "referenced_column"),
				Source:           models.ConstraintSourceMetadata,
			})
		}
	}
	if len(result) > 0 {
		return result
	}

	cols, err := s.q.Query(ctx, `
	SELECT c.name AS name, c.is_identity AS is_identity
	FROM `+db+`.sys.columns c
	WHERE c.object_id = OBJECT_ID(@fqn)
	ORDER BY c.column_id`, sql.Named("fqn", fqn))
	if err != nil {
		log.Debug("Column list unavailable for key inference", zap.Error(err))
		return nil
	}

	names := make([]string, 0, len(cols.Rows))
	hasIdentity := false
	for _, row := range cols.Rows {
		name := warehouse.String(row, "name")
		names = append(names, name)
		if warehouse.Bool(row, "is_identity") && !hasIdentity {
			hasIdentity = true
			result = append(result, models.Constraint{
				Type:       models.ConstraintPrimaryKey,
				ColumnName: name,
				Source:     models.ConstraintSourceIdentity,
			})
		}
	}
	for _, c := range catalog.NamingConstraints(table, names, s.knownTables[catalog.SchemaID(database, schema)]) {
		if hasIdentity && c.Type == models.ConstraintPrimaryKey {
			continue
		}
		result = append(result, c)
	}
	return result
}

// CollectColumnStats profiles each column with a NOLOCK aggregate. Columns
// whose full query fails are retried without MIN/MAX; columns that still
// fail are omitted.
func (s *Source) CollectColumnStats(ctx context.Context, database, schema, table string, columns []warehouse.ColumnInfo) map[string]*models.ColumnStats {
	stats := make(map[string]*models.ColumnStats, len(columns))
	fqn := buildFullyQualifiedName(database, schema, table)
	now := time.Now().UTC()

	for _, c := range columns {
		col := quoteName(c.Name)
		simplified := fmt.Sprintf(`
		SELECT COUNT(*) - COUNT(%s) AS null_count, COUNT(DISTINCT %s) AS distinct_count
		FROM %s WITH (NOLOCK)`, col, col, fqn)

		var (
			res *warehouse.QueryResult
			err error
		)
		if supportsMinMax(c.DataType) {
			res, err = s.q.Query(ctx, fmt.Sprintf(`
			SELECT
			    COUNT(*) - COUNT(%s) AS null_count,
			    COUNT(DISTINCT %s) AS distinct_count,
			    CAST(MIN(%s) AS NVARCHAR(256)) AS min_value,
			    CAST(MAX(%s) AS NVARCHAR(256)) AS max_value
			FROM %s WITH (NOLOCK)`, col, col, col, col, fqn))
			if err != nil {
				s.logger.Debug("Column stats failed, retrying simplified",
					zap.String("table", fqn), zap.String("column", c.Name), zap.Error(err))
				res, err = s.q.Query(ctx, simplified)
			}
		} else {
			res, err = s.q.Query(ctx, simplified)
		}
		if err != nil || len(res.Rows) != 1 {
			s.logger.Warn("Failed to analyze column stats",
				zap.String("table", fqn), zap.String("column", c.Name), zap.Error(err))
			continue
		}
		row := res.Rows[0]
		stats[c.Name] = &models.ColumnStats{
			NullCount:     warehouse.Int64(row, "null_count"),
			DistinctCount: warehouse.Int64(row, "distinct_count"),
			MinValue:      warehouse.StringPtr(row, "min_value"),
			MaxValue:      warehouse.StringPtr(row, "max_value"),
			ProfiledAt:    &now,
		}
	}
	return stats
}

var _ warehouse.MetadataSource = (*Source)(nil)
