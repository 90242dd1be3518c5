package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/database"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// CatalogRepository persists the collected hierarchy. Upserts are keyed by
// composite identifier and individually committed.
type CatalogRepository interface {
	UpsertDatabase(ctx context.Context, db *models.Database) (*models.Database, bool, error)
	UpsertSchema(ctx context.Context, schema *models.Schema) (*models.Schema, bool, error)
	UpsertTable(ctx context.Context, table *models.Table) (*models.Table, bool, error)
	UpsertColumn(ctx context.Context, column *models.Column) (*models.Column, bool, error)

	GetDatabase(ctx context.Context, databaseID string) (*models.Database, error)
	GetSchema(ctx context.Context, schemaID string) (*models.Schema, error)
	GetTable(ctx context.Context, tableID string) (*models.Table, error)
	GetColumn(ctx context.Context, columnID string) (*models.Column, error)

	ListDatabases(ctx context.Context, page models.Page) ([]*models.Database, error)
	ListSchemas(ctx context.Context, databaseID string, page models.Page) ([]*models.Schema, error)
	ListTables(ctx context.Context, schemaID string, page models.Page) ([]*models.Table, error)
	ListColumns(ctx context.Context, tableID string, page models.Page) ([]*models.Column, error)

	DeleteDatabase(ctx context.Context, databaseID string) error
	DeleteSchema(ctx context.Context, schemaID string) error
	PruneStale(ctx context.Context, databaseID string, before time.Time) (int64, error)

	// Snapshot loads the complete hierarchy of the given databases.
	Snapshot(ctx context.Context, databaseIDs []string) (*models.Snapshot, error)

	ListDatabasesNeedingEnrichment(ctx context.Context, databaseID string, limit int, force bool) ([]*models.Database, error)
	ListTablesNeedingEnrichment(ctx context.Context, databaseID string, limit int, force bool) ([]*models.Table, error)
	ApplyDatabaseEnrichment(ctx context.Context, databaseID string, result *models.EnrichmentResult, force bool) (bool, error)
	ApplyTableEnrichment(ctx context.Context, tableID string, result *models.EnrichmentResult, force bool) (bool, error)
	// MarkEnrichmentAttempted records an attempt on each id whatever its
	// outcome. Listings serve never-attempted candidates first, then the
	// least recently attempted.
	MarkEnrichmentAttempted(ctx context.Context, entityType string, ids []string, at time.Time) error

	// Search returns table and column candidates matching q.Text, exact
	// name matches first, then name prefixes, then any other match.
	Search(ctx context.Context, q models.SearchQuery, limit int) ([]*models.SearchResult, error)
}

type catalogRepository struct {
	db *database.DB
}

// NewCatalogRepository creates a CatalogRepository on the catalog store.
func NewCatalogRepository(db *database.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

var _ CatalogRepository = (*catalogRepository)(nil)

// ============================================================================
// Upserts
// ============================================================================

// Existing non-empty values are kept when the incoming record leaves a
// field blank. Descriptions are enrichment output and are only filled, never
// replaced, by a walk. Tags merge with incoming keys winning.

const databaseColumns = `database_id, name, owner, database_type, region, version, environment,
	comment, description, tags, business_terms, source_created_at, source_altered_at,
	collected_at, created_at, updated_at, revision`

func (r *catalogRepository) UpsertDatabase(ctx context.Context, d *models.Database) (*models.Database, bool, error) {
	query := `
		INSERT INTO catalog_databases AS d (
			database_id, name, owner, database_type, region, version, environment,
			comment, description, tags, business_terms, source_created_at, source_altered_at, collected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (database_id) DO UPDATE SET
			name = EXCLUDED.name,
			owner = COALESCE(NULLIF(EXCLUDED.owner, ''), d.owner),
			database_type = COALESCE(NULLIF(EXCLUDED.database_type, ''), d.database_type),
			region = COALESCE(NULLIF(EXCLUDED.region, ''), d.region),
			version = COALESCE(NULLIF(EXCLUDED.version, ''), d.version),
			environment = COALESCE(NULLIF(EXCLUDED.environment, ''), d.environment),
			comment = COALESCE(NULLIF(EXCLUDED.comment, ''), d.comment),
			description = COALESCE(NULLIF(d.description, ''), EXCLUDED.description),
			tags = d.tags || EXCLUDED.tags,
			business_terms = CASE WHEN EXCLUDED.business_terms = '[]'::jsonb THEN d.business_terms ELSE EXCLUDED.business_terms END,
			source_created_at = COALESCE(EXCLUDED.source_created_at, d.source_created_at),
			source_altered_at = COALESCE(EXCLUDED.source_altered_at, d.source_altered_at),
			collected_at = EXCLUDED.collected_at
		RETURNING ` + databaseColumns + `, (xmax = 0) AS inserted`

	var created bool
	stored, err := scanDatabase(r.db.QueryRow(ctx, query,
		d.DatabaseID, d.Name, d.Owner, d.DatabaseType, d.Region, d.Version, d.Environment,
		d.Comment, d.Description, jsonMap(d.Tags), jsonList(d.BusinessTerms),
		d.SourceCreatedAt, d.SourceAlteredAt, d.CollectedAt,
	), &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert database %s: %w", d.DatabaseID, err)
	}
	return stored, created, nil
}

const schemaColumns = `schema_id, database_id, name, owner, comment, description, tags, business_terms,
	source_created_at, source_altered_at, collected_at, created_at, updated_at, revision`

func (r *catalogRepository) UpsertSchema(ctx context.Context, s *models.Schema) (*models.Schema, bool, error) {
	query := `
		INSERT INTO catalog_schemas AS s (
			schema_id, database_id, name, owner, comment, description, tags, business_terms,
			source_created_at, source_altered_at, collected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (schema_id) DO UPDATE SET
			name = EXCLUDED.name,
			owner = COALESCE(NULLIF(EXCLUDED.owner, ''), s.owner),
			comment = COALESCE(NULLIF(EXCLUDED.comment, ''), s.comment),
			description = COALESCE(NULLIF(s.description, ''), EXCLUDED.description),
			tags = s.tags || EXCLUDED.tags,
			business_terms = CASE WHEN EXCLUDED.business_terms = '[]'::jsonb THEN s.business_terms ELSE EXCLUDED.business_terms END,
			source_created_at = COALESCE(EXCLUDED.source_created_at, s.source_created_at),
			source_altered_at = COALESCE(EXCLUDED.source_altered_at, s.source_altered_at),
			collected_at = EXCLUDED.collected_at
		RETURNING ` + schemaColumns + `, (xmax = 0) AS inserted`

	var created bool
	stored, err := scanSchema(r.db.QueryRow(ctx, query,
		s.SchemaID, s.DatabaseID, s.Name, s.Owner, s.Comment, s.Description,
		jsonMap(s.Tags), jsonList(s.BusinessTerms), s.SourceCreatedAt, s.SourceAlteredAt, s.CollectedAt,
	), &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert schema %s: %w", s.SchemaID, err)
	}
	return stored, created, nil
}

const tableColumns = `table_id, schema_id, database_id, name, table_type, owner, row_count, byte_size,
	comment, description, sensitivity_level, data_domain, refresh_frequency, keywords, business_terms,
	tags, lineage_sources, lineage_targets, profile, source_created_at, source_altered_at,
	collected_at, created_at, updated_at, revision`

func (r *catalogRepository) UpsertTable(ctx context.Context, t *models.Table) (*models.Table, bool, error) {
	query := `
		INSERT INTO catalog_tables AS t (
			table_id, schema_id, database_id, name, table_type, owner, row_count, byte_size,
			comment, description, sensitivity_level, data_domain, refresh_frequency, keywords, business_terms,
			tags, lineage_sources, lineage_targets, profile, source_created_at, source_altered_at, collected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (table_id) DO UPDATE SET
			name = EXCLUDED.name,
			table_type = EXCLUDED.table_type,
			owner = COALESCE(NULLIF(EXCLUDED.owner, ''), t.owner),
			row_count = COALESCE(EXCLUDED.row_count, t.row_count),
			byte_size = COALESCE(EXCLUDED.byte_size, t.byte_size),
			comment = COALESCE(NULLIF(EXCLUDED.comment, ''), t.comment),
			description = COALESCE(NULLIF(t.description, ''), EXCLUDED.description),
			sensitivity_level = EXCLUDED.sensitivity_level,
			data_domain = COALESCE(NULLIF(t.data_domain, ''), EXCLUDED.data_domain),
			refresh_frequency = COALESCE(NULLIF(EXCLUDED.refresh_frequency, ''), t.refresh_frequency),
			keywords = CASE WHEN t.keywords = '[]'::jsonb THEN EXCLUDED.keywords ELSE t.keywords END,
			business_terms = CASE WHEN EXCLUDED.business_terms = '[]'::jsonb THEN t.business_terms ELSE EXCLUDED.business_terms END,
			tags = t.tags || EXCLUDED.tags,
			lineage_sources = EXCLUDED.lineage_sources,
			lineage_targets = EXCLUDED.lineage_targets,
			profile = COALESCE(EXCLUDED.profile, t.profile),
			source_created_at = COALESCE(EXCLUDED.source_created_at, t.source_created_at),
			source_altered_at = COALESCE(EXCLUDED.source_altered_at, t.source_altered_at),
			collected_at = EXCLUDED.collected_at
		RETURNING ` + tableColumns + `, (xmax = 0) AS inserted`

	var created bool
	stored, err := scanTable(r.db.QueryRow(ctx, query,
		t.TableID, t.SchemaID, t.DatabaseID, t.Name, t.TableType, t.Owner, t.RowCount, t.ByteSize,
		t.Comment, t.Description, t.SensitivityLevel, t.DataDomain, t.RefreshFrequency,
		jsonList(t.Keywords), jsonList(t.BusinessTerms), jsonMap(t.Tags),
		jsonList(t.LineageSources), jsonList(t.LineageTargets), t.Profile,
		t.SourceCreatedAt, t.SourceAlteredAt, t.CollectedAt,
	), &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert table %s: %w", t.TableID, err)
	}
	return stored, created, nil
}

const columnColumns = `column_id, table_id, name, ordinal_position, data_type, is_nullable, default_value,
	max_length, numeric_precision, numeric_scale, is_primary_key, is_foreign_key, is_unique,
	referenced_table, referenced_column, is_pii, sensitivity_level, tags, stats, comment, description,
	collected_at, created_at, updated_at, revision`

func (r *catalogRepository) UpsertColumn(ctx context.Context, c *models.Column) (*models.Column, bool, error) {
	query := `
		INSERT INTO catalog_columns AS c (
			column_id, table_id, name, ordinal_position, data_type, is_nullable, default_value,
			max_length, numeric_precision, numeric_scale, is_primary_key, is_foreign_key, is_unique,
			referenced_table, referenced_column, is_pii, sensitivity_level, tags, stats, comment, description,
			collected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (column_id) DO UPDATE SET
			name = EXCLUDED.name,
			ordinal_position = EXCLUDED.ordinal_position,
			data_type = EXCLUDED.data_type,
			is_nullable = EXCLUDED.is_nullable,
			default_value = EXCLUDED.default_value,
			max_length = EXCLUDED.max_length,
			numeric_precision = EXCLUDED.numeric_precision,
			numeric_scale = EXCLUDED.numeric_scale,
			is_primary_key = EXCLUDED.is_primary_key,
			is_foreign_key = EXCLUDED.is_foreign_key,
			is_unique = EXCLUDED.is_unique,
			referenced_table = EXCLUDED.referenced_table,
			referenced_column = EXCLUDED.referenced_column,
			is_pii = EXCLUDED.is_pii,
			sensitivity_level = EXCLUDED.sensitivity_level,
			tags = c.tags || EXCLUDED.tags,
			stats = COALESCE(EXCLUDED.stats, c.stats),
			comment = COALESCE(NULLIF(EXCLUDED.comment, ''), c.comment),
			description = COALESCE(NULLIF(c.description, ''), EXCLUDED.description),
			collected_at = EXCLUDED.collected_at
		RETURNING ` + columnColumns + `, (xmax = 0) AS inserted`

	var created bool
	stored, err := scanColumn(r.db.QueryRow(ctx, query,
		c.ColumnID, c.TableID, c.Name, c.OrdinalPosition, c.DataType, c.IsNullable, c.DefaultValue,
		c.MaxLength, c.NumericPrecision, c.NumericScale, c.IsPrimaryKey, c.IsForeignKey, c.IsUnique,
		c.ReferencedTable, c.ReferencedColumn, c.IsPII, c.SensitivityLevel, jsonMap(c.Tags), c.Stats,
		c.Comment, c.Description, c.CollectedAt,
	), &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert column %s: %w", c.ColumnID, err)
	}
	return stored, created, nil
}

// ============================================================================
// Reads
// ============================================================================

func (r *catalogRepository) GetDatabase(ctx context.Context, databaseID string) (*models.Database, error) {
	d, err := scanDatabase(r.db.QueryRow(ctx,
		`SELECT `+databaseColumns+` FROM catalog_databases WHERE database_id = $1`, databaseID))
	if err != nil {
		return nil, notFound(err, "database", databaseID)
	}
	return d, nil
}

func (r *catalogRepository) GetSchema(ctx context.Context, schemaID string) (*models.Schema, error) {
	s, err := scanSchema(r.db.QueryRow(ctx,
		`SELECT `+schemaColumns+` FROM catalog_schemas WHERE schema_id = $1`, schemaID))
	if err != nil {
		return nil, notFound(err, "schema", schemaID)
	}
	return s, nil
}

func (r *catalogRepository) GetTable(ctx context.Context, tableID string) (*models.Table, error) {
	t, err := scanTable(r.db.QueryRow(ctx,
		`SELECT `+tableColumns+` FROM catalog_tables WHERE table_id = $1`, tableID))
	if err != nil {
		return nil, notFound(err, "table", tableID)
	}
	return t, nil
}

func (r *catalogRepository) GetColumn(ctx context.Context, columnID string) (*models.Column, error) {
	c, err := scanColumn(r.db.QueryRow(ctx,
		`SELECT `+columnColumns+` FROM catalog_columns WHERE column_id = $1`, columnID))
	if err != nil {
		return nil, notFound(err, "column", columnID)
	}
	return c, nil
}

func (r *catalogRepository) ListDatabases(ctx context.Context, page models.Page) ([]*models.Database, error) {
	page = page.Normalize()
	rows, err := r.db.Query(ctx, `SELECT `+databaseColumns+` FROM catalog_databases
		ORDER BY name LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	return collect(rows, func(row pgx.Row) (*models.Database, error) { return scanDatabase(row) })
}

func (r *catalogRepository) ListSchemas(ctx context.Context, databaseID string, page models.Page) ([]*models.Schema, error) {
	page = page.Normalize()
	rows, err := r.db.Query(ctx, `SELECT `+schemaColumns+` FROM catalog_schemas
		WHERE database_id = $1 ORDER BY name LIMIT $2 OFFSET $3`, databaseID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	return collect(rows, func(row pgx.Row) (*models.Schema, error) { return scanSchema(row) })
}

func (r *catalogRepository) ListTables(ctx context.Context, schemaID string, page models.Page) ([]*models.Table, error) {
	page = page.Normalize()
	rows, err := r.db.Query(ctx, `SELECT `+tableColumns+` FROM catalog_tables
		WHERE schema_id = $1 ORDER BY name LIMIT $2 OFFSET $3`, schemaID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return collect(rows, func(row pgx.Row) (*models.Table, error) { return scanTable(row) })
}

func (r *catalogRepository) ListColumns(ctx context.Context, tableID string, page models.Page) ([]*models.Column, error) {
	page = page.Normalize()
	rows, err := r.db.Query(ctx, `SELECT `+columnColumns+` FROM catalog_columns
		WHERE table_id = $1 ORDER BY ordinal_position LIMIT $2 OFFSET $3`, tableID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	return collect(rows, func(row pgx.Row) (*models.Column, error) { return scanColumn(row) })
}

func (r *catalogRepository) Snapshot(ctx context.Context, databaseIDs []string) (*models.Snapshot, error) {
	snap := &models.Snapshot{GeneratedAt: time.Now().UTC()}

	rows, err := r.db.Query(ctx, `SELECT `+databaseColumns+` FROM catalog_databases
		WHERE database_id = ANY($1) ORDER BY name`, databaseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot databases: %w", err)
	}
	if snap.Databases, err = collect(rows, func(row pgx.Row) (*models.Database, error) { return scanDatabase(row) }); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `SELECT `+schemaColumns+` FROM catalog_schemas
		WHERE database_id = ANY($1) ORDER BY schema_id`, databaseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot schemas: %w", err)
	}
	if snap.Schemas, err = collect(rows, func(row pgx.Row) (*models.Schema, error) { return scanSchema(row) }); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `SELECT `+tableColumns+` FROM catalog_tables
		WHERE database_id = ANY($1) ORDER BY table_id`, databaseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot tables: %w", err)
	}
	if snap.Tables, err = collect(rows, func(row pgx.Row) (*models.Table, error) { return scanTable(row) }); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `SELECT `+prefixed("c", columnColumns)+` FROM catalog_columns c
		JOIN catalog_tables t ON t.table_id = c.table_id
		WHERE t.database_id = ANY($1) ORDER BY c.table_id, c.ordinal_position`, databaseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot columns: %w", err)
	}
	if snap.Columns, err = collect(rows, func(row pgx.Row) (*models.Column, error) { return scanColumn(row) }); err != nil {
		return nil, err
	}
	return snap, nil
}

// ============================================================================
// Deletes
// ============================================================================

func (r *catalogRepository) DeleteDatabase(ctx context.Context, databaseID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM catalog_databases WHERE database_id = $1`, databaseID)
	if err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *catalogRepository) DeleteSchema(ctx context.Context, schemaID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM catalog_schemas WHERE schema_id = $1`, schemaID)
	if err != nil {
		return fmt.Errorf("failed to delete schema: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// PruneStale deletes schemas, tables and columns of a database whose
// collected_at is older than before. The database row itself is kept.
// Returns the number of rows deleted directly; cascaded children are not counted.
func (r *catalogRepository) PruneStale(ctx context.Context, databaseID string, before time.Time) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	for _, stmt := range []string{
		`DELETE FROM catalog_columns c USING catalog_tables t
		 WHERE c.table_id = t.table_id AND t.database_id = $1 AND c.collected_at < $2`,
		`DELETE FROM catalog_tables WHERE database_id = $1 AND collected_at < $2`,
		`DELETE FROM catalog_schemas WHERE database_id = $1 AND collected_at < $2`,
	} {
		result, err := tx.Exec(ctx, stmt, databaseID, before)
		if err != nil {
			return 0, fmt.Errorf("failed to prune stale entities: %w", err)
		}
		total += result.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return total, nil
}

// ============================================================================
// Enrichment
// ============================================================================

func (r *catalogRepository) ListDatabasesNeedingEnrichment(ctx context.Context, databaseID string, limit int, force bool) ([]*models.Database, error) {
	rows, err := r.db.Query(ctx, `SELECT `+databaseColumns+`, a.attempted_at FROM catalog_databases
		LEFT JOIN catalog_enrichment_attempts a ON a.entity_type = 'database' AND a.entity_id = database_id
		WHERE ($1 = '' OR database_id = $1)
		  AND ($2 OR description = '' OR tags = '{}'::jsonb OR business_terms = '[]'::jsonb)
		ORDER BY a.attempted_at ASC NULLS FIRST, database_id LIMIT $3`, databaseID, force, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases needing enrichment: %w", err)
	}
	return collect(rows, func(row pgx.Row) (*models.Database, error) {
		var attempted *time.Time
		d, err := scanDatabase(row, &attempted)
		if err != nil {
			return nil, err
		}
		d.LastEnrichmentAttempt = attempted
		return d, nil
	})
}

func (r *catalogRepository) ListTablesNeedingEnrichment(ctx context.Context, databaseID string, limit int, force bool) ([]*models.Table, error) {
	rows, err := r.db.Query(ctx, `SELECT `+tableColumns+`, a.attempted_at FROM catalog_tables
		LEFT JOIN catalog_enrichment_attempts a ON a.entity_type = 'table' AND a.entity_id = table_id
		WHERE ($1 = '' OR database_id = $1)
		  AND ($2 OR description = '' OR tags = '{}'::jsonb OR keywords = '[]'::jsonb)
		ORDER BY a.attempted_at ASC NULLS FIRST, table_id LIMIT $3`, databaseID, force, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables needing enrichment: %w", err)
	}
	return collect(rows, func(row pgx.Row) (*models.Table, error) {
		var attempted *time.Time
		t, err := scanTable(row, &attempted)
		if err != nil {
			return nil, err
		}
		t.LastEnrichmentAttempt = attempted
		return t, nil
	})
}

func (r *catalogRepository) MarkEnrichmentAttempted(ctx context.Context, entityType string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `INSERT INTO catalog_enrichment_attempts (entity_type, entity_id, attempted_at)
		SELECT $1, id, $3 FROM unnest($2::text[]) AS id
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET attempted_at = EXCLUDED.attempted_at`,
		entityType, ids, at)
	if err != nil {
		return fmt.Errorf("failed to record enrichment attempts: %w", err)
	}
	return nil
}

func (r *catalogRepository) ApplyDatabaseEnrichment(ctx context.Context, databaseID string, result *models.EnrichmentResult, force bool) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin enrichment: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	d, err := scanDatabase(tx.QueryRow(ctx,
		`SELECT `+databaseColumns+` FROM catalog_databases WHERE database_id = $1 FOR UPDATE`, databaseID))
	if err != nil {
		return false, notFound(err, "database", databaseID)
	}

	target := EnrichmentTarget{Description: d.Description, Tags: d.Tags, BusinessTerms: d.BusinessTerms}
	if !MergeEnrichment(&target, result, force) {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE catalog_databases SET description = $2, tags = $3, business_terms = $4
		WHERE database_id = $1`, databaseID, target.Description, jsonMap(target.Tags), jsonList(target.BusinessTerms)); err != nil {
		return false, fmt.Errorf("failed to apply database enrichment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit database enrichment: %w", err)
	}
	return true, nil
}

func (r *catalogRepository) ApplyTableEnrichment(ctx context.Context, tableID string, result *models.EnrichmentResult, force bool) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin enrichment: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := scanTable(tx.QueryRow(ctx,
		`SELECT `+tableColumns+` FROM catalog_tables WHERE table_id = $1 FOR UPDATE`, tableID))
	if err != nil {
		return false, notFound(err, "table", tableID)
	}

	target := EnrichmentTarget{
		Description:   t.Description,
		Keywords:      t.Keywords,
		Tags:          t.Tags,
		BusinessTerms: t.BusinessTerms,
	}
	if !MergeEnrichment(&target, result, force) {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE catalog_tables SET description = $2, keywords = $3, tags = $4, business_terms = $5
		WHERE table_id = $1`, tableID, target.Description, jsonList(target.Keywords),
		jsonMap(target.Tags), jsonList(target.BusinessTerms)); err != nil {
		return false, fmt.Errorf("failed to apply table enrichment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit table enrichment: %w", err)
	}
	return true, nil
}

// EnrichmentTarget holds the enrichable fields of one entity.
type EnrichmentTarget struct {
	Description   string
	Keywords      []string
	Tags          map[string]string
	BusinessTerms []string
}

// MergeEnrichment fills empty fields of target from result and reports
// whether anything changed. Existing text is kept unless force is set;
// existing tag keys are kept unless force is set.
func MergeEnrichment(target *EnrichmentTarget, result *models.EnrichmentResult, force bool) bool {
	if result.IsEmpty() {
		return false
	}
	changed := false
	if result.Description != "" && (force || target.Description == "") && target.Description != result.Description {
		target.Description = result.Description
		changed = true
	}
	if len(result.Keywords) > 0 && (force || len(target.Keywords) == 0) {
		target.Keywords = append([]string(nil), result.Keywords...)
		changed = true
	}
	if len(result.BusinessGlossaryTerms) > 0 && (force || len(target.BusinessTerms) == 0) {
		target.BusinessTerms = append([]string(nil), result.BusinessGlossaryTerms...)
		changed = true
	}
	for k, v := range result.Tags {
		if target.Tags == nil {
			target.Tags = map[string]string{}
		}
		if existing, ok := target.Tags[k]; ok && (!force || existing == v) {
			continue
		}
		target.Tags[k] = v
		changed = true
	}
	return changed
}

// ============================================================================
// Search
// ============================================================================

func (r *catalogRepository) Search(ctx context.Context, q models.SearchQuery, limit int) ([]*models.SearchResult, error) {
	text := strings.TrimSpace(q.Text)
	pattern := "%" + escapeLike(text) + "%"
	prefix := escapeLike(text) + "%"

	// Best name matches survive the limit.
	query := `
		SELECT entity_type, entity_id, table_id, name, description, data_type, keywords FROM (
			SELECT 'table' AS entity_type, t.table_id AS entity_id, t.table_id, t.name,
			       COALESCE(NULLIF(t.description, ''), t.comment) AS description, '' AS data_type, t.keywords,
			       CASE WHEN lower(t.name) = lower($6) THEN 3 WHEN t.name ILIKE $7 THEN 2 WHEN t.name ILIKE $1 THEN 1 ELSE 0 END AS match_rank
			FROM catalog_tables t
			WHERE (t.name ILIKE $1 OR t.description ILIKE $1 OR t.comment ILIKE $1 OR t.keywords::text ILIKE $1)
			  AND ($2 = '' OR t.database_id = $2) AND ($3 = '' OR t.schema_id = $3) AND ($4 = '' OR t.table_id = $4)
			UNION ALL
			SELECT 'column', c.column_id, c.table_id, c.name,
			       COALESCE(NULLIF(c.description, ''), c.comment), c.data_type, '[]'::jsonb,
			       CASE WHEN lower(c.name) = lower($6) THEN 3 WHEN c.name ILIKE $7 THEN 2 WHEN c.name ILIKE $1 THEN 1 ELSE 0 END
			FROM catalog_columns c
			JOIN catalog_tables t ON t.table_id = c.table_id
			WHERE (c.name ILIKE $1 OR c.description ILIKE $1 OR c.comment ILIKE $1)
			  AND ($2 = '' OR t.database_id = $2) AND ($3 = '' OR t.schema_id = $3) AND ($4 = '' OR t.table_id = $4)
		) AS candidates
		ORDER BY match_rank DESC, entity_type = 'table' DESC, entity_id
		LIMIT $5`

	rows, err := r.db.Query(ctx, query, pattern, q.DatabaseID, q.SchemaID, q.TableID, limit, text, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}
	defer rows.Close()

	var results []*models.SearchResult
	for rows.Next() {
		res := &models.SearchResult{}
		var keywords []string
		if err := rows.Scan(&res.EntityType, &res.EntityID, &res.TableID, &res.Name,
			&res.Description, &res.DataType, &keywords); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		res.Keywords = keywords
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}
	return results, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ============================================================================
// Helpers
// ============================================================================

func scanDatabase(row pgx.Row, extra ...any) (*models.Database, error) {
	var d models.Database
	dest := []any{
		&d.DatabaseID, &d.Name, &d.Owner, &d.DatabaseType, &d.Region, &d.Version, &d.Environment,
		&d.Comment, &d.Description, &d.Tags, &d.BusinessTerms, &d.SourceCreatedAt, &d.SourceAlteredAt,
		&d.CollectedAt, &d.CreatedAt, &d.UpdatedAt, &d.Revision,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanSchema(row pgx.Row, extra ...any) (*models.Schema, error) {
	var s models.Schema
	dest := []any{
		&s.SchemaID, &s.DatabaseID, &s.Name, &s.Owner, &s.Comment, &s.Description, &s.Tags, &s.BusinessTerms,
		&s.SourceCreatedAt, &s.SourceAlteredAt, &s.CollectedAt, &s.CreatedAt, &s.UpdatedAt, &s.Revision,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanTable(row pgx.Row, extra ...any) (*models.Table, error) {
	var t models.Table
	dest := []any{
		&t.TableID, &t.SchemaID, &t.DatabaseID, &t.Name, &t.TableType, &t.Owner, &t.RowCount, &t.ByteSize,
		&t.Comment, &t.Description, &t.SensitivityLevel, &t.DataDomain, &t.RefreshFrequency, &t.Keywords,
		&t.BusinessTerms, &t.Tags, &t.LineageSources, &t.LineageTargets, &t.Profile,
		&t.SourceCreatedAt, &t.SourceAlteredAt, &t.CollectedAt, &t.CreatedAt, &t.UpdatedAt, &t.Revision,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanColumn(row pgx.Row, extra ...any) (*models.Column, error) {
	var c models.Column
	dest := []any{
		&c.ColumnID, &c.TableID, &c.Name, &c.OrdinalPosition, &c.DataType, &c.IsNullable, &c.DefaultValue,
		&c.MaxLength, &c.NumericPrecision, &c.NumericScale, &c.IsPrimaryKey, &c.IsForeignKey, &c.IsUnique,
		&c.ReferencedTable, &c.ReferencedColumn, &c.IsPII, &c.SensitivityLevel, &c.Tags, &c.Stats,
		&c.Comment, &c.Description, &c.CollectedAt, &c.CreatedAt, &c.UpdatedAt, &c.Revision,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &c, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

// prefixed qualifies a column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, apperrors.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s %s: %w", entity, id, err)
}

// jsonList and jsonMap keep NOT NULL jsonb columns from receiving SQL NULL;
// pgx encodes nil slices and maps as NULL.
func jsonList(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func jsonMap(v map[string]string) map[string]string {
	if v == nil {
		return map[string]string{}
	}
	return v
}
