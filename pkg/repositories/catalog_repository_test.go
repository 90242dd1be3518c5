//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/testhelpers"
)

// setupCatalogTest returns a repository on an emptied shared store.
func setupCatalogTest(t *testing.T) CatalogRepository {
	catalogDB := testhelpers.GetCatalogDB(t)
	catalogDB.Truncate(t)
	return NewCatalogRepository(catalogDB.DB)
}

// seedHierarchy stores SALES > SALES.PUBLIC > SALES.PUBLIC.ORDERS with two columns.
func seedHierarchy(t *testing.T, repo CatalogRepository, collectedAt time.Time) {
	t.Helper()
	ctx := context.Background()

	_, _, err := repo.UpsertDatabase(ctx, &models.Database{
		DatabaseID: "SALES", Name: "SALES", Owner: "SYSADMIN", DatabaseType: "Snowflake",
		Environment: "production", CollectedAt: collectedAt,
	})
	require.NoError(t, err)
	_, _, err = repo.UpsertSchema(ctx, &models.Schema{
		SchemaID: "SALES.PUBLIC", DatabaseID: "SALES", Name: "PUBLIC", CollectedAt: collectedAt,
	})
	require.NoError(t, err)
	rows := int64(42)
	_, _, err = repo.UpsertTable(ctx, &models.Table{
		TableID: "SALES.PUBLIC.ORDERS", SchemaID: "SALES.PUBLIC", DatabaseID: "SALES", Name: "ORDERS",
		TableType: "BASE TABLE", RowCount: &rows, Comment: "Customer orders",
		SensitivityLevel: models.SensitivityMedium, CollectedAt: collectedAt,
	})
	require.NoError(t, err)
	for i, name := range []string{"ID", "CUSTOMER_EMAIL"} {
		_, _, err = repo.UpsertColumn(ctx, &models.Column{
			ColumnID: "SALES.PUBLIC.ORDERS." + name, TableID: "SALES.PUBLIC.ORDERS", Name: name,
			OrdinalPosition: i + 1, DataType: "VARCHAR", IsPrimaryKey: i == 0, IsPII: i == 1,
			SensitivityLevel: models.SensitivityNone, CollectedAt: collectedAt,
		})
		require.NoError(t, err)
	}
}

func TestCatalogRepository_UpsertIsIdempotent(t *testing.T) {
	repo := setupCatalogTest(t)
	ctx := context.Background()
	collectedAt := time.Now().UTC().Truncate(time.Microsecond)

	db := &models.Database{DatabaseID: "SALES", Name: "SALES", Owner: "SYSADMIN", CollectedAt: collectedAt}

	first, created, err := repo.UpsertDatabase(ctx, db)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), first.Revision)

	second, created, err := repo.UpsertDatabase(ctx, db)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Revision, second.Revision)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Equal(t, first.Owner, second.Owner)
}

func TestCatalogRepository_UpsertPreservesMissingFields(t *testing.T) {
	repo := setupCatalogTest(t)
	ctx := context.Background()
	collectedAt := time.Now().UTC()
	seedHierarchy(t, repo, collectedAt)

	_, err := repo.ApplyTableEnrichment(ctx, "SALES.PUBLIC.ORDERS", &models.EnrichmentResult{
		Description: "Orders placed through the web shop",
	}, false)
	require.NoError(t, err)

	later := collectedAt.Add(time.Hour)
	stored, created, err := repo.UpsertTable(ctx, &models.Table{
		TableID: "SALES.PUBLIC.ORDERS", SchemaID: "SALES.PUBLIC", DatabaseID: "SALES", Name: "ORDERS",
		TableType: "BASE TABLE", SensitivityLevel: models.SensitivityMedium, CollectedAt: later,
	})
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, stored.RowCount)
	assert.Equal(t, int64(42), *stored.RowCount)
	assert.Equal(t, "Customer orders", stored.Comment)
	assert.Equal(t, "Orders placed through the web shop", stored.Description)
	assert.WithinDuration(t, later, stored.CollectedAt, time.Millisecond)
	assert.Greater(t, stored.Revision, int64(1))
}

func TestCatalogRepository_ListAndGet(t *testing.T) {
	repo := setupCatalogTest(t)
	ctx := context.Background()
	seedHierarchy(t, repo, time.Now().UTC())

	dbs, err := repo.ListDatabases(ctx, models.Page{})
	require.NoError(t, err)
	require.Len(t, dbs, 1)

	schemas, err := repo.ListSchemas(ctx, "SALES", models.Page{})
	require.NoError(t, err)
	require.Len(t, schemas, 1)

	tables, err := repo.ListTables(ctx, "SALES.PUBLIC", models.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, map[string]string{}, tables[0].Tags)

	cols, err := repo.ListColumns(ctx, "SALES.PUBLIC.ORDERS", models.Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "CUSTOMER_EMAIL", cols[0].Name)

	col, err := repo.GetColumn(ctx, "SALES.PUBLIC.ORDERS.ID")
	require.NoError(t, err)
	assert.True(t, col.IsPrimaryKey)

	_, err = repo.GetTable(ctx, "SALES.PUBLIC.MISSING")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCatalogRepository_DeleteDatabaseCascades(t *testing.T) {
	repo := setupCatalogTest(t)
	ctx := context.Background()
	seedHierarchy(t, repo, time.Now().UTC())

	require.NoError(t, repo.DeleteDatabase(ctx, "SALES"))

	_, err := repo.GetColumn(ctx, "SALES.PUBLIC.ORDERS.ID")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = repo.GetSchema(ctx, "SALES.PUBLIC")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, repo.DeleteDatabase(ctx, "SALES"), apperrors.ErrNotFound)
}

func TestCatalogRepository_PruneStale(t *testing.T) {
	repo := setupCatalogTest(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-48 * time.Hour)
	seedHierarchy(t, repo, old)

	now := time.Now().UTC()
	_, _, err := repo.UpsertDatabase(ctx, &models.Database{DatabaseID: "SALES", Name: "SALES", CollectedAt: now})
	require.NoError(t, err)
	_, _, err = repo.UpsertSchema(ctx, &models.Schema{SchemaID: "SALES.PUBLIC", DatabaseID: "SALES", Name: "PUBLIC", CollectedAt: now})
	require.NoError(t, err)

	deleted, err := repo.PruneStale(ctx, "SALES", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted) // two columns and one table

	_, err = repo.GetSchema(ctx, "SALES.PUBLIC")
	assert.NoError(t, err)
	_, err = repo.GetTable(ctx, "SALES.PUBLIC.ORDERS")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCatalogRepository_Enrichment(t *testing.T) {
	repo := setupCatalogTest(t)
	ctx := context.Background()
	seedHierarchy(t, repo, time.Now().UTC())

	pending, err := repo.ListTablesNeedingEnrichment(ctx, "SALES", 10, false)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	applied, err := repo.ApplyTableEnrichment(ctx, "SALES.PUBLIC.ORDERS", &models.EnrichmentResult{
		Description: "Orders", Keywords: []string{"orders"}, Tags: map[string]string{"domain": "sales"},
	}, false)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.ApplyTableEnrichment(ctx, "SALES.PUBLIC.ORDERS", &models.EnrichmentResult{Description: "Other"}, false)
	require.NoError(t, err)
	assert.False(t, applied)

	pending, err = repo.ListTablesNeedingEnrichment(ctx, "SALES", 10, false)
	require.NoError(t, err)
	assert.Empty(t, pending)

	applied, err = repo.ApplyDatabaseEnrichment(ctx, "SALES", &models.EnrichmentResult{Description: "Sales warehouse"}, false)
	require.NoError(t, err)
	assert.True(t, applied)
	db, err := repo.GetDatabase(ctx, "SALES")
	require.NoError(t, err)
	assert.Equal(t, "Sales warehouse", db.Description)
}

func TestCatalogRepository_EnrichmentServesLeastRecentlyAttempted(t *testing.T) {
	repo := setupCatalogTest(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedHierarchy(t, repo, now)
	for _, name := range []string{"REFUNDS", "RETURNS"} {
		_, _, err := repo.UpsertTable(ctx, &models.Table{
			TableID: "SALES.PUBLIC." + name, SchemaID: "SALES.PUBLIC", DatabaseID: "SALES", Name: name,
			TableType: "BASE TABLE", CollectedAt: now,
		})
		require.NoError(t, err)
	}

	require.NoError(t, repo.MarkEnrichmentAttempted(ctx, models.EntityTable, []string{"SALES.PUBLIC.ORDERS"}, now))

	pending, err := repo.ListTablesNeedingEnrichment(ctx, "SALES", 2, false)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "SALES.PUBLIC.REFUNDS", pending[0].TableID)
	assert.Equal(t, "SALES.PUBLIC.RETURNS", pending[1].TableID)
	assert.Nil(t, pending[0].LastEnrichmentAttempt)

	require.NoError(t, repo.MarkEnrichmentAttempted(ctx, models.EntityTable,
		[]string{"SALES.PUBLIC.REFUNDS", "SALES.PUBLIC.RETURNS"}, now.Add(time.Minute)))

	pending, err = repo.ListTablesNeedingEnrichment(ctx, "SALES", 3, false)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "SALES.PUBLIC.ORDERS", pending[0].TableID)
	require.NotNil(t, pending[0].LastEnrichmentAttempt)
	assert.WithinDuration(t, now, *pending[0].LastEnrichmentAttempt, time.Millisecond)

	dbs, err := repo.ListDatabasesNeedingEnrichment(ctx, "", 10, false)
	require.NoError(t, err)
	require.Len(t, dbs, 1)
	assert.Nil(t, dbs[0].LastEnrichmentAttempt)

	require.NoError(t, repo.MarkEnrichmentAttempted(ctx, models.EntityDatabase, []string{"SALES"}, now))
	dbs, err = repo.ListDatabasesNeedingEnrichment(ctx, "", 10, false)
	require.NoError(t, err)
	require.Len(t, dbs, 1)
	assert.NotNil(t, dbs[0].LastEnrichmentAttempt)

	before, err := repo.GetTable(ctx, "SALES.PUBLIC.ORDERS")
	require.NoError(t, err)
	require.NoError(t, repo.MarkEnrichmentAttempted(ctx, models.EntityTable, []string{"SALES.PUBLIC.ORDERS"}, now.Add(time.Hour)))
	after, err := repo.GetTable(ctx, "SALES.PUBLIC.ORDERS")
	require.NoError(t, err)
	assert.Equal(t, before.Revision, after.Revision)
}

func TestCatalogRepository_SearchRanksNameMatchesBeforeLimit(t *testing.T) {
	repo := setupCatalogTest(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedHierarchy(t, repo, now)

	names := []string{"ORDERS_DAILY"}
	for i := 0; i < 30; i++ {
		names = append(names, fmt.Sprintf("ARCHIVED_ORDERS_%02d", i))
	}
	for _, name := range names {
		_, _, err := repo.UpsertTable(ctx, &models.Table{
			TableID: "SALES.PUBLIC." + name, SchemaID: "SALES.PUBLIC", DatabaseID: "SALES", Name: name,
			TableType: "BASE TABLE", CollectedAt: now,
		})
		require.NoError(t, err)
	}

	results, err := repo.Search(ctx, models.SearchQuery{Text: "orders"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "SALES.PUBLIC.ORDERS", results[0].EntityID)
	assert.Equal(t, "SALES.PUBLIC.ORDERS_DAILY", results[1].EntityID)
	assert.Equal(t, "SALES.PUBLIC.ARCHIVED_ORDERS_00", results[2].EntityID)
}

func TestCatalogRepository_SearchAndSnapshot(t *testing.T) {
	repo := setupCatalogTest(t)
	ctx := context.Background()
	seedHierarchy(t, repo, time.Now().UTC())

	results, err := repo.Search(ctx, models.SearchQuery{Text: "email", DatabaseID: "SALES"}, 50)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.EntityColumn, results[0].EntityType)
	assert.Equal(t, "SALES.PUBLIC.ORDERS", results[0].TableID)

	results, err = repo.Search(ctx, models.SearchQuery{Text: "orders"}, 50)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, models.EntityTable, results[0].EntityType)

	snap, err := repo.Snapshot(ctx, []string{"SALES"})
	require.NoError(t, err)
	assert.Len(t, snap.Databases, 1)
	assert.Len(t, snap.Schemas, 1)
	assert.Len(t, snap.Tables, 1)
	assert.Len(t, snap.Columns, 2)
}
