package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

func searchCandidates() []*models.SearchResult {
	return []*models.SearchResult{
		{EntityType: models.EntityColumn, EntityID: "SALES.PUBLIC.ORDERS.CUSTOMER_ID", TableID: "SALES.PUBLIC.ORDERS", Name: "CUSTOMER_ID", DataType: "NUMBER"},
		{EntityType: models.EntityTable, EntityID: "SALES.PUBLIC.CUSTOMERS", TableID: "SALES.PUBLIC.CUSTOMERS", Name: "CUSTOMERS"},
		{EntityType: models.EntityTable, EntityID: "CRM.PUBLIC.CUSTOMER", TableID: "CRM.PUBLIC.CUSTOMER", Name: "CUSTOMER"},
		{EntityType: models.EntityTable, EntityID: "SALES.PUBLIC.ORDERS", TableID: "SALES.PUBLIC.ORDERS", Name: "ORDERS",
			Description: "Orders placed by each customer", Keywords: []string{"customer", "purchase"}},
		{EntityType: models.EntityTable, EntityID: "SALES.PUBLIC.OLD_CUSTOMER_DATA", TableID: "SALES.PUBLIC.OLD_CUSTOMER_DATA", Name: "OLD_CUSTOMER_DATA"},
	}
}

func TestRank_OrdersByMatchQuality(t *testing.T) {
	ranked := Rank("customer", searchCandidates())
	require.Len(t, ranked, 5)

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.EntityID
	}
	assert.Equal(t, []string{
		"CRM.PUBLIC.CUSTOMER",             // exact name
		"SALES.PUBLIC.CUSTOMERS",          // table prefix
		"SALES.PUBLIC.ORDERS.CUSTOMER_ID", // column prefix
		"SALES.PUBLIC.OLD_CUSTOMER_DATA",  // name contains
		"SALES.PUBLIC.ORDERS",             // keyword + description
	}, ids)

	assert.Equal(t, []string{"name"}, ranked[0].MatchedOn)
	assert.Equal(t, []string{"keywords", "description"}, ranked[4].MatchedOn)
	assert.Greater(t, ranked[1].Score, ranked[2].Score)
}

func TestRank_DropsNonMatches(t *testing.T) {
	ranked := Rank("invoice", searchCandidates())
	assert.Empty(t, ranked)
}

func TestSearchService_Search(t *testing.T) {
	repo := newFakeCatalogRepo()
	repo.searchResults = searchCandidates()
	svc := NewSearchService(repo, zaptest.NewLogger(t))

	resp, err := svc.Search(context.Background(), models.SearchQuery{Text: "  Customer ", DatabaseID: "SALES", Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, "Customer", resp.Query)
	assert.Equal(t, 5, resp.Total)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "CRM.PUBLIC.CUSTOMER", resp.Results[0].EntityID)

	assert.Equal(t, "SALES", repo.lastSearch.DatabaseID)
	assert.Equal(t, 2*candidateFactor, repo.lastLimit)
}

func TestSearchService_Limits(t *testing.T) {
	repo := newFakeCatalogRepo()
	svc := NewSearchService(repo, zaptest.NewLogger(t))

	_, err := svc.Search(context.Background(), models.SearchQuery{Text: "x", Limit: 10_000})
	require.NoError(t, err)
	assert.Equal(t, MaxSearchLimit*candidateFactor, repo.lastLimit)

	_, err = svc.Search(context.Background(), models.SearchQuery{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, DefaultSearchLimit*candidateFactor, repo.lastLimit)

	_, err = svc.Search(context.Background(), models.SearchQuery{Text: "   "})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestExpandBusinessTerms(t *testing.T) {
	assert.Equal(t, []string{
		"expense", "cost", "payment", "budget", "transaction", "purchase",
		"client", "buyer", "consumer", "purchaser", "user", "account",
	}, ExpandBusinessTerms("Customer spend"))

	// Words already in the text are not repeated.
	assert.Equal(t, []string{"transaction", "requisition", "booking"}, ExpandBusinessTerms("purchase order"))

	assert.Empty(t, ExpandBusinessTerms("invoice"))
}

func TestSearchService_ExpandsBusinessTerms(t *testing.T) {
	repo := newFakeCatalogRepo()
	repo.searchResults = []*models.SearchResult{
		{EntityType: models.EntityTable, EntityID: "CRM.PUBLIC.CLIENT_ACCOUNTS", TableID: "CRM.PUBLIC.CLIENT_ACCOUNTS", Name: "CLIENT_ACCOUNTS"},
		{EntityType: models.EntityTable, EntityID: "CRM.PUBLIC.CUSTOMER_DIM", TableID: "CRM.PUBLIC.CUSTOMER_DIM", Name: "CUSTOMER_DIM"},
		{EntityType: models.EntityTable, EntityID: "CRM.PUBLIC.INVOICES", TableID: "CRM.PUBLIC.INVOICES", Name: "INVOICES"},
	}
	svc := NewSearchService(repo, zaptest.NewLogger(t))

	resp, err := svc.Search(context.Background(), models.SearchQuery{Text: "customer"})
	require.NoError(t, err)

	assert.Contains(t, resp.ExpandedTerms, "client")
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "CRM.PUBLIC.CUSTOMER_DIM", resp.Results[0].EntityID)
	assert.Empty(t, resp.Results[0].RelatedTerms)

	client := resp.Results[1]
	assert.Equal(t, "CRM.PUBLIC.CLIENT_ACCOUNTS", client.EntityID)
	assert.Equal(t, []string{"client", "account"}, client.RelatedTerms)
	assert.Equal(t, []string{"name"}, client.MatchedOn)
	assert.Less(t, client.Score, resp.Results[0].Score)
}

func TestSearchService_BareSchemaNameWithinDatabase(t *testing.T) {
	repo := newFakeCatalogRepo()
	svc := NewSearchService(repo, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := svc.Search(ctx, models.SearchQuery{Text: "x", DatabaseID: "SALES", SchemaID: "PUBLIC"})
	require.NoError(t, err)
	assert.Equal(t, "SALES.PUBLIC", repo.lastSearch.SchemaID)

	_, err = svc.Search(ctx, models.SearchQuery{Text: "x", DatabaseID: "SALES", SchemaID: "SALES.STAGING"})
	require.NoError(t, err)
	assert.Equal(t, "SALES.STAGING", repo.lastSearch.SchemaID)

	_, err = svc.Search(ctx, models.SearchQuery{Text: "x", SchemaID: "PUBLIC"})
	require.NoError(t, err)
	assert.Equal(t, "PUBLIC", repo.lastSearch.SchemaID)
}
