package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// ============================================================================
// Mock Implementations
// ============================================================================

type mockCollectionService struct {
	started  *models.CollectionStarted
	startErr error
	lastReq  models.CollectionRequest
	statuses map[string]*models.ProcessStatus
}

func (m *mockCollectionService) StartCollection(ctx context.Context, req models.CollectionRequest) (*models.CollectionStarted, error) {
	m.lastReq = req
	if m.startErr != nil {
		return nil, m.startErr
	}
	return m.started, nil
}

func (m *mockCollectionService) RunCollection(ctx context.Context, processID string, req models.CollectionRequest) (*models.ProcessStatus, error) {
	return nil, nil
}

func (m *mockCollectionService) Status(ctx context.Context, processID string) (*models.ProcessStatus, error) {
	if s, ok := m.statuses[processID]; ok {
		return s, nil
	}
	return models.NotFoundStatus(processID), nil
}

func (m *mockCollectionService) Shutdown(ctx context.Context) error { return nil }

type mockCatalogStore struct {
	databases map[string]*models.Database
	schemas   map[string]*models.Schema
	tables    map[string]*models.Table
	columns   map[string][]*models.Column

	lastPage    models.Page
	deleted     []string
	pruneBefore time.Time
	pruned      int64
	listErr     error
}

func newMockCatalogStore() *mockCatalogStore {
	return &mockCatalogStore{
		databases: map[string]*models.Database{},
		schemas:   map[string]*models.Schema{},
		tables:    map[string]*models.Table{},
		columns:   map[string][]*models.Column{},
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, apperrors.ErrNotFound)
}

func (m *mockCatalogStore) ListDatabases(ctx context.Context, page models.Page) ([]*models.Database, error) {
	m.lastPage = page
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*models.Database{}
	for _, d := range m.databases {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockCatalogStore) ListSchemas(ctx context.Context, databaseID string, page models.Page) ([]*models.Schema, error) {
	m.lastPage = page
	out := []*models.Schema{}
	for _, s := range m.schemas {
		if s.DatabaseID == databaseID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockCatalogStore) ListTables(ctx context.Context, schemaID string, page models.Page) ([]*models.Table, error) {
	m.lastPage = page
	out := []*models.Table{}
	for _, t := range m.tables {
		if t.SchemaID == schemaID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockCatalogStore) ListColumns(ctx context.Context, tableID string, page models.Page) ([]*models.Column, error) {
	m.lastPage = page
	return m.columns[tableID], nil
}

func (m *mockCatalogStore) GetDatabase(ctx context.Context, databaseID string) (*models.Database, error) {
	if d, ok := m.databases[databaseID]; ok {
		return d, nil
	}
	return nil, notFound("database", databaseID)
}

func (m *mockCatalogStore) GetSchema(ctx context.Context, schemaID string) (*models.Schema, error) {
	if s, ok := m.schemas[schemaID]; ok {
		return s, nil
	}
	return nil, notFound("schema", schemaID)
}

func (m *mockCatalogStore) GetTable(ctx context.Context, tableID string) (*models.Table, error) {
	if t, ok := m.tables[tableID]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, notFound("table", tableID)
}

func (m *mockCatalogStore) DeleteDatabase(ctx context.Context, databaseID string) error {
	if _, ok := m.databases[databaseID]; !ok {
		return notFound("database", databaseID)
	}
	delete(m.databases, databaseID)
	m.deleted = append(m.deleted, databaseID)
	return nil
}

func (m *mockCatalogStore) DeleteSchema(ctx context.Context, schemaID string) error {
	if _, ok := m.schemas[schemaID]; !ok {
		return notFound("schema", schemaID)
	}
	delete(m.schemas, schemaID)
	m.deleted = append(m.deleted, schemaID)
	return nil
}

func (m *mockCatalogStore) PruneStale(ctx context.Context, databaseID string, before time.Time) (int64, error) {
	m.pruneBefore = before
	return m.pruned, nil
}

type mockSearchService struct {
	lastQuery models.SearchQuery
	resp      *models.SearchResponse
	err       error
}

func (m *mockSearchService) Search(ctx context.Context, q models.SearchQuery) (*models.SearchResponse, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type mockEnrichmentService struct {
	lastReq models.EnrichmentRequest
	report  *models.EnrichmentReport
	err     error
}

func (m *mockEnrichmentService) EnrichBatch(ctx context.Context, req models.EnrichmentRequest) (*models.EnrichmentReport, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

type mockTagService struct {
	tags       []*models.Tag
	created    *models.Tag
	createErr  error
	searched   string
	assigned   map[string]*models.TaggedItem
	removed    []string
	deleted    []uuid.UUID
	assignErr  error
	itemsByTag map[uuid.UUID][]*models.TaggedItem
}

func newMockTagService() *mockTagService {
	return &mockTagService{
		assigned:   map[string]*models.TaggedItem{},
		itemsByTag: map[uuid.UUID][]*models.TaggedItem{},
	}
}

func (m *mockTagService) CreateTag(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	tag.ID = uuid.New()
	m.created = tag
	return tag, nil
}

func (m *mockTagService) ListTags(ctx context.Context) ([]*models.Tag, error) {
	return m.tags, nil
}

func (m *mockTagService) SearchTags(ctx context.Context, text string) ([]*models.Tag, error) {
	m.searched = text
	return m.tags[:1], nil
}

func (m *mockTagService) DeleteTag(ctx context.Context, tagID uuid.UUID) error {
	m.deleted = append(m.deleted, tagID)
	return nil
}

func (m *mockTagService) AssignTag(ctx context.Context, item *models.TaggedItem) (*models.TaggedItem, bool, error) {
	if m.assignErr != nil {
		return nil, false, m.assignErr
	}
	key := item.TagID.String() + "|" + item.ObjectType + "|" + item.ObjectID
	if existing, ok := m.assigned[key]; ok {
		return existing, false, nil
	}
	item.ID = uuid.New()
	m.assigned[key] = item
	return item, true, nil
}

func (m *mockTagService) RemoveTag(ctx context.Context, tagID uuid.UUID, objectType, objectID string) error {
	m.removed = append(m.removed, objectType+":"+objectID)
	return nil
}

func (m *mockTagService) ListTaggedItems(ctx context.Context, tagID uuid.UUID) ([]*models.TaggedItem, error) {
	return m.itemsByTag[tagID], nil
}

func (m *mockTagService) Suggestions() []string {
	return append([]string(nil), models.TagSuggestions...)
}
