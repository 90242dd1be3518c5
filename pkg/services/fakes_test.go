package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/catalog"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/repositories"
)

// fakeSource serves a fixed hierarchy. Keys are "DB", "DB.SCHEMA" and
// "DB.SCHEMA.TABLE".
type fakeSource struct {
	mu sync.Mutex

	databases []warehouse.DatabaseInfo
	schemas   map[string][]warehouse.SchemaInfo
	tables    map[string][]warehouse.TableInfo
	columns   map[string][]warehouse.ColumnInfo
	keys      map[string][]models.Constraint
	stats     map[string]map[string]*models.ColumnStats

	failDatabases bool
	failSchemas   map[string]bool
	failTables    map[string]bool
	failColumns   map[string]bool

	// onColumns runs before every column listing.
	onColumns func()

	columnCalls int
	statsCalls  int
	closed      bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		schemas:     map[string][]warehouse.SchemaInfo{},
		tables:      map[string][]warehouse.TableInfo{},
		columns:     map[string][]warehouse.ColumnInfo{},
		keys:        map[string][]models.Constraint{},
		stats:       map[string]map[string]*models.ColumnStats{},
		failSchemas: map[string]bool{},
		failTables:  map[string]bool{},
		failColumns: map[string]bool{},
	}
}

// addTable registers db, schema and table as needed plus the given columns.
func (f *fakeSource) addTable(db, schema, table string, columns ...string) {
	if !f.hasDatabase(db) {
		f.databases = append(f.databases, warehouse.DatabaseInfo{Name: db})
	}
	if !f.hasSchema(db, schema) {
		f.schemas[db] = append(f.schemas[db], warehouse.SchemaInfo{Name: schema})
	}
	key := db + "." + schema
	f.tables[key] = append(f.tables[key], warehouse.TableInfo{Name: table, TableType: "BASE TABLE"})
	var cols []warehouse.ColumnInfo
	for i, c := range columns {
		cols = append(cols, warehouse.ColumnInfo{Name: c, OrdinalPosition: i + 1, DataType: "VARCHAR", IsNullable: true})
	}
	f.columns[key+"."+table] = cols
}

func (f *fakeSource) hasDatabase(name string) bool {
	for _, d := range f.databases {
		if d.Name == name {
			return true
		}
	}
	return false
}

func (f *fakeSource) hasSchema(db, name string) bool {
	for _, s := range f.schemas[db] {
		if s.Name == name {
			return true
		}
	}
	return false
}

func (f *fakeSource) Info() warehouse.SourceInfo {
	return warehouse.SourceInfo{Engine: "Fake", Version: "1.0"}
}

func (f *fakeSource) ListDatabases(ctx context.Context) ([]warehouse.DatabaseInfo, error) {
	if f.failDatabases {
		return nil, errors.New("insufficient privileges")
	}
	return f.databases, nil
}

func (f *fakeSource) ListSchemas(ctx context.Context, database string) ([]warehouse.SchemaInfo, error) {
	if f.failSchemas[database] {
		return nil, errors.New("schema listing failed")
	}
	return f.schemas[database], nil
}

func (f *fakeSource) ListTables(ctx context.Context, database, schema string) ([]warehouse.TableInfo, error) {
	key := database + "." + schema
	if f.failTables[key] {
		return nil, errors.New("table listing failed")
	}
	return f.tables[key], nil
}

func (f *fakeSource) ListColumns(ctx context.Context, database, schema, table string) ([]warehouse.ColumnInfo, error) {
	f.mu.Lock()
	f.columnCalls++
	hook := f.onColumns
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	key := database + "." + schema + "." + table
	if f.failColumns[key] {
		return nil, errors.New("column listing failed")
	}
	return f.columns[key], nil
}

func (f *fakeSource) ResolveConstraints(ctx context.Context, database, schema, table string) []models.Constraint {
	return f.keys[database+"."+schema+"."+table]
}

func (f *fakeSource) CollectColumnStats(ctx context.Context, database, schema, table string, columns []warehouse.ColumnInfo) map[string]*models.ColumnStats {
	f.mu.Lock()
	f.statsCalls++
	f.mu.Unlock()
	return f.stats[database+"."+schema+"."+table]
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// recordingSink keeps everything the walker emits.
type recordingSink struct {
	mu        sync.Mutex
	databases []*models.Database
	schemas   []*models.Schema
	tables    []*models.Table
	columns   map[string][]*models.Column
	order     []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{columns: map[string][]*models.Column{}}
}

func (s *recordingSink) PutDatabase(ctx context.Context, db *models.Database) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.databases = append(s.databases, db)
	s.order = append(s.order, db.DatabaseID)
}

func (s *recordingSink) PutSchema(ctx context.Context, schema *models.Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas = append(s.schemas, schema)
	s.order = append(s.order, schema.SchemaID)
}

func (s *recordingSink) PutTable(ctx context.Context, table *models.Table, columns []*models.Column) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append(s.tables, table)
	s.columns[table.TableID] = columns
	s.order = append(s.order, table.TableID)
}

func (s *recordingSink) tableIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tables))
	for _, t := range s.tables {
		ids = append(ids, t.TableID)
	}
	sort.Strings(ids)
	return ids
}

// fakeCatalogRepo is an in-memory CatalogRepository.
type fakeCatalogRepo struct {
	mu        sync.Mutex
	databases map[string]*models.Database
	schemas   map[string]*models.Schema
	tables    map[string]*models.Table
	columns   map[string]*models.Column

	// failUpsert makes upserts of these ids fail.
	failUpsert map[string]bool
	failApply  map[string]bool

	// getErrs queues errors returned by successive lookups of an id.
	getErrs map[string][]error

	// attempts holds the last enrichment attempt by "type:id".
	attempts map[string]time.Time

	searchResults []*models.SearchResult
	lastSearch    models.SearchQuery
	lastLimit     int
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		databases:  map[string]*models.Database{},
		schemas:    map[string]*models.Schema{},
		tables:     map[string]*models.Table{},
		columns:    map[string]*models.Column{},
		failUpsert: map[string]bool{},
		failApply:  map[string]bool{},
		attempts:   map[string]time.Time{},
		getErrs:    map[string][]error{},
	}
}

var _ repositories.CatalogRepository = (*fakeCatalogRepo)(nil)

var errInjected = errors.New("injected store failure")

func (r *fakeCatalogRepo) UpsertDatabase(ctx context.Context, d *models.Database) (*models.Database, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpsert[d.DatabaseID] {
		return nil, false, errInjected
	}
	_, exists := r.databases[d.DatabaseID]
	cp := *d
	r.databases[d.DatabaseID] = &cp
	return &cp, !exists, nil
}

func (r *fakeCatalogRepo) UpsertSchema(ctx context.Context, s *models.Schema) (*models.Schema, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpsert[s.SchemaID] {
		return nil, false, errInjected
	}
	_, exists := r.schemas[s.SchemaID]
	cp := *s
	r.schemas[s.SchemaID] = &cp
	return &cp, !exists, nil
}

func (r *fakeCatalogRepo) UpsertTable(ctx context.Context, t *models.Table) (*models.Table, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpsert[t.TableID] {
		return nil, false, errInjected
	}
	_, exists := r.tables[t.TableID]
	cp := *t
	cp.Columns = nil
	r.tables[t.TableID] = &cp
	return &cp, !exists, nil
}

func (r *fakeCatalogRepo) UpsertColumn(ctx context.Context, c *models.Column) (*models.Column, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpsert[c.ColumnID] {
		return nil, false, errInjected
	}
	_, exists := r.columns[c.ColumnID]
	cp := *c
	r.columns[c.ColumnID] = &cp
	return &cp, !exists, nil
}

func (r *fakeCatalogRepo) GetDatabase(ctx context.Context, id string) (*models.Database, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.nextGetErr(id); err != nil {
		return nil, err
	}
	if d, ok := r.databases[id]; ok {
		return d, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeCatalogRepo) GetSchema(ctx context.Context, id string) (*models.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.nextGetErr(id); err != nil {
		return nil, err
	}
	if s, ok := r.schemas[id]; ok {
		return s, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeCatalogRepo) GetTable(ctx context.Context, id string) (*models.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.nextGetErr(id); err != nil {
		return nil, err
	}
	if t, ok := r.tables[id]; ok {
		return t, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeCatalogRepo) nextGetErr(id string) error {
	queue := r.getErrs[id]
	if len(queue) == 0 {
		return nil
	}
	r.getErrs[id] = queue[1:]
	return queue[0]
}

func (r *fakeCatalogRepo) GetColumn(ctx context.Context, id string) (*models.Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.columns[id]; ok {
		return c, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeCatalogRepo) ListDatabases(ctx context.Context, page models.Page) ([]*models.Database, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Database
	for _, d := range r.databases {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DatabaseID < out[j].DatabaseID })
	return out, nil
}

func (r *fakeCatalogRepo) ListSchemas(ctx context.Context, databaseID string, page models.Page) ([]*models.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Schema
	for _, s := range r.schemas {
		if s.DatabaseID == databaseID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SchemaID < out[j].SchemaID })
	return out, nil
}

func (r *fakeCatalogRepo) ListTables(ctx context.Context, schemaID string, page models.Page) ([]*models.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Table
	for _, t := range r.tables {
		if t.SchemaID == schemaID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableID < out[j].TableID })
	return out, nil
}

func (r *fakeCatalogRepo) ListColumns(ctx context.Context, tableID string, page models.Page) ([]*models.Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Column
	for _, c := range r.columns {
		if c.TableID == tableID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrdinalPosition < out[j].OrdinalPosition })
	return out, nil
}

func (r *fakeCatalogRepo) DeleteDatabase(ctx context.Context, databaseID string) error {
	return errors.New("not implemented")
}

func (r *fakeCatalogRepo) DeleteSchema(ctx context.Context, schemaID string) error {
	return errors.New("not implemented")
}

func (r *fakeCatalogRepo) PruneStale(ctx context.Context, databaseID string, before time.Time) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *fakeCatalogRepo) Snapshot(ctx context.Context, databaseIDs []string) (*models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[string]bool{}
	for _, id := range databaseIDs {
		want[id] = true
	}
	in := func(id string) bool { return want[catalog.SplitID(id)[0]] }

	snap := &models.Snapshot{}
	for id, d := range r.databases {
		if in(id) {
			snap.Databases = append(snap.Databases, d)
		}
	}
	for id, s := range r.schemas {
		if in(id) {
			snap.Schemas = append(snap.Schemas, s)
		}
	}
	for id, t := range r.tables {
		if in(id) {
			snap.Tables = append(snap.Tables, t)
		}
	}
	for id, c := range r.columns {
		if in(id) {
			snap.Columns = append(snap.Columns, c)
		}
	}
	sort.Slice(snap.Tables, func(i, j int) bool { return snap.Tables[i].TableID < snap.Tables[j].TableID })
	sort.Slice(snap.Columns, func(i, j int) bool { return snap.Columns[i].ColumnID < snap.Columns[j].ColumnID })
	return snap, nil
}

func (r *fakeCatalogRepo) ListDatabasesNeedingEnrichment(ctx context.Context, databaseID string, limit int, force bool) ([]*models.Database, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Database
	for _, d := range r.databases {
		if databaseID != "" && d.DatabaseID != databaseID {
			continue
		}
		if force || d.Description == "" || len(d.Tags) == 0 || len(d.BusinessTerms) == 0 {
			cp := *d
			cp.LastEnrichmentAttempt = r.lastAttempt(models.EntityDatabase, d.DatabaseID)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := compareAttempts(out[i].LastEnrichmentAttempt, out[j].LastEnrichmentAttempt); c != 0 {
			return c < 0
		}
		return out[i].DatabaseID < out[j].DatabaseID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCatalogRepo) ListTablesNeedingEnrichment(ctx context.Context, databaseID string, limit int, force bool) ([]*models.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Table
	for _, t := range r.tables {
		if databaseID != "" && t.DatabaseID != databaseID {
			continue
		}
		if force || t.Description == "" || len(t.Tags) == 0 || len(t.Keywords) == 0 {
			cp := *t
			cp.LastEnrichmentAttempt = r.lastAttempt(models.EntityTable, t.TableID)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := compareAttempts(out[i].LastEnrichmentAttempt, out[j].LastEnrichmentAttempt); c != 0 {
			return c < 0
		}
		return out[i].TableID < out[j].TableID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCatalogRepo) lastAttempt(entityType, id string) *time.Time {
	at, ok := r.attempts[entityType+":"+id]
	if !ok {
		return nil
	}
	return &at
}

func (r *fakeCatalogRepo) MarkEnrichmentAttempted(ctx context.Context, entityType string, ids []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.attempts[entityType+":"+id] = at
	}
	return nil
}

func (r *fakeCatalogRepo) ApplyDatabaseEnrichment(ctx context.Context, databaseID string, result *models.EnrichmentResult, force bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failApply[databaseID] {
		return false, errInjected
	}
	d, ok := r.databases[databaseID]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	target := repositories.EnrichmentTarget{Description: d.Description, Tags: d.Tags, BusinessTerms: d.BusinessTerms}
	if !repositories.MergeEnrichment(&target, result, force) {
		return false, nil
	}
	d.Description, d.Tags, d.BusinessTerms = target.Description, target.Tags, target.BusinessTerms
	return true, nil
}

func (r *fakeCatalogRepo) ApplyTableEnrichment(ctx context.Context, tableID string, result *models.EnrichmentResult, force bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failApply[tableID] {
		return false, errInjected
	}
	t, ok := r.tables[tableID]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	target := repositories.EnrichmentTarget{
		Description:   t.Description,
		Keywords:      t.Keywords,
		Tags:          t.Tags,
		BusinessTerms: t.BusinessTerms,
	}
	if !repositories.MergeEnrichment(&target, result, force) {
		return false, nil
	}
	t.Description, t.Keywords, t.Tags, t.BusinessTerms = target.Description, target.Keywords, target.Tags, target.BusinessTerms
	return true, nil
}

func (r *fakeCatalogRepo) Search(ctx context.Context, q models.SearchQuery, limit int) ([]*models.SearchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSearch, r.lastLimit = q, limit
	needle := strings.ToLower(q.Text)
	var out []*models.SearchResult
	for _, c := range r.searchResults {
		if strings.Contains(strings.ToLower(c.Name+" "+c.Description+" "+strings.Join(c.Keywords, " ")), needle) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// seed stores a database > schema > table with columns, all by raw name.
func (r *fakeCatalogRepo) seed(db, schema, table string, columns ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dbID := catalog.DatabaseID(db)
	schemaID := catalog.SchemaID(db, schema)
	tableID := catalog.TableID(db, schema, table)
	if _, ok := r.databases[dbID]; !ok {
		r.databases[dbID] = &models.Database{DatabaseID: dbID, Name: db}
	}
	if _, ok := r.schemas[schemaID]; !ok {
		r.schemas[schemaID] = &models.Schema{SchemaID: schemaID, DatabaseID: dbID, Name: schema}
	}
	r.tables[tableID] = &models.Table{TableID: tableID, SchemaID: schemaID, DatabaseID: dbID, Name: table}
	for i, c := range columns {
		id := catalog.ColumnID(db, schema, table, c)
		r.columns[id] = &models.Column{ColumnID: id, TableID: tableID, Name: c, OrdinalPosition: i + 1, DataType: "VARCHAR"}
	}
}

func (r *fakeCatalogRepo) counts() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("%d/%d/%d/%d", len(r.databases), len(r.schemas), len(r.tables), len(r.columns))
}
