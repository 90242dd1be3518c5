package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/catalog"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// WalkState is a state of the schema walk.
type WalkState string

const (
	StateListDatabases WalkState = "list_databases"
	StateListSchemas   WalkState = "list_schemas"
	StateListTables    WalkState = "list_tables"
	StateListColumns   WalkState = "list_columns"
	StateDone          WalkState = "done"
	StateTimedOut      WalkState = "timed_out"
)

// phaseFor maps walk states onto the phases recorded in the ledger.
var phaseFor = map[WalkState]string{
	StateListDatabases: models.PhaseCollectingDatabases,
	StateListSchemas:   models.PhaseCollectingSchemas,
	StateListTables:    models.PhaseCollectingTables,
	StateListColumns:   models.PhaseCollectingColumns,
}

// Sink receives normalized records as the walk produces them.
// Parents are always delivered before their children.
type Sink interface {
	PutDatabase(ctx context.Context, db *models.Database)
	PutSchema(ctx context.Context, schema *models.Schema)
	PutTable(ctx context.Context, table *models.Table, columns []*models.Column)
}

// ProgressFunc is told which state the walk entered and how many of the
// top-level databases are finished. It is also called after every table.
type ProgressFunc func(state WalkState, databasesDone, databasesTotal int, stats models.CollectionStats)

// WalkOptions bound and scope one walk. Zero caps mean unlimited.
type WalkOptions struct {
	Database           string // only this database when set
	Schema             string // only this schema when set
	MaxTablesPerSchema int
	MaxSchemasPerDB    int
	CollectStatistics  bool
	Deadline           time.Time // zero means no budget

	// ParallelDatabases walks databases concurrently, each on its own
	// source from OpenSource, at most Workers at a time.
	ParallelDatabases bool
	Workers           int
	OpenSource        func(ctx context.Context) (warehouse.MetadataSource, error)

	Progress ProgressFunc
}

// WalkResult is what a walk reached. Records were already handed to the sink.
type WalkResult struct {
	State       WalkState
	DatabaseIDs []string
	Stats       models.CollectionStats
}

// SchemaWalker drives a MetadataSource top-down, depth-first.
type SchemaWalker interface {
	Walk(ctx context.Context, src warehouse.MetadataSource, opts WalkOptions, sink Sink) (*WalkResult, error)
}

type schemaWalker struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSchemaWalker creates a SchemaWalker.
func NewSchemaWalker(logger *zap.Logger) SchemaWalker {
	return &schemaWalker{logger: logger.Named("walker"), now: time.Now}
}

// walkRun carries the mutable state of one Walk call.
type walkRun struct {
	w         *schemaWalker
	opts      WalkOptions
	sink      Sink
	collected time.Time

	mu       sync.Mutex
	stats    models.CollectionStats
	dbIDs    []string
	done     int
	total    int
	timedOut bool
}

// Walk enumerates the source. It only fails when the database list itself
// cannot be read; every lower-level failure is counted and skipped.
func (w *schemaWalker) Walk(ctx context.Context, src warehouse.MetadataSource, opts WalkOptions, sink Sink) (*WalkResult, error) {
	run := &walkRun{w: w, opts: opts, sink: sink, collected: w.now().UTC()}

	run.report(StateListDatabases)
	databases, err := src.ListDatabases(ctx)
	if err != nil {
		return nil, &apperrors.PartialEnumerationError{Level: "account", Path: src.Info().Engine, Cause: err}
	}
	databases = filterDatabases(databases, opts.Database)
	run.total = len(databases)

	w.logger.Info("Walking databases",
		zap.Int("databases", len(databases)),
		zap.Bool("parallel", opts.ParallelDatabases && opts.OpenSource != nil))

	if opts.ParallelDatabases && opts.OpenSource != nil && len(databases) > 1 {
		run.walkParallel(ctx, src.Info(), databases)
	} else {
		for _, db := range databases {
			if run.expired(ctx) {
				break
			}
			run.walkDatabase(ctx, src, db)
		}
	}

	state := StateDone
	if run.timedOut {
		state = StateTimedOut
	}
	run.report(state)

	return &WalkResult{State: state, DatabaseIDs: run.dbIDs, Stats: run.stats}, nil
}

func (r *walkRun) walkParallel(ctx context.Context, info warehouse.SourceInfo, databases []warehouse.DatabaseInfo) {
	workers := r.opts.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, db := range databases {
		if r.expired(gctx) {
			break
		}
		g.Go(func() error {
			if r.expired(gctx) {
				return nil
			}
			src, err := r.opts.OpenSource(gctx)
			if err != nil {
				r.w.logger.Error("Failed to open session for database",
					zap.String("database", db.Name), zap.Error(err))
				r.addStats(models.CollectionStats{ErrorCount: 1})
				return nil
			}
			defer func() {
				if err := src.Close(); err != nil {
					r.w.logger.Warn("Failed to close session", zap.String("database", db.Name), zap.Error(err))
				}
			}()
			r.walkDatabase(gctx, withInfo{src, info}, db)
			return nil
		})
	}
	_ = g.Wait()
}

// withInfo reports the listing source's info for per-database sessions so
// every record carries the same engine version.
type withInfo struct {
	warehouse.MetadataSource
	info warehouse.SourceInfo
}

func (s withInfo) Info() warehouse.SourceInfo { return s.info }

func annotatorOf(src warehouse.MetadataSource) (warehouse.Annotator, bool) {
	if w, ok := src.(withInfo); ok {
		src = w.MetadataSource
	}
	a, ok := src.(warehouse.Annotator)
	return a, ok
}

func (r *walkRun) walkDatabase(ctx context.Context, src warehouse.MetadataSource, raw warehouse.DatabaseInfo) {
	logger := r.w.logger.With(zap.String("database", raw.Name))
	defer r.finishDatabase()

	db := catalog.NormalizeDatabase(raw, src.Info(), r.collected)

	index := catalog.NewAnnotationIndex(nil)
	if annotator, ok := annotatorOf(src); ok {
		ann, err := annotator.CatalogAnnotations(ctx, raw.Name)
		if err != nil {
			logger.Warn("Failed to read catalog annotations", zap.Error(err))
		} else if !ann.IsEmpty() {
			index = catalog.NewAnnotationIndex(ann)
		}
	}
	index.AnnotateDatabase(db)

	r.sink.PutDatabase(ctx, db)
	r.addDatabase(db.DatabaseID)

	r.report(StateListSchemas)
	schemas, err := src.ListSchemas(ctx, raw.Name)
	if err != nil {
		r.nodeFailed(logger, &apperrors.PartialEnumerationError{Level: "database", Path: db.DatabaseID, Cause: err})
		return
	}
	schemas = filterSchemas(schemas, r.opts.Schema)
	if limit := r.opts.MaxSchemasPerDB; limit > 0 && len(schemas) > limit {
		logger.Info("Schema limit reached, skipping remaining schemas",
			zap.Int("limit", limit), zap.Int("skipped", len(schemas)-limit))
		schemas = schemas[:limit]
	}

	for _, rawSchema := range schemas {
		if r.expired(ctx) {
			return
		}
		schema := catalog.NormalizeSchema(db.DatabaseID, rawSchema, r.collected)
		index.AnnotateSchema(schema)
		r.sink.PutSchema(ctx, schema)
		r.addStats(models.CollectionStats{SchemaCount: 1})

		r.walkSchema(ctx, src, index, raw.Name, schema, logger)
	}
}

func (r *walkRun) walkSchema(ctx context.Context, src warehouse.MetadataSource, index *catalog.AnnotationIndex,
	database string, schema *models.Schema, logger *zap.Logger) {
	r.report(StateListTables)
	tables, err := src.ListTables(ctx, database, schema.Name)
	if err != nil {
		r.nodeFailed(logger, &apperrors.PartialEnumerationError{Level: "schema", Path: schema.SchemaID, Cause: err})
		return
	}
	if limit := r.opts.MaxTablesPerSchema; limit > 0 && len(tables) > limit {
		skipped := len(tables) - limit
		logger.Info("Table limit reached, skipping remaining tables",
			zap.String("schema_id", schema.SchemaID),
			zap.Int("limit", limit),
			zap.Int("skipped", skipped))
		tables = tables[:limit]
		r.addStats(models.CollectionStats{SkippedTables: skipped})
	}

	r.report(StateListColumns)
	for _, rawTable := range tables {
		if r.expired(ctx) {
			return
		}
		r.walkTable(ctx, src, index, database, schema, rawTable, logger)
		r.report(StateListColumns)
	}
}

// walkTable always emits the table. A failed column listing leaves it
// without columns and counts one error.
func (r *walkRun) walkTable(ctx context.Context, src warehouse.MetadataSource, index *catalog.AnnotationIndex,
	database string, schema *models.Schema, rawTable warehouse.TableInfo, logger *zap.Logger) {
	table := catalog.NormalizeTable(schema.SchemaID, rawTable, r.collected)
	var columns []*models.Column

	rawColumns, err := src.ListColumns(ctx, database, schema.Name, rawTable.Name)
	if err != nil {
		r.nodeFailed(logger, &apperrors.PartialEnumerationError{Level: "table", Path: table.TableID, Cause: err})
	} else {
		columns = catalog.NormalizeColumns(table.TableID, rawColumns, r.collected)
		catalog.ApplyConstraints(columns, src.ResolveConstraints(ctx, database, schema.Name, rawTable.Name))

		if r.opts.CollectStatistics && len(rawColumns) > 0 {
			stats := src.CollectColumnStats(ctx, database, schema.Name, rawTable.Name, rawColumns)
			for _, c := range columns {
				if s, ok := stats[c.Name]; ok {
					c.Stats = s
				}
			}
		}
	}

	index.AnnotateTable(table, columns)
	catalog.RollUpSensitivity(table, columns)
	r.sink.PutTable(ctx, table, columns)
	r.addStats(models.CollectionStats{TableCount: 1, ColumnCount: len(columns)})
}

func (r *walkRun) nodeFailed(logger *zap.Logger, err *apperrors.PartialEnumerationError) {
	logger.Warn("Skipping node after enumeration failure",
		zap.String("level", err.Level),
		zap.String("path", err.Path),
		zap.Error(err.Cause))
	r.addStats(models.CollectionStats{ErrorCount: 1})
}

// expired reports whether the time budget is spent or the context is done.
// Once true it stays true.
func (r *walkRun) expired(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timedOut {
		return true
	}
	if !r.opts.Deadline.IsZero() && !r.w.now().Before(r.opts.Deadline) {
		r.w.logger.Warn("Metadata time budget exceeded, stopping walk", zap.Error(apperrors.ErrTimeoutExceeded))
		r.timedOut = true
	} else if ctx.Err() != nil {
		r.timedOut = true
	}
	return r.timedOut
}

func (r *walkRun) addStats(delta models.CollectionStats) {
	r.mu.Lock()
	r.stats.Add(delta)
	r.mu.Unlock()
}

func (r *walkRun) addDatabase(id string) {
	r.mu.Lock()
	r.dbIDs = append(r.dbIDs, id)
	r.stats.DatabaseCount++
	r.mu.Unlock()
}

func (r *walkRun) finishDatabase() {
	r.mu.Lock()
	r.done++
	r.mu.Unlock()
}

func (r *walkRun) report(state WalkState) {
	if r.opts.Progress == nil {
		return
	}
	r.mu.Lock()
	done, total, stats := r.done, r.total, r.stats
	r.mu.Unlock()
	r.opts.Progress(state, done, total, stats)
}

func filterDatabases(in []warehouse.DatabaseInfo, name string) []warehouse.DatabaseInfo {
	if name == "" {
		return in
	}
	var out []warehouse.DatabaseInfo
	for _, db := range in {
		if strings.EqualFold(db.Name, name) {
			out = append(out, db)
		}
	}
	return out
}

func filterSchemas(in []warehouse.SchemaInfo, name string) []warehouse.SchemaInfo {
	if name == "" {
		return in
	}
	var out []warehouse.SchemaInfo
	for _, s := range in {
		if strings.EqualFold(s.Name, name) {
			out = append(out, s)
		}
	}
	return out
}

// String names the state for logs.
func (s WalkState) String() string { return string(s) }

// Phase returns the ledger phase for a walking state, or "" for terminal states.
func (s WalkState) Phase() string { return phaseFor[s] }
