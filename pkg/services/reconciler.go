package services

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/repositories"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/retry"
)

// ReconcileStats counts what one Reconciler stored.
type ReconcileStats struct {
	Created           int `json:"created"`
	Updated           int `json:"updated"`
	PersistenceErrors int `json:"persistence_errors"`
	Orphans           int `json:"orphans"`
}

// Reconciler upserts walk output into the catalog store one record at a
// time. A record whose parent is neither stored by this reconciler nor
// present in the store is discarded. A failed upsert, or a parent lookup
// that keeps failing, is logged and counted; siblings continue. Safe for concurrent use.
type Reconciler struct {
	repo   repositories.CatalogRepository
	logger *zap.Logger
	retry  *retry.Config

	mu     sync.Mutex
	known  map[string]bool // ids confirmed present in the store
	absent map[string]bool // ids confirmed missing
	stats  ReconcileStats
}

// NewReconciler creates a Reconciler on repo.
func NewReconciler(repo repositories.CatalogRepository, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		repo:   repo,
		logger: logger.Named("reconciler"),
		retry:  retry.DefaultConfig(),
		known:  map[string]bool{},
		absent: map[string]bool{},
	}
}

var _ Sink = (*Reconciler)(nil)

// Apply stores a batch in parent-first order.
func (r *Reconciler) Apply(ctx context.Context, batch *models.Snapshot) ReconcileStats {
	for _, db := range batch.Databases {
		r.PutDatabase(ctx, db)
	}
	for _, s := range batch.Schemas {
		r.PutSchema(ctx, s)
	}

	byTable := make(map[string][]*models.Column, len(batch.Tables))
	for _, c := range batch.Columns {
		byTable[c.TableID] = append(byTable[c.TableID], c)
	}
	for _, t := range batch.Tables {
		r.PutTable(ctx, t, byTable[t.TableID])
		delete(byTable, t.TableID)
	}
	// Columns whose table is not part of the batch.
	for tableID, cols := range byTable {
		if !r.checkParent(ctx, models.EntityColumn, models.EntityTable, tableID, len(cols)) {
			continue
		}
		for _, c := range cols {
			r.putColumn(ctx, c)
		}
	}
	return r.Stats()
}

func (r *Reconciler) PutDatabase(ctx context.Context, db *models.Database) {
	_, created, err := r.repo.UpsertDatabase(ctx, db)
	r.record(models.EntityDatabase, db.DatabaseID, created, err)
}

func (r *Reconciler) PutSchema(ctx context.Context, schema *models.Schema) {
	if !r.checkParent(ctx, models.EntitySchema, models.EntityDatabase, schema.DatabaseID, 1) {
		return
	}
	_, created, err := r.repo.UpsertSchema(ctx, schema)
	r.record(models.EntitySchema, schema.SchemaID, created, err)
}

func (r *Reconciler) PutTable(ctx context.Context, table *models.Table, columns []*models.Column) {
	if !r.checkParent(ctx, models.EntityTable, models.EntitySchema, table.SchemaID, 1+len(columns)) {
		return
	}
	_, created, err := r.repo.UpsertTable(ctx, table)
	r.record(models.EntityTable, table.TableID, created, err)
	if err != nil {
		r.orphan(models.EntityColumn, table.TableID, len(columns))
		return
	}
	for _, c := range columns {
		r.putColumn(ctx, c)
	}
}

func (r *Reconciler) putColumn(ctx context.Context, column *models.Column) {
	_, created, err := r.repo.UpsertColumn(ctx, column)
	r.record(models.EntityColumn, column.ColumnID, created, err)
}

// Stats returns the counts so far.
func (r *Reconciler) Stats() ReconcileStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Reconciler) record(entity, id string, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.stats.PersistenceErrors++
		r.absent[id] = true
		delete(r.known, id)
		r.logger.Error("Skipping record",
			zap.Error(&apperrors.PersistenceError{Entity: entity, ID: id, Cause: err}))
		return
	}
	r.known[id] = true
	delete(r.absent, id)
	if created {
		r.stats.Created++
	} else {
		r.stats.Updated++
	}
}

func (r *Reconciler) orphan(entity, parentID string, n int) {
	if n == 0 {
		return
	}
	r.mu.Lock()
	r.stats.Orphans += n
	r.mu.Unlock()
	r.logger.Warn("Discarding records whose parent is not stored",
		zap.String("entity", entity), zap.String("parent_id", parentID), zap.Int("count", n))
}

// checkParent reports whether n records of entity may be stored under
// parentID. A parent known to be missing makes them orphans. A parent that
// could not be looked up makes them persistence errors.
func (r *Reconciler) checkParent(ctx context.Context, entity, level, parentID string, n int) bool {
	exists, err := r.parentExists(ctx, level, parentID)
	switch {
	case err != nil:
		r.mu.Lock()
		r.stats.PersistenceErrors += n
		r.mu.Unlock()
		r.logger.Error("Skipping records whose parent could not be checked",
			zap.String("entity", entity), zap.Int("count", n),
			zap.Error(&apperrors.PersistenceError{Entity: level, ID: parentID, Cause: err}))
		return false
	case !exists:
		r.orphan(entity, parentID, n)
		return false
	}
	return true
}

// parentExists consults the ids stored so far and falls back to the store.
// Transient store errors are retried; any other failure is returned.
func (r *Reconciler) parentExists(ctx context.Context, level, id string) (bool, error) {
	r.mu.Lock()
	known, absent := r.known[id], r.absent[id]
	r.mu.Unlock()
	if known {
		return true, nil
	}
	if absent {
		return false, nil
	}

	err := retry.DoIfRetryable(ctx, r.retry, func() error {
		var err error
		switch level {
		case models.EntityDatabase:
			_, err = r.repo.GetDatabase(ctx, id)
		case models.EntitySchema:
			_, err = r.repo.GetSchema(ctx, id)
		case models.EntityTable:
			_, err = r.repo.GetTable(ctx, id)
		}
		return err
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case err == nil:
		r.known[id] = true
		return true, nil
	case errors.Is(err, apperrors.ErrNotFound):
		r.absent[id] = true
		return false, nil
	}
	return false, err
}
