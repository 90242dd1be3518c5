package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// CatalogStore is the read and maintenance subset of the catalog repository
// used by the browse API.
type CatalogStore interface {
	ListDatabases(ctx context.Context, page models.Page) ([]*models.Database, error)
	ListSchemas(ctx context.Context, databaseID string, page models.Page) ([]*models.Schema, error)
	ListTables(ctx context.Context, schemaID string, page models.Page) ([]*models.Table, error)
	ListColumns(ctx context.Context, tableID string, page models.Page) ([]*models.Column, error)
	GetDatabase(ctx context.Context, databaseID string) (*models.Database, error)
	GetSchema(ctx context.Context, schemaID string) (*models.Schema, error)
	GetTable(ctx context.Context, tableID string) (*models.Table, error)
	DeleteDatabase(ctx context.Context, databaseID string) error
	DeleteSchema(ctx context.Context, schemaID string) error
	PruneStale(ctx context.Context, databaseID string, before time.Time) (int64, error)
}

// PruneRequest removes entities not seen since Before.
type PruneRequest struct {
	Before time.Time `json:"before"`
}

// PruneResponse reports how many rows a prune removed.
type PruneResponse struct {
	DatabaseID string `json:"database_id"`
	Removed    int64  `json:"removed"`
}

// CatalogHandler serves the collected hierarchy.
type CatalogHandler struct {
	store  CatalogStore
	logger *zap.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(store CatalogStore, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{store: store, logger: logger}
}

// RegisterRoutes registers the catalog handler's routes on the given mux.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/catalog/databases", h.ListDatabases)
	mux.HandleFunc("GET /api/catalog/databases/{id}", h.GetDatabase)
	mux.HandleFunc("DELETE /api/catalog/databases/{id}", h.DeleteDatabase)
	mux.HandleFunc("POST /api/catalog/databases/{id}/prune", h.Prune)
	mux.HandleFunc("GET /api/catalog/databases/{id}/schemas", h.ListSchemas)
	mux.HandleFunc("DELETE /api/catalog/schemas/{id}", h.DeleteSchema)
	mux.HandleFunc("GET /api/catalog/schemas/{id}/tables", h.ListTables)
	mux.HandleFunc("GET /api/catalog/tables/{id}", h.GetTable)
	mux.HandleFunc("GET /api/catalog/tables/{id}/columns", h.ListColumns)
}

func (h *CatalogHandler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	page, ok := ParsePage(w, r, h.logger)
	if !ok {
		return
	}
	dbs, err := h.store.ListDatabases(r.Context(), page)
	if err != nil {
		writeServiceError(w, err, "list_databases_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, dbs, h.logger)
}

func (h *CatalogHandler) GetDatabase(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}
	db, err := h.store.GetDatabase(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get_database_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, db, h.logger)
}

// ListSchemas 404s when the parent database does not exist so that an empty
// list always means "no children".
func (h *CatalogHandler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}
	page, ok := ParsePage(w, r, h.logger)
	if !ok {
		return
	}
	if _, err := h.store.GetDatabase(r.Context(), id); err != nil {
		writeServiceError(w, err, "list_schemas_failed", h.logger)
		return
	}
	schemas, err := h.store.ListSchemas(r.Context(), id, page)
	if err != nil {
		writeServiceError(w, err, "list_schemas_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, schemas, h.logger)
}

func (h *CatalogHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}
	page, ok := ParsePage(w, r, h.logger)
	if !ok {
		return
	}
	if _, err := h.store.GetSchema(r.Context(), id); err != nil {
		writeServiceError(w, err, "list_tables_failed", h.logger)
		return
	}
	tables, err := h.store.ListTables(r.Context(), id, page)
	if err != nil {
		writeServiceError(w, err, "list_tables_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, tables, h.logger)
}

// GetTable returns the table with all of its columns in ordinal order.
func (h *CatalogHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}
	table, err := h.store.GetTable(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get_table_failed", h.logger)
		return
	}
	cols, err := h.store.ListColumns(r.Context(), id, models.Page{Limit: 1000})
	if err != nil {
		writeServiceError(w, err, "get_table_failed", h.logger)
		return
	}
	table.Columns = cols
	writeData(w, http.StatusOK, table, h.logger)
}

func (h *CatalogHandler) ListColumns(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}
	page, ok := ParsePage(w, r, h.logger)
	if !ok {
		return
	}
	if _, err := h.store.GetTable(r.Context(), id); err != nil {
		writeServiceError(w, err, "list_columns_failed", h.logger)
		return
	}
	cols, err := h.store.ListColumns(r.Context(), id, page)
	if err != nil {
		writeServiceError(w, err, "list_columns_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, cols, h.logger)
}

// DeleteDatabase removes the database and everything below it.
func (h *CatalogHandler) DeleteDatabase(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.store.DeleteDatabase(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete_database_failed", h.logger)
		return
	}
	h.logger.Info("Database deleted from catalog", zap.String("database_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) DeleteSchema(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.store.DeleteSchema(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete_schema_failed", h.logger)
		return
	}
	h.logger.Info("Schema deleted from catalog", zap.String("schema_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// Prune handles POST /api/catalog/databases/{id}/prune with body {"before": RFC3339}.
func (h *CatalogHandler) Prune(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}
	var req PruneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err, "prune_failed", h.logger)
		return
	}
	if req.Before.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_request", "before is required", h.logger)
		return
	}
	if _, err := h.store.GetDatabase(r.Context(), id); err != nil {
		writeServiceError(w, err, "prune_failed", h.logger)
		return
	}

	removed, err := h.store.PruneStale(r.Context(), id, req.Before)
	if err != nil {
		writeServiceError(w, err, "prune_failed", h.logger)
		return
	}
	h.logger.Info("Pruned stale catalog entries",
		zap.String("database_id", id),
		zap.Time("before", req.Before),
		zap.Int64("removed", removed))
	writeData(w, http.StatusOK, PruneResponse{DatabaseID: id, Removed: removed}, h.logger)
}
