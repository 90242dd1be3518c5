package handlers

import (
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/services"
)

// CollectionHandler starts metadata collection jobs and reports their progress.
type CollectionHandler struct {
	collectionService services.CollectionService
	logger            *zap.Logger
}

// NewCollectionHandler creates a new collection handler.
func NewCollectionHandler(collectionService services.CollectionService, logger *zap.Logger) *CollectionHandler {
	return &CollectionHandler{
		collectionService: collectionService,
		logger:            logger,
	}
}

// RegisterRoutes registers the collection handler's routes on the given mux.
func (h *CollectionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/collections", h.Start)
	mux.HandleFunc("GET /api/collections/sources", h.ListSourceTypes)
	mux.HandleFunc("GET /api/collections/{pid}/status", h.Status)
}

// Start handles POST /api/collections. The job runs in the background; the
// response carries the process id and where to poll for progress.
func (h *CollectionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.CollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err, "collection_failed", h.logger)
		return
	}

	started, err := h.collectionService.StartCollection(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "collection_failed", h.logger)
		return
	}

	h.logger.Info("Collection accepted",
		zap.String("process_id", started.ProcessID),
		zap.String("source_type", req.SourceType))
	writeData(w, http.StatusAccepted, started, h.logger)
}

// Status handles GET /api/collections/{pid}/status. The ledger record is
// returned as-is; unknown or expired ids yield a not_found status with 404.
func (h *CollectionHandler) Status(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")
	if pid == "" {
		writeError(w, http.StatusBadRequest, "invalid_process_id", "Process ID is required", h.logger)
		return
	}

	status, err := h.collectionService.Status(r.Context(), pid)
	if err != nil {
		writeServiceError(w, err, "status_failed", h.logger)
		return
	}

	code := http.StatusOK
	if status.Status == models.StatusNotFound {
		code = http.StatusNotFound
	}
	if err := WriteJSON(w, code, status); err != nil {
		h.logger.Error("Failed to encode status response", zap.Error(err))
	}
}

// ListSourceTypes handles GET /api/collections/sources.
func (h *CollectionHandler) ListSourceTypes(w http.ResponseWriter, r *http.Request) {
	types := warehouse.RegisteredTypes()
	sort.Slice(types, func(i, j int) bool { return types[i].Type < types[j].Type })
	writeData(w, http.StatusOK, types, h.logger)
}
