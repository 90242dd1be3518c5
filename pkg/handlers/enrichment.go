package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/services"
)

// EnrichRequest is the body of POST /api/enrichment. Connection identifies
// the database to enrich by the same credentials used to collect it;
// ConnectionID names a collected database directly and takes precedence.
type EnrichRequest struct {
	Connection   *models.Credentials `json:"connection,omitempty"`
	ConnectionID string              `json:"connection_id,omitempty"`
	BatchSize    int                 `json:"batch_size"`
	Force        bool                `json:"force,omitempty"`
}

// EnrichmentHandler triggers synchronous enrichment batches.
type EnrichmentHandler struct {
	enrichmentService services.EnrichmentService
	logger            *zap.Logger
}

// NewEnrichmentHandler creates a new enrichment handler.
func NewEnrichmentHandler(enrichmentService services.EnrichmentService, logger *zap.Logger) *EnrichmentHandler {
	return &EnrichmentHandler{enrichmentService: enrichmentService, logger: logger}
}

// RegisterRoutes registers the enrichment handler's routes on the given mux.
func (h *EnrichmentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/enrichment", h.Enrich)
}

// Enrich handles POST /api/enrichment. Per-item failures are reported in
// the body; only request and store errors change the status code.
func (h *EnrichmentHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	var body EnrichRequest
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, err, "enrichment_failed", h.logger)
		return
	}

	report, err := h.enrichmentService.EnrichBatch(r.Context(), models.EnrichmentRequest{
		DatabaseID:  body.ConnectionID,
		Credentials: body.Connection,
		BatchSize:   body.BatchSize,
		Force:       body.Force,
	})
	if err != nil {
		writeServiceError(w, err, "enrichment_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, report, h.logger)
}
