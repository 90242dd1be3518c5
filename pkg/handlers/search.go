package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/services"
)

// SearchHandler serves free-text search over tables and columns.
type SearchHandler struct {
	searchService services.SearchService
	logger        *zap.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searchService services.SearchService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{searchService: searchService, logger: logger}
}

// RegisterRoutes registers the search handler's routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", h.Search)
}

// Search handles GET /api/search?q=&database=&schema=&table=&limit=
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := models.SearchQuery{
		Text:       query.Get("q"),
		DatabaseID: query.Get("database"),
		SchemaID:   query.Get("schema"),
		TableID:    query.Get("table"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer", h.logger)
			return
		}
		q.Limit = limit
	}

	resp, err := h.searchService.Search(r.Context(), q)
	if err != nil {
		writeServiceError(w, err, "search_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, resp, h.logger)
}
