package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// ParseTagID extracts and validates the tag ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseTagID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tag_id", "Invalid tag ID format", logger)
		return uuid.Nil, false
	}
	return id, true
}

// ParseEntityID reads a composite catalog identifier from the path.
// Identifiers are names joined by dots, so only emptiness is rejected.
func ParseEntityID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "Identifier is required", logger)
		return "", false
	}
	return id, true
}

// ParsePage reads limit and offset query parameters. Missing values fall
// back to the defaults of models.Page.
func ParsePage(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.Page, bool) {
	var page models.Page
	for name, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a non-negative integer", logger)
			return models.Page{}, false
		}
		*dst = v
	}
	return page.Normalize(), true
}
