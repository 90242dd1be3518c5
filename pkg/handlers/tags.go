package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/services"
)

// CreateTagRequest is the body of POST /api/tags.
type CreateTagRequest struct {
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// TagItemRequest names the entity a tag is assigned to or removed from.
type TagItemRequest struct {
	ObjectType string `json:"object_type"`
	ObjectID   string `json:"object_id"`
	TaggedBy   string `json:"tagged_by,omitempty"`
}

// TagHandler manages tags and tag assignments.
type TagHandler struct {
	tagService services.TagService
	logger     *zap.Logger
}

// NewTagHandler creates a new tag handler.
func NewTagHandler(tagService services.TagService, logger *zap.Logger) *TagHandler {
	return &TagHandler{tagService: tagService, logger: logger}
}

// RegisterRoutes registers the tag handler's routes on the given mux.
func (h *TagHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tags", h.List)
	mux.HandleFunc("POST /api/tags", h.Create)
	mux.HandleFunc("GET /api/tags/suggestions", h.Suggestions)
	mux.HandleFunc("DELETE /api/tags/{id}", h.Delete)
	mux.HandleFunc("GET /api/tags/{id}/items", h.ListItems)
	mux.HandleFunc("POST /api/tags/{id}/items", h.Assign)
	mux.HandleFunc("DELETE /api/tags/{id}/items", h.Remove)
}

// List handles GET /api/tags, optionally filtered by ?q=.
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		tags []*models.Tag
		err  error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		tags, err = h.tagService.SearchTags(r.Context(), q)
	} else {
		tags, err = h.tagService.ListTags(r.Context())
	}
	if err != nil {
		writeServiceError(w, err, "list_tags_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, tags, h.logger)
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err, "create_tag_failed", h.logger)
		return
	}
	tag, err := h.tagService.CreateTag(r.Context(), &models.Tag{
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err, "create_tag_failed", h.logger)
		return
	}
	writeData(w, http.StatusCreated, tag, h.logger)
}

func (h *TagHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.tagService.Suggestions(), h.logger)
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTagID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.tagService.DeleteTag(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete_tag_failed", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TagHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTagID(w, r, h.logger)
	if !ok {
		return
	}
	items, err := h.tagService.ListTaggedItems(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "list_tag_items_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, items, h.logger)
}

// Assign handles POST /api/tags/{id}/items. Repeating an assignment returns
// the existing item with 200 instead of 201.
func (h *TagHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTagID(w, r, h.logger)
	if !ok {
		return
	}
	var req TagItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err, "assign_tag_failed", h.logger)
		return
	}

	item, created, err := h.tagService.AssignTag(r.Context(), &models.TaggedItem{
		TagID:      id,
		ObjectType: req.ObjectType,
		ObjectID:   req.ObjectID,
		TaggedBy:   req.TaggedBy,
	})
	if err != nil {
		writeServiceError(w, err, "assign_tag_failed", h.logger)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeData(w, status, item, h.logger)
}

func (h *TagHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTagID(w, r, h.logger)
	if !ok {
		return
	}
	var req TagItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err, "remove_tag_failed", h.logger)
		return
	}
	if err := h.tagService.RemoveTag(r.Context(), id, req.ObjectType, req.ObjectID); err != nil {
		writeServiceError(w, err, "remove_tag_failed", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
