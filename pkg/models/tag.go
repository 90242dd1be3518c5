package models

import (
	"time"

	"github.com/google/uuid"
)

// Tag is a user-managed label that can be attached to any catalog entity.
type Tag struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultTagColor is used when a tag is created without one.
const DefaultTagColor = "#3498db"

// TaggedItem links a Tag to one entity by its composite identifier.
type TaggedItem struct {
	ID         uuid.UUID `json:"id"`
	TagID      uuid.UUID `json:"tag_id"`
	TagName    string    `json:"tag_name,omitempty"`
	ObjectType string    `json:"object_type"`
	ObjectID   string    `json:"object_id"`
	TaggedBy   string    `json:"tagged_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TagSuggestions are offered to clients that have no tags yet.
var TagSuggestions = []string{"PII", "Confidential", "Sensitive", "Public", "Internal"}

// IsValidObjectType reports whether t names a taggable entity level.
func IsValidObjectType(t string) bool {
	switch t {
	case EntityDatabase, EntitySchema, EntityTable, EntityColumn:
		return true
	}
	return false
}
