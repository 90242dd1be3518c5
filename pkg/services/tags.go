package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/catalog"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/repositories"
)

// TagService manages tags and their assignment to catalog entities.
type TagService interface {
	CreateTag(ctx context.Context, tag *models.Tag) (*models.Tag, error)
	ListTags(ctx context.Context) ([]*models.Tag, error)
	SearchTags(ctx context.Context, text string) ([]*models.Tag, error)
	DeleteTag(ctx context.Context, tagID uuid.UUID) error

	// AssignTag is idempotent; the bool reports whether a new assignment was made.
	AssignTag(ctx context.Context, item *models.TaggedItem) (*models.TaggedItem, bool, error)
	RemoveTag(ctx context.Context, tagID uuid.UUID, objectType, objectID string) error
	ListTaggedItems(ctx context.Context, tagID uuid.UUID) ([]*models.TaggedItem, error)
	Suggestions() []string
}

type tagService struct {
	tags    repositories.TagRepository
	catalog repositories.CatalogRepository
	logger  *zap.Logger
}

// NewTagService creates a TagService.
func NewTagService(tags repositories.TagRepository, catalogRepo repositories.CatalogRepository, logger *zap.Logger) TagService {
	return &tagService{tags: tags, catalog: catalogRepo, logger: logger.Named("tags")}
}

var tagColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func (s *tagService) CreateTag(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	tag.Name = strings.TrimSpace(tag.Name)
	if tag.Name == "" {
		return nil, fmt.Errorf("%w: tag name is required", apperrors.ErrInvalidInput)
	}
	if len(tag.Name) > 100 {
		return nil, fmt.Errorf("%w: tag name must be at most 100 characters", apperrors.ErrInvalidInput)
	}
	if tag.Color != "" && !tagColorPattern.MatchString(tag.Color) {
		return nil, fmt.Errorf("%w: color must look like #rrggbb", apperrors.ErrInvalidInput)
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, err
	}
	s.logger.Info("Tag created", zap.String("tag_id", tag.ID.String()), zap.String("name", tag.Name))
	return tag, nil
}

func (s *tagService) ListTags(ctx context.Context) ([]*models.Tag, error) {
	return s.tags.List(ctx)
}

func (s *tagService) SearchTags(ctx context.Context, text string) ([]*models.Tag, error) {
	if strings.TrimSpace(text) == "" {
		return s.tags.List(ctx)
	}
	return s.tags.Search(ctx, text)
}

func (s *tagService) DeleteTag(ctx context.Context, tagID uuid.UUID) error {
	return s.tags.Delete(ctx, tagID)
}

func (s *tagService) AssignTag(ctx context.Context, item *models.TaggedItem) (*models.TaggedItem, bool, error) {
	if err := s.validateObject(ctx, item.ObjectType, item.ObjectID); err != nil {
		return nil, false, err
	}
	stored, created, err := s.tags.Assign(ctx, item)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Debug("Tag assigned",
			zap.String("tag_id", item.TagID.String()),
			zap.String("object_type", item.ObjectType),
			zap.String("object_id", item.ObjectID))
	}
	return stored, created, nil
}

func (s *tagService) RemoveTag(ctx context.Context, tagID uuid.UUID, objectType, objectID string) error {
	if !models.IsValidObjectType(objectType) {
		return fmt.Errorf("%w: unknown object type %q", apperrors.ErrInvalidInput, objectType)
	}
	return s.tags.Remove(ctx, tagID, objectType, objectID)
}

func (s *tagService) ListTaggedItems(ctx context.Context, tagID uuid.UUID) ([]*models.TaggedItem, error) {
	if _, err := s.tags.GetByID(ctx, tagID); err != nil {
		return nil, err
	}
	return s.tags.ListItems(ctx, tagID)
}

func (s *tagService) Suggestions() []string {
	out := make([]string, len(models.TagSuggestions))
	copy(out, models.TagSuggestions)
	return out
}

// validateObject checks the object type and that the id has the shape of
// that level and names a stored entity.
func (s *tagService) validateObject(ctx context.Context, objectType, objectID string) error {
	if !models.IsValidObjectType(objectType) {
		return fmt.Errorf("%w: unknown object type %q", apperrors.ErrInvalidInput, objectType)
	}
	if catalog.Level(objectID) != objectType {
		return fmt.Errorf("%w: %q is not a %s identifier", apperrors.ErrInvalidInput, objectID, objectType)
	}

	var err error
	switch objectType {
	case models.EntityDatabase:
		_, err = s.catalog.GetDatabase(ctx, objectID)
	case models.EntitySchema:
		_, err = s.catalog.GetSchema(ctx, objectID)
	case models.EntityTable:
		_, err = s.catalog.GetTable(ctx, objectID)
	case models.EntityColumn:
		_, err = s.catalog.GetColumn(ctx, objectID)
	}
	return err
}
