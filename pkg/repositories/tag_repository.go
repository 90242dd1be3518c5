package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/database"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// TagRepository provides data access for user-managed tags and their assignments.
type TagRepository interface {
	Create(ctx context.Context, tag *models.Tag) error
	GetByID(ctx context.Context, tagID uuid.UUID) (*models.Tag, error)
	List(ctx context.Context) ([]*models.Tag, error)
	Search(ctx context.Context, text string) ([]*models.Tag, error)
	Delete(ctx context.Context, tagID uuid.UUID) error

	// Assign is idempotent: assigning an existing pair returns the stored item and false.
	Assign(ctx context.Context, item *models.TaggedItem) (*models.TaggedItem, bool, error)
	Remove(ctx context.Context, tagID uuid.UUID, objectType, objectID string) error
	ListItems(ctx context.Context, tagID uuid.UUID) ([]*models.TaggedItem, error)
	ListForObject(ctx context.Context, objectType, objectID string) ([]*models.TaggedItem, error)
}

type tagRepository struct {
	db *database.DB
}

// NewTagRepository creates a new TagRepository.
func NewTagRepository(db *database.DB) TagRepository {
	return &tagRepository{db: db}
}

var _ TagRepository = (*tagRepository)(nil)

const pgUniqueViolation = "23505"

func (r *tagRepository) Create(ctx context.Context, tag *models.Tag) error {
	if tag.ID == uuid.Nil {
		tag.ID = uuid.New()
	}
	if tag.Color == "" {
		tag.Color = models.DefaultTagColor
	}
	now := time.Now()

	err := r.db.QueryRow(ctx, `
		INSERT INTO catalog_tags (id, name, color, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		tag.ID, tag.Name, tag.Color, tag.Description, now, now,
	).Scan(&tag.CreatedAt, &tag.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("tag %q already exists: %w", tag.Name, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

func (r *tagRepository) GetByID(ctx context.Context, tagID uuid.UUID) (*models.Tag, error) {
	tag, err := scanTag(r.db.QueryRow(ctx, `
		SELECT id, name, color, description, created_at, updated_at
		FROM catalog_tags WHERE id = $1`, tagID))
	if err != nil {
		return nil, notFound(err, "tag", tagID.String())
	}
	return tag, nil
}

func (r *tagRepository) List(ctx context.Context) ([]*models.Tag, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, color, description, created_at, updated_at
		FROM catalog_tags ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return collect(rows, scanTag)
}

func (r *tagRepository) Search(ctx context.Context, text string) ([]*models.Tag, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, color, description, created_at, updated_at
		FROM catalog_tags WHERE name ILIKE $1 OR description ILIKE $1
		ORDER BY lower(name)`, "%"+escapeLike(strings.TrimSpace(text))+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search tags: %w", err)
	}
	return collect(rows, scanTag)
}

func (r *tagRepository) Delete(ctx context.Context, tagID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM catalog_tags WHERE id = $1`, tagID)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *tagRepository) Assign(ctx context.Context, item *models.TaggedItem) (*models.TaggedItem, bool, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	stored, err := scanTaggedItem(r.db.QueryRow(ctx, `
		INSERT INTO catalog_tagged_items (id, tag_id, object_type, object_id, tagged_by, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (tag_id, object_type, object_id) DO NOTHING
		RETURNING id, tag_id, '', object_type, object_id, tagged_by, created_at`,
		item.ID, item.TagID, item.ObjectType, item.ObjectID, item.TaggedBy))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, false, fmt.Errorf("tag %s: %w", item.TagID, apperrors.ErrNotFound)
		}
		return nil, false, fmt.Errorf("failed to assign tag: %w", err)
	}

	// Already assigned.
	stored, err = scanTaggedItem(r.db.QueryRow(ctx, `
		SELECT i.id, i.tag_id, t.name, i.object_type, i.object_id, i.tagged_by, i.created_at
		FROM catalog_tagged_items i JOIN catalog_tags t ON t.id = i.tag_id
		WHERE i.tag_id = $1 AND i.object_type = $2 AND i.object_id = $3`,
		item.TagID, item.ObjectType, item.ObjectID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing assignment: %w", err)
	}
	return stored, false, nil
}

func (r *tagRepository) Remove(ctx context.Context, tagID uuid.UUID, objectType, objectID string) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM catalog_tagged_items WHERE tag_id = $1 AND object_type = $2 AND object_id = $3`,
		tagID, objectType, objectID)
	if err != nil {
		return fmt.Errorf("failed to remove tag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *tagRepository) ListItems(ctx context.Context, tagID uuid.UUID) ([]*models.TaggedItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT i.id, i.tag_id, t.name, i.object_type, i.object_id, i.tagged_by, i.created_at
		FROM catalog_tagged_items i JOIN catalog_tags t ON t.id = i.tag_id
		WHERE i.tag_id = $1 ORDER BY i.object_type, i.object_id`, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tagged items: %w", err)
	}
	return collect(rows, scanTaggedItem)
}

func (r *tagRepository) ListForObject(ctx context.Context, objectType, objectID string) ([]*models.TaggedItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT i.id, i.tag_id, t.name, i.object_type, i.object_id, i.tagged_by, i.created_at
		FROM catalog_tagged_items i JOIN catalog_tags t ON t.id = i.tag_id
		WHERE i.object_type = $1 AND i.object_id = $2 ORDER BY lower(t.name)`, objectType, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags for object: %w", err)
	}
	return collect(rows, scanTaggedItem)
}

func scanTag(row pgx.Row) (*models.Tag, error) {
	var t models.Tag
	if err := row.Scan(&t.ID, &t.Name, &t.Color, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTaggedItem(row pgx.Row) (*models.TaggedItem, error) {
	var i models.TaggedItem
	if err := row.Scan(&i.ID, &i.TagID, &i.TagName, &i.ObjectType, &i.ObjectID, &i.TaggedBy, &i.CreatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}
