package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/llm"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/logging"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/repositories"
)

// Batch size bounds for one enrichment request.
const (
	DefaultEnrichmentBatchSize = 10
	MaxEnrichmentBatchSize     = 100
)

// listAll is the page used to load every child of one entity.
var listAll = models.Page{Limit: 1000}

// EnrichmentService fills empty descriptions, keywords, tags and glossary
// terms from an enrichment provider.
type EnrichmentService interface {
	// EnrichBatch synchronously processes up to BatchSize tables and
	// databases lacking text metadata. A provider failure only affects its
	// own item.
	EnrichBatch(ctx context.Context, req models.EnrichmentRequest) (*models.EnrichmentReport, error)
}

type enrichmentService struct {
	repo     repositories.CatalogRepository
	provider *llm.DegradingProvider
	pool     *llm.WorkerPool
	logger   *zap.Logger
}

// NewEnrichmentService creates an EnrichmentService. The provider is wrapped
// so that its failures degrade to empty results.
func NewEnrichmentService(repo repositories.CatalogRepository, provider llm.EnrichmentProvider, maxConcurrent int, logger *zap.Logger) EnrichmentService {
	logger = logger.Named("enrichment")
	return &enrichmentService{
		repo:     repo,
		provider: llm.NewDegradingProvider(provider, logger),
		pool:     llm.NewWorkerPool(maxConcurrent, logger),
		logger:   logger,
	}
}

// enrichTarget is one entity queued for enrichment.
type enrichTarget struct {
	entityType string
	entityID   string
	input      models.EnrichmentInput
}

func (s *enrichmentService) EnrichBatch(ctx context.Context, req models.EnrichmentRequest) (*models.EnrichmentReport, error) {
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultEnrichmentBatchSize
	}
	if batchSize > MaxEnrichmentBatchSize {
		return nil, fmt.Errorf("%w: batch_size must be at most %d", apperrors.ErrInvalidInput, MaxEnrichmentBatchSize)
	}

	report := &models.EnrichmentReport{
		Items:     []models.EnrichmentItemResult{},
		StartedAt: time.Now().UTC(),
	}
	scope := req.ScopeDatabaseID()
	if scope != "" {
		if _, err := s.repo.GetDatabase(ctx, scope); err != nil {
			return nil, fmt.Errorf("database %q: %w", scope, err)
		}
	}

	targets, failed, err := s.loadTargets(ctx, scope, batchSize, req.Force)
	if err != nil {
		return nil, err
	}
	for _, item := range failed {
		report.Add(item)
	}

	items := make([]llm.WorkItem[models.EnrichmentItemResult], len(targets))
	for i, t := range targets {
		items[i] = llm.WorkItem[models.EnrichmentItemResult]{
			ID: t.entityID,
			Execute: func(ctx context.Context) (models.EnrichmentItemResult, error) {
				return s.enrichOne(ctx, t, req.Force), nil
			},
		}
	}

	for i, res := range llm.Process(ctx, s.pool, items, nil) {
		item := res.Result
		if res.Err != nil {
			item = failedItem(targets[i].entityType, res.ID, res.Err)
		}
		report.Add(item)
	}
	report.FinishedAt = time.Now().UTC()
	s.markAttempted(context.WithoutCancel(ctx), report.Items, report.FinishedAt)

	s.logger.Info("Enrichment batch finished",
		zap.String("database_id", scope),
		zap.Int("processed", report.ProcessedCount),
		zap.Int("applied", report.SuccessCount),
		zap.Int("empty", report.EmptyCount),
		zap.Int("errors", report.ErrorCount),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// candidate is an entity awaiting enrichment, before its inputs are loaded.
type candidate struct {
	entityType string
	table      *models.Table
	database   *models.Database
	attempted  *time.Time
}

// loadTargets fills the batch with the least recently attempted candidates,
// never-attempted ones first and tables ahead of databases on ties. Entities
// whose inputs cannot be loaded are returned as failed items.
func (s *enrichmentService) loadTargets(ctx context.Context, scope string, batchSize int, force bool) ([]enrichTarget, []models.EnrichmentItemResult, error) {
	tables, err := s.repo.ListTablesNeedingEnrichment(ctx, scope, batchSize, force)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list tables needing enrichment: %w", err)
	}
	dbs, err := s.repo.ListDatabasesNeedingEnrichment(ctx, scope, batchSize, force)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list databases needing enrichment: %w", err)
	}

	candidates := make([]candidate, 0, len(tables)+len(dbs))
	for _, t := range tables {
		candidates = append(candidates, candidate{entityType: models.EntityTable, table: t, attempted: t.LastEnrichmentAttempt})
	}
	for _, db := range dbs {
		candidates = append(candidates, candidate{entityType: models.EntityDatabase, database: db, attempted: db.LastEnrichmentAttempt})
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return compareAttempts(a.attempted, b.attempted)
	})
	if len(candidates) > batchSize {
		candidates = candidates[:batchSize]
	}

	var (
		targets []enrichTarget
		failed  []models.EnrichmentItemResult
	)
	for _, c := range candidates {
		switch c.entityType {
		case models.EntityTable:
			cols, err := s.repo.ListColumns(ctx, c.table.TableID, listAll)
			if err != nil {
				failed = append(failed, failedItem(models.EntityTable, c.table.TableID, err))
				continue
			}
			targets = append(targets, enrichTarget{
				entityType: models.EntityTable,
				entityID:   c.table.TableID,
				input:      tableInput(c.table, cols),
			})
		default:
			schemas, err := s.repo.ListSchemas(ctx, c.database.DatabaseID, listAll)
			if err != nil {
				failed = append(failed, failedItem(models.EntityDatabase, c.database.DatabaseID, err))
				continue
			}
			targets = append(targets, enrichTarget{
				entityType: models.EntityDatabase,
				entityID:   c.database.DatabaseID,
				input:      databaseInput(c.database, schemas),
			})
		}
	}
	return targets, failed, nil
}

// compareAttempts orders never-attempted first, then oldest attempt first.
func compareAttempts(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

// markAttempted stamps every item of the batch, applied or not, so the next
// batch moves on to other candidates.
func (s *enrichmentService) markAttempted(ctx context.Context, items []models.EnrichmentItemResult, at time.Time) {
	ids := map[string][]string{}
	for _, item := range items {
		ids[item.EntityType] = append(ids[item.EntityType], item.EntityID)
	}
	for _, entityType := range []string{models.EntityTable, models.EntityDatabase} {
		if err := s.repo.MarkEnrichmentAttempted(ctx, entityType, ids[entityType], at); err != nil {
			s.logger.Warn("Failed to record enrichment attempts",
				zap.String("entity_type", entityType),
				zap.Int("count", len(ids[entityType])),
				zap.Error(err))
		}
	}
}

func (s *enrichmentService) enrichOne(ctx context.Context, t enrichTarget, force bool) models.EnrichmentItemResult {
	item := models.EnrichmentItemResult{EntityType: t.entityType, EntityID: t.entityID}

	result, err := s.provider.TryEnrich(ctx, t.input)
	if err != nil {
		s.logger.Warn("Enrichment degraded to empty result",
			zap.String("entity_id", t.entityID),
			zap.String("error", logging.SanitizeError(err)))
		item.Status = models.EnrichmentFailed
		item.Error = logging.SanitizeError(err)
		return item
	}
	if result.IsEmpty() {
		item.Status = models.EnrichmentEmpty
		return item
	}

	var changed bool
	switch t.entityType {
	case models.EntityDatabase:
		changed, err = s.repo.ApplyDatabaseEnrichment(ctx, t.entityID, result, force)
	default:
		changed, err = s.repo.ApplyTableEnrichment(ctx, t.entityID, result, force)
	}
	if err != nil {
		s.logger.Error("Failed to store enrichment",
			zap.Error(&apperrors.PersistenceError{Entity: t.entityType, ID: t.entityID, Cause: err}))
		item.Status = models.EnrichmentFailed
		item.Error = err.Error()
		return item
	}
	if !changed {
		item.Status = models.EnrichmentEmpty
		return item
	}
	item.Status = models.EnrichmentApplied
	return item
}

func tableInput(t *models.Table, cols []*models.Column) models.EnrichmentInput {
	input := models.EnrichmentInput{
		EntityType:  models.EntityTable,
		Name:        t.Name,
		Description: firstNonEmpty(t.Description, t.Comment),
		Columns:     make([]models.EnrichmentColumn, 0, len(cols)),
	}
	for _, c := range cols {
		input.Columns = append(input.Columns, models.EnrichmentColumn{
			Name:        c.Name,
			DataType:    c.DataType,
			Description: firstNonEmpty(c.Description, c.Comment),
		})
	}
	return input
}

func databaseInput(db *models.Database, schemas []*models.Schema) models.EnrichmentInput {
	input := models.EnrichmentInput{
		EntityType:  models.EntityDatabase,
		Name:        db.Name,
		Description: firstNonEmpty(db.Description, db.Comment),
		Columns:     make([]models.EnrichmentColumn, 0, len(schemas)),
	}
	for _, s := range schemas {
		input.Columns = append(input.Columns, models.EnrichmentColumn{
			Name:        s.Name,
			Description: firstNonEmpty(s.Description, s.Comment),
		})
	}
	return input
}

func failedItem(entityType, id string, err error) models.EnrichmentItemResult {
	return models.EnrichmentItemResult{
		EntityType: entityType,
		EntityID:   id,
		Status:     models.EnrichmentFailed,
		Error:      err.Error(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
