package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/config"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/logging"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/repositories"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/services/ledger"
)

// CollectionService runs metadata collection jobs.
type CollectionService interface {
	// StartCollection validates the request, records an initiated status and
	// runs the job in the background. It returns without waiting for the walk.
	StartCollection(ctx context.Context, req models.CollectionRequest) (*models.CollectionStarted, error)

	// RunCollection is the synchronous job body. The returned status is the
	// final ledger record.
	RunCollection(ctx context.Context, processID string, req models.CollectionRequest) (*models.ProcessStatus, error)

	// Status reads the ledger; unknown ids yield a not_found status.
	Status(ctx context.Context, processID string) (*models.ProcessStatus, error)

	// Shutdown cancels running jobs and waits for them to record a final status.
	Shutdown(ctx context.Context) error
}

// CollectionDeps groups the collaborators of a CollectionService.
type CollectionDeps struct {
	Sources  warehouse.SourceFactory
	Walker   SchemaWalker
	Repo     repositories.CatalogRepository
	Ledger   ledger.Ledger
	Exporter SnapshotExporter // optional
	Config   config.CollectionConfig
	Mirror   bool // write the snapshot back into the warehouse when the source supports it
}

type collectionService struct {
	deps   CollectionDeps
	logger *zap.Logger

	baseCtx    context.Context
	cancelAll  context.CancelFunc
	wg         sync.WaitGroup
	activeJobs sync.Map // processID -> context.CancelFunc
}

// NewCollectionService creates a CollectionService.
func NewCollectionService(deps CollectionDeps, logger *zap.Logger) CollectionService {
	ctx, cancel := context.WithCancel(context.Background())
	return &collectionService{
		deps:      deps,
		logger:    logger.Named("collection"),
		baseCtx:   ctx,
		cancelAll: cancel,
	}
}

// TrackingEndpoint is where clients poll a job's status.
func TrackingEndpoint(processID string) string {
	return "/api/collections/" + processID + "/status"
}

func (s *collectionService) StartCollection(ctx context.Context, req models.CollectionRequest) (*models.CollectionStarted, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	processID := uuid.NewString()
	if err := s.deps.Ledger.Update(ctx, processID, models.ProgressUpdate{
		Status:  models.StatusInitiated,
		Phase:   models.PhaseInitialization,
		Message: "Collection queued",
	}); err != nil {
		return nil, fmt.Errorf("failed to record collection start: %w", err)
	}

	jobCtx, cancel := context.WithCancel(s.baseCtx)
	s.activeJobs.Store(processID, cancel)
	s.wg.Add(1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Collection panicked",
					zap.String("process_id", processID),
					zap.Any("panic", r),
					zap.Stack("stack"))
				s.update(context.Background(), processID, models.ProgressUpdate{
					Status:  models.StatusError,
					Message: fmt.Sprintf("internal error: %v", r),
				})
			}
			s.activeJobs.Delete(processID)
			cancel()
			s.wg.Done()
		}()

		if _, err := s.RunCollection(jobCtx, processID, req); err != nil {
			s.logger.Error("Collection failed",
				zap.String("process_id", processID),
				zap.String("error", logging.SanitizeError(err)))
		}
	}()

	s.logger.Info("Collection started",
		zap.String("process_id", processID),
		zap.String("source_type", req.SourceType))

	return &models.CollectionStarted{
		Status:           models.StatusProcessing,
		ProcessID:        processID,
		TrackingEndpoint: TrackingEndpoint(processID),
	}, nil
}

func (s *collectionService) validate(req *models.CollectionRequest) error {
	if req.SourceType == "" {
		req.SourceType = models.SourceSnowflake
	}
	req.SourceType = strings.ToLower(req.SourceType)
	if !warehouse.IsRegistered(req.SourceType) {
		return fmt.Errorf("%w: %s", apperrors.ErrUnsupportedType, req.SourceType)
	}
	if req.SourceType == models.SourceSnowflake && (req.Account == "" || req.Username == "" || req.Password == "") {
		return fmt.Errorf("%w: account, username and password are required", apperrors.ErrInvalidInput)
	}
	for name, v := range map[string]*int{
		"max_tables_per_schema": req.MaxTablesPerSchema,
		"max_schemas_per_db":    req.MaxSchemasPerDB,
		"metadata_timeout":      req.MetadataTimeout,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must not be negative", apperrors.ErrInvalidInput, name)
		}
	}
	return nil
}

// walkOptions resolves per-request overrides against the configured defaults.
func (s *collectionService) walkOptions(req models.CollectionRequest, start time.Time) WalkOptions {
	cfg := s.deps.Config
	opts := WalkOptions{
		Database:           req.Database,
		Schema:             req.Schema,
		MaxTablesPerSchema: cfg.MaxTablesPerSchema,
		MaxSchemasPerDB:    cfg.MaxSchemasPerDatabase,
		CollectStatistics:  req.CollectStatistics,
		ParallelDatabases:  req.ParallelDatabases,
		Workers:            cfg.ParallelWorkers,
	}
	if req.MaxTablesPerSchema != nil {
		opts.MaxTablesPerSchema = *req.MaxTablesPerSchema
	}
	if req.MaxSchemasPerDB != nil {
		opts.MaxSchemasPerDB = *req.MaxSchemasPerDB
	}
	budget := cfg.MetadataTimeout()
	if req.MetadataTimeout != nil {
		budget = time.Duration(*req.MetadataTimeout) * time.Second
	}
	if budget > 0 {
		opts.Deadline = start.Add(budget)
	}
	return opts
}

func (s *collectionService) RunCollection(ctx context.Context, processID string, req models.CollectionRequest) (*models.ProcessStatus, error) {
	if err := s.validate(&req); err != nil {
		return s.fail(ctx, processID, models.PhaseInitialization, err)
	}
	logger := s.logger.With(zap.String("process_id", processID), zap.String("source_type", req.SourceType))
	start := time.Now()

	s.update(ctx, processID, models.ProgressUpdate{
		Status:   models.StatusProcessing,
		Phase:    models.PhaseConnection,
		Progress: 5,
		Message:  "Connecting to " + req.SourceType,
	})

	credentials := req.Credentials.ToMap()
	src, err := s.deps.Sources.Open(ctx, req.SourceType, credentials)
	if err != nil {
		return s.fail(ctx, processID, models.PhaseConnection, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("Failed to close source", zap.Error(err))
		}
	}()

	opts := s.walkOptions(req, start)
	opts.OpenSource = func(ctx context.Context) (warehouse.MetadataSource, error) {
		return s.deps.Sources.Open(ctx, req.SourceType, credentials)
	}
	opts.Progress = func(state WalkState, done, total int, stats models.CollectionStats) {
		phase := state.Phase()
		if phase == "" {
			return
		}
		progress := 10
		if total > 0 {
			progress = 10 + 70*done/total
		}
		s.update(ctx, processID, models.ProgressUpdate{
			Status:   models.StatusProcessing,
			Phase:    phase,
			Progress: progress,
			Message:  fmt.Sprintf("%d of %d databases collected, %d tables so far", done, total, stats.TableCount),
			Stats:    &stats,
		})
	}

	reconciler := NewReconciler(s.deps.Repo, logger)
	result, err := s.deps.Walker.Walk(ctx, src, opts, reconciler)
	if err != nil {
		return s.fail(ctx, processID, models.PhaseCollectingDatabases, err)
	}

	stats := result.Stats
	saved := reconciler.Stats()
	stats.PersistenceErrors = saved.PersistenceErrors + saved.Orphans
	s.update(ctx, processID, models.ProgressUpdate{
		Status:   models.StatusProcessing,
		Phase:    models.PhaseSaving,
		Progress: 85,
		Message:  fmt.Sprintf("Saved %d new and %d existing records", saved.Created, saved.Updated),
		Stats:    &stats,
	})

	// Past the budget no further warehouse or object-store work is issued.
	budgetSpent := result.State == StateTimedOut || ctx.Err() != nil
	if budgetSpent && (s.deps.Mirror || s.deps.Exporter != nil) {
		logger.Info("Time budget exhausted, skipping mirror and snapshot export")
	}

	if s.deps.Mirror && !budgetSpent {
		s.update(ctx, processID, models.ProgressUpdate{
			Status:   models.StatusProcessing,
			Phase:    models.PhaseSetupCatalog,
			Progress: 90,
			Message:  "Mirroring catalog into the warehouse",
			Stats:    &stats,
		})
		s.mirror(ctx, src, result.DatabaseIDs, logger)
	}

	exported := ""
	if !budgetSpent && s.deps.Exporter != nil && s.deps.Exporter.Enabled() {
		s.update(ctx, processID, models.ProgressUpdate{
			Status:   models.StatusProcessing,
			Phase:    models.PhaseStoring,
			Progress: 95,
			Message:  "Exporting snapshot",
			Stats:    &stats,
		})
		uri, err := s.deps.Exporter.Export(ctx, processID, result.DatabaseIDs)
		if err != nil {
			logger.Warn("Snapshot export failed", zap.String("error", logging.SanitizeError(err)))
		}
		exported = uri
	}

	final := models.ProgressUpdate{
		Status:   models.StatusCompleted,
		Phase:    models.PhaseCompleted,
		Progress: 100,
		Stats:    &stats,
	}
	switch {
	case result.State == StateTimedOut:
		final.Status = models.StatusTimeout
		final.Message = fmt.Sprintf("Time budget exceeded after %d tables; partial results were saved", stats.TableCount)
	case stats.HasErrors():
		final.Message = fmt.Sprintf("Completed with %d errors and %d persistence errors", stats.ErrorCount, stats.PersistenceErrors)
	default:
		final.Message = fmt.Sprintf("Collected %d databases, %d schemas, %d tables, %d columns",
			stats.DatabaseCount, stats.SchemaCount, stats.TableCount, stats.ColumnCount)
	}
	if exported != "" {
		final.Message += "; snapshot at " + exported
	}
	s.update(ctx, processID, final)

	logger.Info("Collection finished",
		zap.String("status", final.Status),
		zap.Int("databases", stats.DatabaseCount),
		zap.Int("tables", stats.TableCount),
		zap.Int("columns", stats.ColumnCount),
		zap.Int("errors", stats.ErrorCount),
		zap.Int("persistence_errors", stats.PersistenceErrors),
		zap.Duration("elapsed", time.Since(start)))

	return s.Status(ctx, processID)
}

// mirror is best effort; failures never change the job status.
func (s *collectionService) mirror(ctx context.Context, src warehouse.MetadataSource, databaseIDs []string, logger *zap.Logger) {
	writer, ok := src.(warehouse.SnapshotWriter)
	if !ok {
		logger.Debug("Source does not support mirroring")
		return
	}
	snapshot, err := s.deps.Repo.Snapshot(ctx, databaseIDs)
	if err != nil {
		logger.Warn("Failed to load snapshot for mirroring", zap.Error(err))
		return
	}
	written, err := writer.WriteSnapshot(ctx, snapshot)
	if err != nil {
		logger.Warn("Warehouse mirror incomplete",
			zap.Int("written", written),
			zap.String("error", logging.SanitizeError(err)))
		return
	}
	logger.Info("Warehouse mirror written", zap.Int("records", written))
}

// fail records an error status. Only connection failures and an unreadable
// database list end a job this way.
func (s *collectionService) fail(ctx context.Context, processID, phase string, err error) (*models.ProcessStatus, error) {
	msg := logging.SanitizeError(err)
	status := &models.ProcessStatus{
		ProcessID: processID,
		Status:    models.StatusError,
		Phase:     phase,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	}
	s.update(ctx, processID, models.ProgressUpdate{
		Status:  models.StatusError,
		Phase:   phase,
		Message: msg,
	})
	return status, err
}

// update writes to the ledger. A ledger failure is logged, never fatal.
// Writes use a context detached from cancellation so a cancelled job can
// still record its final status.
func (s *collectionService) update(ctx context.Context, processID string, u models.ProgressUpdate) {
	if err := s.deps.Ledger.Update(context.WithoutCancel(ctx), processID, u); err != nil {
		s.logger.Warn("Failed to update progress",
			zap.String("process_id", processID),
			zap.String("phase", u.Phase),
			zap.Error(err))
	}
}

func (s *collectionService) Status(ctx context.Context, processID string) (*models.ProcessStatus, error) {
	return s.deps.Ledger.Read(ctx, processID)
}

func (s *collectionService) Shutdown(ctx context.Context) error {
	s.cancelAll()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
