package llm

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WorkerPool bounds how many provider calls run at once.
type WorkerPool struct {
	maxConcurrent int
	logger        *zap.Logger
}

// DefaultMaxConcurrent applies when a pool is created with a non-positive limit.
const DefaultMaxConcurrent = 4

// NewWorkerPool creates a pool running at most maxConcurrent items at a time.
func NewWorkerPool(maxConcurrent int, logger *zap.Logger) *WorkerPool {
	if maxConcurrent < 1 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &WorkerPool{
		maxConcurrent: maxConcurrent,
		logger:        logger.Named("enrichment-pool"),
	}
}

// WorkItem is one unit of work.
type WorkItem[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// WorkResult is the outcome of one WorkItem.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process runs every item and returns results in submission order.
// A failing item does not stop the others. Items still waiting for a slot
// when ctx ends report ctx.Err().
func Process[T any](ctx context.Context, pool *WorkerPool, items []WorkItem[T], onProgress func(completed, total int)) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	sem := make(chan struct{}, pool.maxConcurrent)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var res WorkResult[T]
			select {
			case sem <- struct{}{}:
				r, err := item.Execute(ctx)
				<-sem
				res = WorkResult[T]{ID: item.ID, Result: r, Err: err}
			case <-ctx.Done():
				res = WorkResult[T]{ID: item.ID, Err: ctx.Err()}
			}
			results[i] = res

			if onProgress != nil {
				mu.Lock()
				completed++
				onProgress(completed, len(items))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	pool.logger.Debug("Work items processed", zap.Int("count", len(items)))
	return results
}
