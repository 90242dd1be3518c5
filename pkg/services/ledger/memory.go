package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// MemoryLedger keeps records in process. It is used when no Redis host is
// configured and by the one-shot collect command.
type MemoryLedger struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]memoryRecord
}

type memoryRecord struct {
	status    models.ProcessStatus
	expiresAt time.Time
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLedger{ttl: ttl, now: time.Now, records: make(map[string]memoryRecord)}
}

var _ Ledger = (*MemoryLedger)(nil)

func (l *MemoryLedger) Update(_ context.Context, processID string, update models.ProgressUpdate) error {
	now := l.now()
	status := toStatus(processID, update, now)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[processID] = memoryRecord{status: *status, expiresAt: now.Add(l.ttl)}
	l.sweepLocked(now)
	return nil
}

func (l *MemoryLedger) Read(_ context.Context, processID string) (*models.ProcessStatus, error) {
	l.mu.RLock()
	rec, ok := l.records[processID]
	l.mu.RUnlock()

	if !ok || !l.now().Before(rec.expiresAt) {
		return models.NotFoundStatus(processID), nil
	}
	status := rec.status
	return &status, nil
}

// sweepLocked drops expired records. Caller holds mu.
func (l *MemoryLedger) sweepLocked(now time.Time) {
	for id, rec := range l.records {
		if !now.Before(rec.expiresAt) {
			delete(l.records, id)
		}
	}
}
