// Package ledger records the progress of background collection jobs.
// Records expire after a fixed TTL; reading an unknown or expired
// process yields a not_found status rather than an error.
package ledger

import (
	"context"
	"time"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// Ledger is a TTL key-value store of process status records.
// Updates replace the whole record; the last write wins.
type Ledger interface {
	Update(ctx context.Context, processID string, update models.ProgressUpdate) error
	Read(ctx context.Context, processID string) (*models.ProcessStatus, error)
}

// DefaultTTL applies when a ledger is constructed with a non-positive TTL.
const DefaultTTL = time.Hour

func keyFor(processID string) string {
	return "process_status_" + processID
}

// toStatus stamps the update and converts it into the stored record.
func toStatus(processID string, update models.ProgressUpdate, now time.Time) *models.ProcessStatus {
	ts := update.Timestamp
	if ts.IsZero() {
		ts = now
	}
	var stats *models.CollectionStats
	if update.Stats != nil {
		s := *update.Stats
		stats = &s
	}
	return &models.ProcessStatus{
		ProcessID: processID,
		Status:    update.Status,
		Phase:     update.Phase,
		Progress:  clampProgress(update.Progress),
		Message:   update.Message,
		Stats:     stats,
		Timestamp: ts.UTC(),
	}
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
