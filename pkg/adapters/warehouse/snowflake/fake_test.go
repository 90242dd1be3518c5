package snowflake

import (
	"context"
	"strings"
	"sync"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
)

type fakeResponse struct {
	match string
	rows  []map[string]any
	err   error
}

// fakeQuerier answers queries by the first registered substring match.
// Unmatched queries return an empty result.
type fakeQuerier struct {
	mu        sync.Mutex
	responses []fakeResponse
	queries   []string
	execs     []string
	execArgs  [][]any
	execErr   func(query string) error
}

func (f *fakeQuerier) on(match string, rows ...map[string]any) *fakeQuerier {
	f.responses = append(f.responses, fakeResponse{match: match, rows: rows})
	return f
}

func (f *fakeQuerier) fail(match string, err error) *fakeQuerier {
	f.responses = append(f.responses, fakeResponse{match: match, err: err})
	return f
}

func (f *fakeQuerier) Query(_ context.Context, query string, _ ...any) (*warehouse.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	for _, r := range f.responses {
		if strings.Contains(query, r.match) {
			if r.err != nil {
				return nil, r.err
			}
			return &warehouse.QueryResult{Rows: r.rows}, nil
		}
	}
	return &warehouse.QueryResult{}, nil
}

func (f *fakeQuerier) Exec(_ context.Context, query string, args ...any) (*warehouse.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, query)
	f.execArgs = append(f.execArgs, args)
	if f.execErr != nil {
		if err := f.execErr(query); err != nil {
			return nil, err
		}
	}
	return &warehouse.QueryResult{RowsAffected: 1}, nil
}

func (f *fakeQuerier) ran(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.queries {
		if strings.Contains(q, substr) {
			return true
		}
	}
	return false
}
