package snowflake

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

func testSnapshot() *models.Snapshot {
	now := time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC)
	return &models.Snapshot{
		ProcessID: "p1",
		Databases: []*models.Database{{DatabaseID: "SALES", Name: "SALES", CollectedAt: now}},
		Schemas:   []*models.Schema{{SchemaID: "SALES.PUBLIC", DatabaseID: "SALES", Name: "PUBLIC", CollectedAt: now}},
		Tables:    []*models.Table{{TableID: "SALES.PUBLIC.ORDERS", SchemaID: "SALES.PUBLIC", Name: "ORDERS", CollectedAt: now}},
		Columns: []*models.Column{
			{ColumnID: "SALES.PUBLIC.ORDERS.ORDER_ID", TableID: "SALES.PUBLIC.ORDERS", Name: "ORDER_ID", CollectedAt: now},
			{ColumnID: "SALES.PUBLIC.ORDERS.TOTAL", TableID: "SALES.PUBLIC.ORDERS", Name: "TOTAL", CollectedAt: now},
		},
	}
}

func TestMirror_WritesAllLevels(t *testing.T) {
	q := &fakeQuerier{}
	m := NewMirror(q, zaptest.NewLogger(t))

	written, err := m.Write(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, 5, written)

	var merges []string
	for _, e := range q.execs {
		if strings.HasPrefix(strings.TrimSpace(e), "MERGE INTO") {
			merges = append(merges, e)
		}
	}
	require.Len(t, merges, 5)
	assert.Contains(t, merges[0], "SNOWFLAKE_CATALOG.PUBLIC.CATALOG_DATABASES")
	assert.Contains(t, merges[4], "SNOWFLAKE_CATALOG.PUBLIC.CATALOG_COLUMNS")

	last := q.execArgs[len(q.execArgs)-1]
	assert.Equal(t, "SALES.PUBLIC.ORDERS.TOTAL", last[0])
	assert.Equal(t, "SALES.PUBLIC.ORDERS", last[1])
	assert.Contains(t, last[3], `"column_id":"SALES.PUBLIC.ORDERS.TOTAL"`)
}

func TestMirror_SkipsFailedRecords(t *testing.T) {
	q := &fakeQuerier{execErr: func(query string) error {
		if strings.Contains(query, "CATALOG_TABLES t") {
			return errors.New("merge failed")
		}
		return nil
	}}
	written, err := NewMirror(q, zaptest.NewLogger(t)).Write(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, 4, written)
}

func TestMirror_SetupFailure(t *testing.T) {
	q := &fakeQuerier{execErr: func(query string) error {
		if strings.HasPrefix(query, "CREATE DATABASE") {
			return errors.New("insufficient privileges")
		}
		return nil
	}}
	_, err := NewMirror(q, zaptest.NewLogger(t)).Write(context.Background(), testSnapshot())
	require.Error(t, err)
}

func TestSource_WriteSnapshotUsesSession(t *testing.T) {
	q := &fakeQuerier{}
	src := newTestSource(t, q, SourceOptions{})

	written, err := src.WriteSnapshot(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, 5, written)
}
