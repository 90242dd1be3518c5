package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/config"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

type memoryObjectStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
	err          error
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (s *memoryObjectStore) Put(ctx context.Context, bucket, key, contentType string, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.objects[bucket+"/"+key] = data
	s.contentTypes[bucket+"/"+key] = contentType
	return nil
}

func newTestExporter(t *testing.T, repo *fakeCatalogRepo, store ObjectStore, cfg config.ExportConfig) *snapshotExporter {
	e := NewSnapshotExporter(repo, store, cfg, zaptest.NewLogger(t)).(*snapshotExporter)
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestSnapshotExporter_JSON(t *testing.T) {
	repo := newFakeCatalogRepo()
	repo.seed("SALES", "PUBLIC", "ORDERS", "ID", "TOTAL")
	repo.seed("HR", "PUBLIC", "EMPLOYEES", "ID")
	store := newMemoryObjectStore()

	e := newTestExporter(t, repo, store, config.ExportConfig{S3Bucket: "catalog", S3Prefix: "snapshots", Format: "json"})
	uri, err := e.Export(context.Background(), "pid-1", []string{"SALES"})
	require.NoError(t, err)
	assert.Equal(t, "s3://catalog/snapshots/pid-1.json", uri)

	data := store.objects["catalog/snapshots/pid-1.json"]
	require.NotEmpty(t, data)
	assert.Equal(t, "application/json", store.contentTypes["catalog/snapshots/pid-1.json"])

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "pid-1", snap.ProcessID)
	assert.Len(t, snap.Databases, 1)
	assert.Len(t, snap.Tables, 1)
	assert.Len(t, snap.Columns, 2)
}

func TestSnapshotExporter_YAMLUsesJSONFieldNames(t *testing.T) {
	repo := newFakeCatalogRepo()
	repo.seed("SALES", "PUBLIC", "ORDERS", "ID")
	store := newMemoryObjectStore()

	e := newTestExporter(t, repo, store, config.ExportConfig{S3Bucket: "catalog", Format: "yaml"})
	uri, err := e.Export(context.Background(), "pid-2", []string{"SALES"})
	require.NoError(t, err)
	assert.Equal(t, "s3://catalog/pid-2.yaml", uri)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(store.objects["catalog/pid-2.yaml"], &doc))
	assert.Equal(t, "pid-2", doc["process_id"])

	tables, ok := doc["tables"].([]any)
	require.True(t, ok)
	require.Len(t, tables, 1)
	table := tables[0].(map[string]any)
	assert.Equal(t, "SALES.PUBLIC.ORDERS", table["table_id"])
}

func TestSnapshotExporter_Disabled(t *testing.T) {
	repo := newFakeCatalogRepo()

	e := newTestExporter(t, repo, nil, config.ExportConfig{S3Bucket: "catalog"})
	assert.False(t, e.Enabled())
	uri, err := e.Export(context.Background(), "pid", nil)
	require.NoError(t, err)
	assert.Empty(t, uri)

	e = newTestExporter(t, repo, newMemoryObjectStore(), config.ExportConfig{})
	assert.False(t, e.Enabled())
}

func TestSnapshotExporter_Errors(t *testing.T) {
	repo := newFakeCatalogRepo()
	repo.seed("SALES", "PUBLIC", "ORDERS", "ID")

	store := newMemoryObjectStore()
	store.err = errors.New("access denied")
	e := newTestExporter(t, repo, store, config.ExportConfig{S3Bucket: "catalog"})
	_, err := e.Export(context.Background(), "pid", []string{"SALES"})
	assert.ErrorContains(t, err, "access denied")

	e = newTestExporter(t, repo, newMemoryObjectStore(), config.ExportConfig{S3Bucket: "catalog", Format: "xml"})
	_, err = e.Export(context.Background(), "pid", []string{"SALES"})
	assert.ErrorContains(t, err, "unsupported export format")
}
