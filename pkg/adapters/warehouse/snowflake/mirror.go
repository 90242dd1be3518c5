package snowflake

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// MirrorDatabase holds the in-warehouse copy of the catalog. It is never
// itself collected.
const MirrorDatabase = "SNOWFLAKE_CATALOG"

var mirrorTables = []string{"CATALOG_DATABASES", "CATALOG_SCHEMAS", "CATALOG_TABLES", "CATALOG_COLUMNS"}

// Mirror writes snapshots into SNOWFLAKE_CATALOG.PUBLIC. The external
// store stays authoritative; the mirror is a convenience copy for SQL users.
type Mirror struct {
	exec   Execer
	logger *zap.Logger
}

// NewMirror creates a mirror writer over an open session.
func NewMirror(exec Execer, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{exec: exec, logger: logger.Named("mirror")}
}

// Setup creates the mirror database, schema and tables if missing.
func (m *Mirror) Setup(ctx context.Context) error {
	stmts := []string{
		"CREATE DATABASE IF NOT EXISTS " + MirrorDatabase,
		"CREATE SCHEMA IF NOT EXISTS " + MirrorDatabase + ".PUBLIC",
	}
	for _, t := range mirrorTables {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.PUBLIC.%s (
			ID VARCHAR PRIMARY KEY,
			PARENT_ID VARCHAR,
			NAME VARCHAR,
			PAYLOAD VARIANT,
			COLLECTED_AT TIMESTAMP_NTZ
		)`, MirrorDatabase, t))
	}
	for _, stmt := range stmts {
		if _, err := m.exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("set up catalog mirror: %w", err)
		}
	}
	return nil
}

type mirrorRecord struct {
	table       string
	id          string
	parentID    string
	name        string
	payload     any
	collectedAt time.Time
}

// Write merges every record of snapshot into the mirror tables. Records
// that fail are logged and skipped. Returns the number written.
func (m *Mirror) Write(ctx context.Context, snapshot *models.Snapshot) (int, error) {
	if err := m.Setup(ctx); err != nil {
		return 0, err
	}

	var records []mirrorRecord
	for _, d := range snapshot.Databases {
		records = append(records, mirrorRecord{mirrorTables[0], d.DatabaseID, "", d.Name, d, d.CollectedAt})
	}
	for _, s := range snapshot.Schemas {
		records = append(records, mirrorRecord{mirrorTables[1], s.SchemaID, s.DatabaseID, s.Name, s, s.CollectedAt})
	}
	for _, t := range snapshot.Tables {
		records = append(records, mirrorRecord{mirrorTables[2], t.TableID, t.SchemaID, t.Name, t, t.CollectedAt})
	}
	for _, c := range snapshot.Columns {
		records = append(records, mirrorRecord{mirrorTables[3], c.ColumnID, c.TableID, c.Name, c, c.CollectedAt})
	}

	written := 0
	for _, r := range records {
		if err := m.merge(ctx, r); err != nil {
			m.logger.Warn("Failed to mirror record", zap.String("id", r.id), zap.Error(err))
			continue
		}
		written++
	}
	m.logger.Info("Catalog mirror updated", zap.Int("written", written), zap.Int("total", len(records)))
	return written, nil
}

func (m *Mirror) merge(ctx context.Context, r mirrorRecord) error {
	payload, err := json.Marshal(r.payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	stmt := fmt.Sprintf(`MERGE INTO %s.PUBLIC.%s t
		USING (SELECT ? AS ID, ? AS PARENT_ID, ? AS NAME, PARSE_JSON(?) AS PAYLOAD, ?::TIMESTAMP_NTZ AS COLLECTED_AT) s
		ON t.ID = s.ID
		WHEN MATCHED THEN UPDATE SET PARENT_ID = s.PARENT_ID, NAME = s.NAME, PAYLOAD = s.PAYLOAD, COLLECTED_AT = s.COLLECTED_AT
		WHEN NOT MATCHED THEN INSERT (ID, PARENT_ID, NAME, PAYLOAD, COLLECTED_AT)
			VALUES (s.ID, s.PARENT_ID, s.NAME, s.PAYLOAD, s.COLLECTED_AT)`, MirrorDatabase, r.table)
	_, err = m.exec.Exec(ctx, stmt, r.id, r.parentID, r.name, string(payload), r.collectedAt.UTC().Format("2006-01-02 15:04:05.000000"))
	return err
}

// WriteSnapshot mirrors snapshot through the source's own session.
func (s *Source) WriteSnapshot(ctx context.Context, snapshot *models.Snapshot) (int, error) {
	exec, ok := s.q.(Execer)
	if !ok {
		return 0, fmt.Errorf("session does not support writes")
	}
	return NewMirror(exec, s.logger).Write(ctx, snapshot)
}

var _ warehouse.SnapshotWriter = (*Source)(nil)
