package catalog

import (
	"time"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// Environment defaults to "production" when a source does not report one.
const defaultEnvironment = "production"

// NormalizeDatabase shapes a raw database row into a record.
func NormalizeDatabase(raw warehouse.DatabaseInfo, info warehouse.SourceInfo, collectedAt time.Time) *models.Database {
	env := info.Environment
	if env == "" {
		env = defaultEnvironment
	}
	return &models.Database{
		DatabaseID:      DatabaseID(raw.Name),
		Name:            raw.Name,
		Owner:           raw.Owner,
		DatabaseType:    info.Engine,
		Region:          raw.Region,
		Version:         info.Version,
		Environment:     env,
		Comment:         raw.Comment,
		Tags:            map[string]string{},
		BusinessTerms:   []string{},
		SourceCreatedAt: raw.CreatedAt,
		SourceAlteredAt: raw.AlteredAt,
		CollectedAt:     collectedAt,
	}
}

// NormalizeSchema shapes a raw schema row into a record under databaseID.
func NormalizeSchema(databaseID string, raw warehouse.SchemaInfo, collectedAt time.Time) *models.Schema {
	return &models.Schema{
		SchemaID:        ChildID(databaseID, raw.Name),
		DatabaseID:      databaseID,
		Name:            raw.Name,
		Owner:           raw.Owner,
		Comment:         raw.Comment,
		Tags:            map[string]string{},
		BusinessTerms:   []string{},
		SourceCreatedAt: raw.CreatedAt,
		SourceAlteredAt: raw.AlteredAt,
		CollectedAt:     collectedAt,
	}
}

// NormalizeTable shapes a raw table row into a record under schemaID.
func NormalizeTable(schemaID string, raw warehouse.TableInfo, collectedAt time.Time) *models.Table {
	tags := make(map[string]string, len(raw.Tags))
	for k, v := range raw.Tags {
		tags[k] = v
	}
	tableType := raw.TableType
	if tableType == "" {
		tableType = "BASE TABLE"
	}
	sensitivity := raw.SensitivityLevel
	if sensitivity == "" {
		sensitivity = models.SensitivityNone
	}
	return &models.Table{
		TableID:          ChildID(schemaID, raw.Name),
		SchemaID:         schemaID,
		DatabaseID:       ParentID(schemaID),
		Name:             raw.Name,
		TableType:        tableType,
		Owner:            raw.Owner,
		RowCount:         raw.RowCount,
		ByteSize:         raw.Bytes,
		Comment:          raw.Comment,
		SensitivityLevel: sensitivity,
		RefreshFrequency: raw.RefreshFrequency,
		Keywords:         []string{},
		BusinessTerms:    []string{},
		Tags:             tags,
		LineageSources:   []string{},
		LineageTargets:   []string{},
		SourceCreatedAt:  raw.CreatedAt,
		SourceAlteredAt:  raw.AlteredAt,
		CollectedAt:      collectedAt,
	}
}

// NormalizeColumns shapes raw column rows into records under tableID.
// Source order and ordinal positions are kept as reported.
func NormalizeColumns(tableID string, raw []warehouse.ColumnInfo, collectedAt time.Time) []*models.Column {
	columns := make([]*models.Column, 0, len(raw))
	for _, rc := range raw {
		isPII, level := DetectPII(rc.Name)
		columns = append(columns, &models.Column{
			ColumnID:         ChildID(tableID, rc.Name),
			TableID:          tableID,
			Name:             rc.Name,
			OrdinalPosition:  rc.OrdinalPosition,
			DataType:         rc.DataType,
			IsNullable:       rc.IsNullable,
			DefaultValue:     rc.Default,
			MaxLength:        rc.MaxLength,
			NumericPrecision: rc.NumericPrecision,
			NumericScale:     rc.NumericScale,
			IsPrimaryKey:     rc.IsPrimaryKey,
			IsUnique:         rc.IsUnique,
			IsPII:            isPII,
			SensitivityLevel: level,
			Tags:             map[string]string{},
			Comment:          rc.Comment,
			CollectedAt:      collectedAt,
		})
	}
	return columns
}

// Normalize shapes one table's worth of raw rows into records, applying
// constraints and rolling column sensitivity up to the table.
func Normalize(
	info warehouse.SourceInfo,
	rawDB warehouse.DatabaseInfo,
	rawSchema warehouse.SchemaInfo,
	rawTable warehouse.TableInfo,
	rawColumns []warehouse.ColumnInfo,
	constraints []models.Constraint,
	collectedAt time.Time,
) (*models.Database, *models.Schema, *models.Table, []*models.Column) {
	db := NormalizeDatabase(rawDB, info, collectedAt)
	schema := NormalizeSchema(db.DatabaseID, rawSchema, collectedAt)
	table := NormalizeTable(schema.SchemaID, rawTable, collectedAt)
	columns := NormalizeColumns(table.TableID, rawColumns, collectedAt)
	ApplyConstraints(columns, constraints)
	RollUpSensitivity(table, columns)
	return db, schema, table, columns
}

// RollUpSensitivity raises a table's sensitivity to that of its most
// sensitive column. Tag-derived levels are never lowered.
func RollUpSensitivity(table *models.Table, columns []*models.Column) {
	level := table.SensitivityLevel
	for _, c := range columns {
		level = MaxSensitivity(level, c.SensitivityLevel)
	}
	table.SensitivityLevel = level
}
