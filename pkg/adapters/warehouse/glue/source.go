package glue

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/catalog"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// API is the subset of the Glue client used for collection.
type API interface {
	GetDatabases(ctx context.Context, params *glue.GetDatabasesInput, optFns ...func(*glue.Options)) (*glue.GetDatabasesOutput, error)
	GetTables(ctx context.Context, params *glue.GetTablesInput, optFns ...func(*glue.Options)) (*glue.GetTablesOutput, error)
	GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
	GetColumnStatisticsForTable(ctx context.Context, params *glue.GetColumnStatisticsForTableInput, optFns ...func(*glue.Options)) (*glue.GetColumnStatisticsForTableOutput, error)
}

// maxStatsColumns is the Glue limit on column names per statistics request.
const maxStatsColumns = 100

// Source implements warehouse.MetadataSource over the Glue Data Catalog.
// The catalog is the database level, Glue databases are schemas and Glue
// tables are tables.
type Source struct {
	client API
	cfg    *Config
	logger *zap.Logger

	// Tables from the last ListTables call, keyed by schema id, so column
	// listing does not need a GetTable round trip per table.
	tables map[string]map[string]gluetypes.Table
}

// NewSource wraps a Glue client.
func NewSource(client API, cfg *Config, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		client: client,
		cfg:    cfg,
		logger: logger.Named("glue"),
		tables: map[string]map[string]gluetypes.Table{},
	}
}

// OpenSource loads AWS credentials for the configured profile and region.
func OpenSource(ctx context.Context, cfg *Config, logger *zap.Logger) (*Source, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = awsCfg.Region
	}
	return NewSource(glue.NewFromConfig(awsCfg), cfg, logger), nil
}

func (s *Source) Info() warehouse.SourceInfo {
	return warehouse.SourceInfo{Engine: "AWS Glue"}
}

func (s *Source) Close() error { return nil }

func (s *Source) catalogID() *string {
	if s.cfg.CatalogID == "" {
		return nil
	}
	return aws.String(s.cfg.CatalogID)
}

// ListDatabases returns the catalog itself as the single database.
func (s *Source) ListDatabases(_ context.Context) ([]warehouse.DatabaseInfo, error) {
	return []warehouse.DatabaseInfo{{
		Name:    s.cfg.CatalogName(),
		Region:  s.cfg.Region,
		Comment: "AWS Glue Data Catalog",
	}}, nil
}

// ListSchemas pages through GetDatabases.
func (s *Source) ListSchemas(ctx context.Context, database string) ([]warehouse.SchemaInfo, error) {
	var schemas []warehouse.SchemaInfo
	p := glue.NewGetDatabasesPaginator(s.client, &glue.GetDatabasesInput{CatalogId: s.catalogID()})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting Glue databases: %w", err)
		}
		for _, db := range page.DatabaseList {
			name := aws.ToString(db.Name)
			if s.cfg.GlueDatabase != "" && !strings.EqualFold(name, s.cfg.GlueDatabase) {
				continue
			}
			schemas = append(schemas, warehouse.SchemaInfo{
				Name:      name,
				Comment:   aws.ToString(db.Description),
				CreatedAt: db.CreateTime,
			})
		}
	}
	return schemas, nil
}

// ListTables pages through GetTables. Row counts and sizes come from the
// statistics crawlers leave in table parameters.
func (s *Source) ListTables(ctx context.Context, database, schema string) ([]warehouse.TableInfo, error) {
	byName := map[string]gluetypes.Table{}
	var tables []warehouse.TableInfo

	p := glue.NewGetTablesPaginator(s.client, &glue.GetTablesInput{
		CatalogId:    s.catalogID(),
		DatabaseName: aws.String(schema),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting Glue tables for %s: %w", schema, err)
		}
		for _, t := range page.TableList {
			name := aws.ToString(t.Name)
			byName[name] = t
			tables = append(tables, warehouse.TableInfo{
				Name:      name,
				TableType: tableType(aws.ToString(t.TableType)),
				Owner:     aws.ToString(t.Owner),
				Comment:   aws.ToString(t.Description),
				RowCount:  paramInt(t.Parameters, "numRows", "recordCount"),
				Bytes:     paramInt(t.Parameters, "totalSize", "sizeKey"),
				CreatedAt: t.CreateTime,
				AlteredAt: t.UpdateTime,
				Tags:      classification(t.Parameters),
			})
		}
	}
	s.tables[catalog.SchemaID(database, schema)] = byName
	return tables, nil
}

// ListColumns returns storage descriptor columns followed by partition keys.
func (s *Source) ListColumns(ctx context.Context, database, schema, table string) ([]warehouse.ColumnInfo, error) {
	t, err := s.table(ctx, database, schema, table)
	if err != nil {
		return nil, err
	}

	var cols []warehouse.ColumnInfo
	add := func(c gluetypes.Column, partition bool) {
		comment := aws.ToString(c.Comment)
		if partition && comment == "" {
			comment = "partition key"
		}
		cols = append(cols, warehouse.ColumnInfo{
			Name:            aws.ToString(c.Name),
			OrdinalPosition: len(cols) + 1,
			DataType:        strings.ToUpper(aws.ToString(c.Type)),
			IsNullable:      !partition,
			Comment:         comment,
		})
	}
	if t.StorageDescriptor != nil {
		for _, c := range t.StorageDescriptor.Columns {
			add(c, false)
		}
	}
	for _, c := range t.PartitionKeys {
		add(c, true)
	}
	return cols, nil
}

func (s *Source) table(ctx context.Context, database, schema, table string) (*gluetypes.Table, error) {
	if t, ok := s.tables[catalog.SchemaID(database, schema)][table]; ok {
		return &t, nil
	}
	out, err := s.client.GetTable(ctx, &glue.GetTableInput{
		CatalogId:    s.catalogID(),
		DatabaseName: aws.String(schema),
		Name:         aws.String(table),
	})
	if err != nil {
		return nil, fmt.Errorf("getting Glue table %s.%s: %w", schema, table, err)
	}
	if out.Table == nil {
		return nil, fmt.Errorf("getting Glue table %s.%s: empty response", schema, table)
	}
	return out.Table, nil
}

// ResolveConstraints has only names to go on; Glue declares no keys.
func (s *Source) ResolveConstraints(ctx context.Context, database, schema, table string) []models.Constraint {
	cols, err := s.ListColumns(ctx, database, schema, table)
	if err != nil {
		s.logger.Debug("Columns unavailable for key inference",
			zap.String("table", catalog.TableID(database, schema, table)), zap.Error(err))
		return nil
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	known := make([]string, 0, len(s.tables[catalog.SchemaID(database, schema)]))
	for name := range s.tables[catalog.SchemaID(database, schema)] {
		known = append(known, name)
	}
	return catalog.NamingConstraints(table, names, known)
}

// CollectColumnStats reads the statistics a Glue column statistics task or
// ANALYZE run has stored. Nothing is scanned; columns never analyzed are
// absent from the result.
func (s *Source) CollectColumnStats(ctx context.Context, database, schema, table string, columns []warehouse.ColumnInfo) map[string]*models.ColumnStats {
	out := map[string]*models.ColumnStats{}
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, c.Name)
	}
	for chunk := range slices.Chunk(names, maxStatsColumns) {
		resp, err := s.client.GetColumnStatisticsForTable(ctx, &glue.GetColumnStatisticsForTableInput{
			CatalogId:    s.catalogID(),
			DatabaseName: aws.String(schema),
			TableName:    aws.String(table),
			ColumnNames:  chunk,
		})
		if err != nil {
			s.logger.Debug("Column statistics unavailable",
				zap.String("table", catalog.TableID(database, schema, table)), zap.Error(err))
			return out
		}
		for _, cs := range resp.ColumnStatisticsList {
			if st := columnStats(cs); st != nil {
				out[aws.ToString(cs.ColumnName)] = st
			}
		}
	}
	return out
}

func columnStats(cs gluetypes.ColumnStatistics) *models.ColumnStats {
	d := cs.StatisticsData
	if d == nil {
		return nil
	}
	st := &models.ColumnStats{ProfiledAt: cs.AnalyzedTime}
	switch {
	case d.LongColumnStatisticsData != nil:
		v := d.LongColumnStatisticsData
		st.NullCount, st.DistinctCount = aws.Int64(v.NumberOfNulls), aws.Int64(v.NumberOfDistinctValues)
		st.MinValue = aws.String(strconv.FormatInt(v.MinimumValue, 10))
		st.MaxValue = aws.String(strconv.FormatInt(v.MaximumValue, 10))
	case d.DoubleColumnStatisticsData != nil:
		v := d.DoubleColumnStatisticsData
		st.NullCount, st.DistinctCount = aws.Int64(v.NumberOfNulls), aws.Int64(v.NumberOfDistinctValues)
		st.MinValue = aws.String(strconv.FormatFloat(v.MinimumValue, 'g', -1, 64))
		st.MaxValue = aws.String(strconv.FormatFloat(v.MaximumValue, 'g', -1, 64))
	case d.DateColumnStatisticsData != nil:
		v := d.DateColumnStatisticsData
		st.NullCount, st.DistinctCount = aws.Int64(v.NumberOfNulls), aws.Int64(v.NumberOfDistinctValues)
		if v.MinimumValue != nil {
			st.MinValue = aws.String(v.MinimumValue.Format(time.DateOnly))
		}
		if v.MaximumValue != nil {
			st.MaxValue = aws.String(v.MaximumValue.Format(time.DateOnly))
		}
	case d.DecimalColumnStatisticsData != nil:
		v := d.DecimalColumnStatisticsData
		st.NullCount, st.DistinctCount = aws.Int64(v.NumberOfNulls), aws.Int64(v.NumberOfDistinctValues)
	case d.StringColumnStatisticsData != nil:
		v := d.StringColumnStatisticsData
		st.NullCount, st.DistinctCount = aws.Int64(v.NumberOfNulls), aws.Int64(v.NumberOfDistinctValues)
	case d.BooleanColumnStatisticsData != nil:
		v := d.BooleanColumnStatisticsData
		var distinct int64
		if v.NumberOfTrues > 0 {
			distinct++
		}
		if v.NumberOfFalses > 0 {
			distinct++
		}
		st.NullCount, st.DistinctCount = aws.Int64(v.NumberOfNulls), aws.Int64(distinct)
	case d.BinaryColumnStatisticsData != nil:
		st.NullCount = aws.Int64(d.BinaryColumnStatisticsData.NumberOfNulls)
	default:
		return nil
	}
	return st
}

func tableType(glueType string) string {
	switch strings.ToUpper(glueType) {
	case "VIRTUAL_VIEW":
		return "VIEW"
	case "EXTERNAL_TABLE", "":
		return "EXTERNAL TABLE"
	case "GOVERNED":
		return "GOVERNED TABLE"
	}
	return strings.ToUpper(glueType) + " TABLE"
}

func paramInt(params map[string]string, keys ...string) *int64 {
	for _, k := range keys {
		if v, ok := params[k]; ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
				return &n
			}
		}
	}
	return nil
}

// classification surfaces the crawler's file format as a tag.
func classification(params map[string]string) map[string]string {
	tags := map[string]string{}
	if c := params["classification"]; c != "" {
		tags["classification"] = c
	}
	return tags
}

var _ warehouse.MetadataSource = (*Source)(nil)
