package snowflake

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	pkgsql "github.com/Sumeet513/snowflake-data-catalog/pkg/sql"
)

// Optional catalog tables that a database may carry.
const (
	glossaryTable       = "BUSINESS_GLOSSARY"
	tagsTable           = "TAGS"
	tagAssignmentsTable = "TAG_ASSIGNMENTS"
	lineageNodesTable   = "LINEAGE_NODES"
	lineageEdgesTable   = "LINEAGE_EDGES"
	profileStatsTable   = "COLUMN_PROFILE_STATS"
)

// CatalogAnnotations reads whichever optional catalog tables exist in
// database. Missing tables and failing reads are skipped; the error
// return is reserved for the table lookup itself.
func (s *Source) CatalogAnnotations(ctx context.Context, database string) (*warehouse.CatalogAnnotations, error) {
	located, err := s.locateCatalogTables(ctx, database)
	if err != nil {
		return nil, err
	}
	ann := &warehouse.CatalogAnnotations{}
	if len(located) == 0 {
		return ann, nil
	}
	log := s.logger.With(zap.String("database", database))

	if fqn, ok := located[glossaryTable]; ok {
		if res, err := s.q.Query(ctx, `SELECT TERM_ID AS "id", TERM_NAME AS "name", DEFINITION AS "definition" FROM `+fqn); err != nil {
			log.Warn("Failed to read business glossary", zap.Error(err))
		} else {
			for _, row := range res.Rows {
				ann.GlossaryTerms = append(ann.GlossaryTerms, warehouse.GlossaryTerm{
					ID:         warehouse.String(row, "id"),
					Name:       warehouse.String(row, "name"),
					Definition: warehouse.String(row, "definition"),
				})
			}
		}
	}

	if fqn, ok := located[tagAssignmentsTable]; ok {
		query := `SELECT a.OBJECT_TYPE AS "object_type", a.OBJECT_ID AS "object_id", a.TAG_NAME AS "tag_name", '' AS "tag_value" FROM ` + fqn + ` a`
		if tags, ok := located[tagsTable]; ok {
			query = `SELECT a.OBJECT_TYPE AS "object_type", a.OBJECT_ID AS "object_id",
				COALESCE(t.TAG_NAME, a.TAG_NAME) AS "tag_name", COALESCE(t.TAG_CATEGORY, '') AS "tag_value"
				FROM ` + fqn + ` a LEFT JOIN ` + tags + ` t ON a.TAG_ID = t.TAG_ID`
		}
		if res, err := s.q.Query(ctx, query); err != nil {
			log.Warn("Failed to read tag assignments", zap.Error(err))
		} else {
			for _, row := range res.Rows {
				ann.TagAssignments = append(ann.TagAssignments, warehouse.TagAssignment{
					ObjectType: strings.ToLower(warehouse.String(row, "object_type")),
					ObjectID:   warehouse.String(row, "object_id"),
					TagName:    warehouse.String(row, "tag_name"),
					TagValue:   warehouse.String(row, "tag_value"),
				})
			}
		}
	}

	nodes, hasNodes := located[lineageNodesTable]
	edges, hasEdges := located[lineageEdgesTable]
	if hasNodes && hasEdges {
		if res, err := s.q.Query(ctx, `SELECT src.OBJECT_ID AS "source_id", tgt.OBJECT_ID AS "target_id"
			FROM `+edges+` e
			JOIN `+nodes+` src ON e.SOURCE_NODE_ID = src.NODE_ID
			JOIN `+nodes+` tgt ON e.TARGET_NODE_ID = tgt.NODE_ID`); err != nil {
			log.Warn("Failed to read lineage", zap.Error(err))
		} else {
			for _, row := range res.Rows {
				ann.LineageEdges = append(ann.LineageEdges, warehouse.LineageEdge{
					SourceID: warehouse.String(row, "source_id"),
					TargetID: warehouse.String(row, "target_id"),
				})
			}
		}
	}

	if fqn, ok := located[profileStatsTable]; ok {
		if res, err := s.q.Query(ctx, `SELECT COLUMN_ID AS "column_id", ROW_COUNT AS "row_count", NULL_COUNT AS "null_count",
			DISTINCT_COUNT AS "distinct_count", MIN_VALUE::VARCHAR AS "min_value", MAX_VALUE::VARCHAR AS "max_value",
			PROFILING_DATE AS "profiling_date"
			FROM `+fqn+`
			QUALIFY ROW_NUMBER() OVER (PARTITION BY COLUMN_ID ORDER BY PROFILING_DATE DESC) = 1`); err != nil {
			log.Warn("Failed to read column profile stats", zap.Error(err))
		} else {
			for _, row := range res.Rows {
				ann.ProfileStats = append(ann.ProfileStats, warehouse.ProfileStat{
					ColumnID:      warehouse.String(row, "column_id"),
					RowCount:      warehouse.Int64(row, "row_count"),
					NullCount:     warehouse.Int64(row, "null_count"),
					DistinctCount: warehouse.Int64(row, "distinct_count"),
					MinValue:      warehouse.StringPtr(row, "min_value"),
					MaxValue:      warehouse.StringPtr(row, "max_value"),
					ProfilingDate: warehouse.Time(row, "profiling_date"),
				})
			}
		}
	}

	log.Debug("Read catalog annotations",
		zap.Int("glossary_terms", len(ann.GlossaryTerms)),
		zap.Int("tag_assignments", len(ann.TagAssignments)),
		zap.Int("lineage_edges", len(ann.LineageEdges)),
		zap.Int("profile_stats", len(ann.ProfileStats)))
	return ann, nil
}

// locateCatalogTables maps each optional table that exists to its
// fully qualified name. The first schema holding it wins.
func (s *Source) locateCatalogTables(ctx context.Context, database string) (map[string]string, error) {
	names := []string{glossaryTable, tagsTable, tagAssignmentsTable, lineageNodesTable, lineageEdgesTable, profileStatsTable}
	literals := make([]string, len(names))
	for i, n := range names {
		literals[i] = pkgsql.QuoteLiteral(n)
	}

	res, err := s.q.Query(ctx, `SELECT TABLE_SCHEMA AS "schema", TABLE_NAME AS "name"
		FROM `+pkgsql.QuoteIdent(database)+`.INFORMATION_SCHEMA.TABLES
		WHERE TABLE_NAME IN (`+strings.Join(literals, ", ")+`)
		ORDER BY TABLE_SCHEMA`)
	if err != nil {
		return nil, err
	}

	located := map[string]string{}
	for _, row := range res.Rows {
		name := strings.ToUpper(warehouse.String(row, "name"))
		if _, seen := located[name]; seen {
			continue
		}
		located[name] = pkgsql.QualifiedName(database, warehouse.String(row, "schema"), name)
	}
	return located, nil
}

var _ warehouse.Annotator = (*Source)(nil)
