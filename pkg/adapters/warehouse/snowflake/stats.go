package snowflake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/catalog"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	pkgsql "github.com/Sumeet513/snowflake-data-catalog/pkg/sql"
)

// CollectColumnStats profiles every column with one aggregate query.
// If that query fails, each column is retried with a reduced query
// (null and distinct counts only); columns that still fail are omitted.
func (s *Source) CollectColumnStats(ctx context.Context, database, schema, table string, columns []warehouse.ColumnInfo) map[string]*models.ColumnStats {
	stats := make(map[string]*models.ColumnStats, len(columns))
	if len(columns) == 0 {
		return stats
	}
	fqn := pkgsql.QualifiedName(database, schema, table)
	log := s.logger.With(zap.String("table", catalog.TableID(database, schema, table)))
	now := time.Now().UTC()

	exprs := make([]string, 0, len(columns)*4)
	for i, c := range columns {
		col := pkgsql.QuoteIdent(c.Name)
		exprs = append(exprs,
			fmt.Sprintf("COUNT_IF(%s IS NULL) AS N%d", col, i),
			fmt.Sprintf("APPROX_COUNT_DISTINCT(%s) AS D%d", col, i))
		if !minMaxUnsupported(c.DataType) {
			exprs = append(exprs,
				fmt.Sprintf("MIN(%s)::VARCHAR AS MN%d", col, i),
				fmt.Sprintf("MAX(%s)::VARCHAR AS MX%d", col, i))
		}
	}

	res, err := s.q.Query(ctx, "SELECT "+strings.Join(exprs, ", ")+" FROM "+fqn)
	if err == nil && len(res.Rows) == 1 {
		row := res.Rows[0]
		for i, c := range columns {
			stats[c.Name] = &models.ColumnStats{
				NullCount:     warehouse.Int64(row, fmt.Sprintf("n%d", i)),
				DistinctCount: warehouse.Int64(row, fmt.Sprintf("d%d", i)),
				MinValue:      warehouse.StringPtr(row, fmt.Sprintf("mn%d", i)),
				MaxValue:      warehouse.StringPtr(row, fmt.Sprintf("mx%d", i)),
				ProfiledAt:    &now,
			}
		}
		return stats
	}

	log.Warn("Column profiling failed, retrying per column", zap.Error(err))
	for _, c := range columns {
		col := pkgsql.QuoteIdent(c.Name)
		r, cErr := s.q.Query(ctx, fmt.Sprintf(
			"SELECT COUNT_IF(%s IS NULL) AS N, APPROX_COUNT_DISTINCT(%s) AS D FROM %s", col, col, fqn))
		if cErr != nil || len(r.Rows) != 1 {
			log.Debug("Skipping column profile", zap.String("column", c.Name), zap.Error(cErr))
			continue
		}
		stats[c.Name] = &models.ColumnStats{
			NullCount:     warehouse.Int64(r.Rows[0], "n"),
			DistinctCount: warehouse.Int64(r.Rows[0], "d"),
			ProfiledAt:    &now,
		}
	}
	return stats
}

// minMaxUnsupported lists types MIN/MAX cannot be applied to.
func minMaxUnsupported(dataType string) bool {
	switch strings.ToUpper(dataType) {
	case "VARIANT", "OBJECT", "ARRAY", "GEOGRAPHY", "GEOMETRY", "VECTOR":
		return true
	}
	return false
}
