package snowflake

import (
	"context"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/catalog"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	pkgsql "github.com/Sumeet513/snowflake-data-catalog/pkg/sql"
)

// ResolveConstraints reads declared keys first. Only when none can be
// read does it fall back to identity columns and then to naming
// conventions. Every query is optional; failures are logged and the
// constraints found so far are returned.
func (s *Source) ResolveConstraints(ctx context.Context, database, schema, table string) []models.Constraint {
	fqn := pkgsql.QualifiedName(database, schema, table)
	log := s.logger.With(zap.String("table", catalog.TableID(database, schema, table)))

	declared := s.declaredConstraints(ctx, fqn, log)
	if len(declared) > 0 {
		return declared
	}

	res, err := s.q.Query(ctx, `SELECT COLUMN_NAME AS "name", IS_IDENTITY AS "is_identity"
		FROM `+pkgsql.QuoteIdent(database)+`.INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, schema, table)
	if err != nil {
		log.Debug("Column names unavailable for constraint heuristics", zap.Error(err))
		return nil
	}

	var result []models.Constraint
	names := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		name := warehouse.String(row, "name")
		names = append(names, name)
		if warehouse.Bool(row, "is_identity") {
			result = append(result, models.Constraint{
				Type:       models.ConstraintPrimaryKey,
				ColumnName: name,
				Source:     models.ConstraintSourceIdentity,
			})
		}
	}

	hasIdentityPK := len(result) > 0
	for _, c := range catalog.NamingConstraints(table, names, s.knownTables[catalog.SchemaID(database, schema)]) {
		if c.Type == models.ConstraintPrimaryKey && hasIdentityPK {
			continue
		}
		result = append(result, c)
	}
	if len(result) > 0 {
		log.Debug("Using heuristic constraints", zap.Int("count", len(result)))
	}
	return result
}

func (s *Source) declaredConstraints(ctx context.Context, fqn string, log *zap.Logger) []models.Constraint {
	var result []models.Constraint

	if res, err := s.q.Query(ctx, "SHOW PRIMARY KEYS IN TABLE "+fqn); err != nil {
		log.Debug("SHOW PRIMARY KEYS failed", zap.Error(err))
	} else {
		for _, row := range res.Rows {
			result = append(result, models.Constraint{
				Type:       models.ConstraintPrimaryKey,
				Name:       warehouse.String(row, "constraint_name"),
				ColumnName: warehouse.String(row, "column_name"),
				Source:     models.ConstraintSourceMetadata,
			})
		}
	}

	if res, err := s.q.Query(ctx, "SHOW IMPORTED KEYS IN TABLE "+fqn); err != nil {
		log.Debug("SHOW IMPORTED KEYS failed", zap.Error(err))
	} else {
		for _, row := range res.Rows {
			result = append(result, models.Constraint{
				Type:             models.ConstraintForeignKey,
				Name:             warehouse.String(row, "fk_name"),
				ColumnName:       warehouse.String(row, "fk_column_name"),
				ReferencedTable:  warehouse.String(row, "pk_table_name"),
				ReferencedColumn: warehouse.String(row, "pk_column_name"),
				Source:           models.ConstraintSourceMetadata,
			})
		}
	}

	if res, err := s.q.Query(ctx, "SHOW UNIQUE KEYS IN TABLE "+fqn); err != nil {
		log.Debug("SHOW UNIQUE KEYS failed", zap.Error(err))
	} else {
		for _, row := range res.Rows {
			result = append(result, models.Constraint{
				Type:       models.ConstraintUnique,
				Name:       warehouse.String(row, "constraint_name"),
				ColumnName: warehouse.String(row, "column_name"),
				Source:     models.ConstraintSourceMetadata,
			})
		}
	}

	return result
}
