package catalog

import (
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// UniqueHintColumns are column names that are unique by meaning.
var UniqueHintColumns = []string{"EMAIL", "USERNAME", "PHONE", "SSN", "LICENSE_NUMBER"}

// NamingConstraints guesses keys from column names. It is the last
// fallback tier and is only consulted when no constraint metadata could be read.
//
// Primary key: a column named ID, <TABLE>_ID or <singular TABLE>_ID.
// Foreign key: any other *_ID column; the referenced table is the prefix
// (or its plural) when it is one of knownTables, otherwise the plural form.
// Unique: names in UniqueHintColumns.
func NamingConstraints(table string, columns []string, knownTables []string) []models.Constraint {
	upperTable := strings.ToUpper(table)
	pkNames := map[string]bool{"ID": true, upperTable + "_ID": true}
	pkNames[strings.ToUpper(inflection.Singular(table))+"_ID"] = true

	known := make(map[string]string, len(knownTables))
	for _, t := range knownTables {
		known[strings.ToUpper(t)] = t
	}

	var result []models.Constraint
	hasPK := false
	for _, col := range columns {
		upper := strings.ToUpper(col)
		if pkNames[upper] && !hasPK {
			hasPK = true
			result = append(result, models.Constraint{
				Type:       models.ConstraintPrimaryKey,
				ColumnName: col,
				Source:     models.ConstraintSourceNaming,
			})
			continue
		}
		if pkNames[upper] {
			continue
		}
		if strings.HasSuffix(upper, "_ID") && len(upper) > len("_ID") {
			prefix := col[:len(col)-len("_ID")]
			result = append(result, models.Constraint{
				Type:             models.ConstraintForeignKey,
				ColumnName:       col,
				ReferencedTable:  referencedTable(prefix, known),
				ReferencedColumn: "ID",
				Source:           models.ConstraintSourceNaming,
			})
			continue
		}
		for _, u := range UniqueHintColumns {
			if upper == u {
				result = append(result, models.Constraint{
					Type:       models.ConstraintUnique,
					ColumnName: col,
					Source:     models.ConstraintSourceNaming,
				})
				break
			}
		}
	}
	return result
}

func referencedTable(prefix string, known map[string]string) string {
	plural := inflection.Plural(prefix)
	if t, ok := known[strings.ToUpper(prefix)]; ok {
		return t
	}
	if t, ok := known[strings.ToUpper(plural)]; ok {
		return t
	}
	return plural
}

// ApplyConstraints sets key flags on columns. Constraints naming columns
// that do not exist are ignored. A column keeps the first foreign-key
// reference it is given.
func ApplyConstraints(columns []*models.Column, constraints []models.Constraint) {
	byName := make(map[string]*models.Column, len(columns))
	for _, c := range columns {
		byName[strings.ToUpper(c.Name)] = c
	}
	for _, con := range constraints {
		col, ok := byName[strings.ToUpper(con.ColumnName)]
		if !ok {
			continue
		}
		switch con.Type {
		case models.ConstraintPrimaryKey:
			col.IsPrimaryKey = true
		case models.ConstraintForeignKey:
			col.IsForeignKey = true
			if col.ReferencedTable == "" {
				col.ReferencedTable = con.ReferencedTable
				col.ReferencedColumn = con.ReferencedColumn
			}
		case models.ConstraintUnique:
			col.IsUnique = true
		}
	}
}
