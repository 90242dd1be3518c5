// Package catalog turns raw warehouse rows into catalog records.
//
// Every entity is keyed by a composite identifier built from its ancestors'
// names, so the same warehouse object always maps to the same record
// without any central ID allocation. Functions here are pure.
package catalog

import "strings"

// Separator joins the name segments of a composite identifier.
const Separator = "."

// DatabaseID is the database name itself.
func DatabaseID(database string) string {
	return database
}

// SchemaID returns "database.schema".
func SchemaID(database, schema string) string {
	return ChildID(DatabaseID(database), schema)
}

// TableID returns "database.schema.table".
func TableID(database, schema, table string) string {
	return ChildID(SchemaID(database, schema), table)
}

// ColumnID returns "database.schema.table.column".
func ColumnID(database, schema, table, column string) string {
	return ChildID(TableID(database, schema, table), column)
}

// ChildID appends name to a parent identifier.
func ChildID(parentID, name string) string {
	return parentID + Separator + name
}

// SplitID splits an identifier into at most four segments. A dot inside a
// column name stays in the last segment.
func SplitID(id string) []string {
	if id == "" {
		return nil
	}
	return strings.SplitN(id, Separator, 4)
}

// ParentID returns the identifier of the entity's parent, or "" for a database.
func ParentID(id string) string {
	parts := SplitID(id)
	if len(parts) <= 1 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], Separator)
}

// Level names the entity type an identifier refers to, by segment count.
func Level(id string) string {
	switch len(SplitID(id)) {
	case 1:
		return "database"
	case 2:
		return "schema"
	case 3:
		return "table"
	case 4:
		return "column"
	}
	return ""
}
