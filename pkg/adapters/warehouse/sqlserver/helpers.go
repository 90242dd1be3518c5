package sqlserver

import (
	"fmt"
	"strings"
)

// quoteName brackets an identifier the way QUOTENAME() does.
func quoteName(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "]", "]]")
	return fmt.Sprintf("[%s]", escaped)
}

// buildFullyQualifiedName builds [db].[schema].[table], skipping empty parts.
func buildFullyQualifiedName(parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			quoted = append(quoted, quoteName(p))
		}
	}
	return strings.Join(quoted, ".")
}

// mapSQLServerType maps SQL Server type names to standard type names.
func mapSQLServerType(sqlServerType string) string {
	sqlServerType = strings.ToUpper(sqlServerType)

	switch sqlServerType {
	case "INT":
		return "INTEGER"
	case "DECIMAL", "NUMERIC":
		return "NUMERIC"
	case "MONEY", "SMALLMONEY":
		return "MONEY"
	case "FLOAT":
		return "DOUBLE PRECISION"
	case "CHAR", "NCHAR":
		return "CHAR"
	case "VARCHAR", "NVARCHAR":
		return "VARCHAR"
	case "TEXT", "NTEXT":
		return "TEXT"
	case "BINARY", "VARBINARY":
		return "BYTEA"
	case "IMAGE":
		return "BLOB"
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return "TIMESTAMP"
	case "DATETIMEOFFSET":
		return "TIMESTAMP WITH TIME ZONE"
	case "BIT":
		return "BOOLEAN"
	case "UNIQUEIDENTIFIER":
		return "UUID"
	default:
		return sqlServerType
	}
}

// supportsMinMax reports whether MIN/MAX can be applied to the type.
// LOB, spatial and XML types cannot be compared.
func supportsMinMax(sqlType string) bool {
	switch strings.ToUpper(sqlType) {
	case "TEXT", "NTEXT", "IMAGE", "XML", "GEOGRAPHY", "GEOMETRY", "HIERARCHYID", "SQL_VARIANT", "BIT":
		return false
	}
	return true
}

// isSystemSchema reports schemas created by SQL Server itself, including
// the fixed database role schemas (db_owner, db_datareader, ...).
func isSystemSchema(name string) bool {
	lower := strings.ToLower(name)
	switch lower {
	case "sys", "information_schema", "guest":
		return true
	}
	return strings.HasPrefix(lower, "db_")
}
