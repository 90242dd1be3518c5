package sql

import (
	"fmt"
	"strings"
)

// QuoteIdent quotes a Snowflake (ANSI) identifier with double quotes,
// doubling any embedded quote. Names are passed through as reported by
// the warehouse, so case is preserved.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedName quotes and joins identifier parts with dots.
func QualifiedName(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = QuoteIdent(p)
	}
	return strings.Join(quoted, ".")
}

// QuoteLiteral renders s as a single-quoted string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteBracket quotes a SQL Server identifier the way QUOTENAME does.
func QuoteBracket(name string) string {
	return fmt.Sprintf("[%s]", strings.ReplaceAll(name, "]", "]]"))
}

// IsSimpleIdentifier reports whether name can be used unquoted in a
// session command such as USE WAREHOUSE.
func IsSimpleIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
		case i > 0 && (r == '$' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}
