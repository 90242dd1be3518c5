package warehouse

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScanRows drains rows into a QueryResult keyed by lower-cased column name.
// []byte values are converted to strings so results are JSON-friendly.
func ScanRows(rows *sql.Rows) (*QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	keys := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = strings.ToLower(c)
	}

	result := &QueryResult{Columns: keys, Rows: make([]map[string]any, 0)}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, key := range keys {
			if b, ok := values[i].([]byte); ok {
				row[key] = string(b)
			} else {
				row[key] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// String returns row[key] as a string, or "" when absent or NULL.
func String(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// StringPtr is String but returns nil for NULL.
func StringPtr(row map[string]any, key string) *string {
	if row[key] == nil {
		return nil
	}
	s := String(row, key)
	return &s
}

// Int64 returns row[key] as an integer. Warehouse drivers report numbers
// as int64, float64 or decimal strings depending on type and scale.
func Int64(row map[string]any, key string) *int64 {
	var n int64
	switch v := row[key].(type) {
	case nil:
		return nil
	case int64:
		n = v
	case int32:
		n = int64(v)
	case int:
		n = int64(v)
	case float64:
		n = int64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		n = int64(parsed)
	case []byte:
		return Int64(map[string]any{key: string(v)}, key)
	default:
		return nil
	}
	return &n
}

// Int returns row[key] as an int, or 0 when absent.
func Int(row map[string]any, key string) int {
	if n := Int64(row, key); n != nil {
		return int(*n)
	}
	return 0
}

// Bool interprets YES/Y/TRUE/1 style flags.
func Bool(row map[string]any, key string) bool {
	switch v := row[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case nil:
		return false
	}
	switch strings.ToUpper(strings.TrimSpace(String(row, key))) {
	case "YES", "Y", "TRUE", "T", "1":
		return true
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time returns row[key] as a timestamp, parsing the session output format
// when the driver hands back text.
func Time(row map[string]any, key string) *time.Time {
	switch v := row[key].(type) {
	case time.Time:
		return &v
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return &t
			}
		}
	}
	return nil
}
