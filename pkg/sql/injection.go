package sql

import (
	"fmt"
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionError reports a value that looks like a SQL injection attempt.
type InjectionError struct {
	Field       string
	Fingerprint string
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("value of %q rejected: suspicious SQL pattern (%s)", e.Field, e.Fingerprint)
}

// CheckValue runs libinjection over a free-text value such as a search
// query or a session setting. Returns nil when the value is clean.
func CheckValue(field, value string) *InjectionError {
	if value == "" {
		return nil
	}
	if isSQLi, fingerprint := libinjection.IsSQLi(value); isSQLi {
		return &InjectionError{Field: field, Fingerprint: string(fingerprint)}
	}
	return nil
}

// CheckValues checks every string in values and returns the first failure
// in field-name order, so the reported field is deterministic.
func CheckValues(values map[string]string) *InjectionError {
	fields := make([]string, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if err := CheckValue(f, values[f]); err != nil {
			return err
		}
	}
	return nil
}
