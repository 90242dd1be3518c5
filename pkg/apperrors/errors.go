package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTimeoutExceeded = errors.New("metadata collection time budget exceeded")
	ErrUnsupportedType = errors.New("unsupported source type")
)

// ConnectionError means a warehouse session could not be established or
// authenticated. It is fatal to the job that hit it.
type ConnectionError struct {
	Account string
	Cause   error
}

func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("failed to connect to account %q: %v", e.Account, e.Cause)
	if tip := e.Tip(); tip != "" {
		msg += " (" + tip + ")"
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// Tip returns a troubleshooting hint for well-known failure messages.
func (e *ConnectionError) Tip() string {
	if e.Cause == nil {
		return ""
	}
	lower := strings.ToLower(e.Cause.Error())
	switch {
	case strings.Contains(lower, "authentication failed") || strings.Contains(lower, "incorrect username or password"):
		return "check the username and password"
	case strings.Contains(lower, "could not connect") || strings.Contains(lower, "no such host") || strings.Contains(lower, "timeout"):
		return "check the account identifier and network connectivity"
	case strings.Contains(lower, "access denied") || strings.Contains(lower, "insufficient privileges"):
		return "check that the role has access to the warehouse"
	}
	return ""
}

// PartialEnumerationError reports that a single node of the walk (one
// database, schema or table) could not be listed. The node is skipped.
type PartialEnumerationError struct {
	Level string
	Path  string
	Cause error
}

func (e *PartialEnumerationError) Error() string {
	return fmt.Sprintf("failed to enumerate %s %s: %v", e.Level, e.Path, e.Cause)
}

func (e *PartialEnumerationError) Unwrap() error { return e.Cause }

// PersistenceError reports that one record could not be upserted.
type PersistenceError struct {
	Entity string
	ID     string
	Cause  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s %s: %v", e.Entity, e.ID, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// EnrichmentError wraps a provider failure. It never escapes the enrichment
// adapter; callers see an empty result instead.
type EnrichmentError struct {
	Entity string
	Cause  error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrichment failed for %s: %v", e.Entity, e.Cause)
}

func (e *EnrichmentError) Unwrap() error { return e.Cause }
