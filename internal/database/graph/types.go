package graph

import (
	"context"
	"fmt"
	"strings"
)

// Dialect names the query language a store speaks.
type Dialect string

const (
	DialectSPARQL Dialect = "sparql"
	DialectCypher Dialect = "cypher"
)

// ParseDialect maps a user-supplied name onto a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case DialectSPARQL, "":
		return DialectSPARQL, nil
	case DialectCypher:
		return DialectCypher, nil
	default:
		return "", fmt.Errorf("unknown query dialect %q (must be 'sparql' or 'cypher')", s)
	}
}

// Row is a single result row keyed by variable name.
type Row = map[string]any

// ResultSet holds rows exactly as reported by the store.
type ResultSet []Row

// Client defines the interface for graph store query execution.
type Client interface {
	// Execute runs a query string as-is. Store-side failures are
	// returned as *ExecutionError.
	Execute(ctx context.Context, query string) (ResultSet, error)
	Close(ctx context.Context) error
}

// ExecutionError reports a query the store rejected or failed to run.
// Message is the store's own diagnostic, unmodified apart from trimming.
type ExecutionError struct {
	Query      string
	Message    string
	StatusCode int // HTTP status for SPARQL endpoints, 0 otherwise
	Err        error
}

func (e *ExecutionError) Error() string {
	return "query execution failed: " + e.Message
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func newExecutionError(query string, err error) *ExecutionError {
	return &ExecutionError{
		Query:   query,
		Message: strings.TrimSpace(err.Error()),
		Err:     err,
	}
}
