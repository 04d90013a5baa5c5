package repair

import (
	"context"

	"sparqlgen/internal/database/graph"
)

// Query is a candidate in the target query language. Repairs produce new
// values; a Query is never edited in place.
type Query string

// Schema is the ontology text handed unchanged to every prompt.
type Schema string

// Request carries the inputs shared by every generation and repair call
// of a run.
type Request struct {
	Question string
	Schema   Schema
	Prefix   string
}

// Generator produces the first candidate query for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Query, error)
}

// Repairer produces a replacement for a query the store rejected.
type Repairer interface {
	Repair(ctx context.Context, failing Query, errorMessage string, req Request) (Query, error)
}

// Executor runs a query against the store.
type Executor interface {
	Execute(ctx context.Context, query string) (graph.ResultSet, error)
}

// State is a node of the loop's state machine.
type State int

const (
	StateInit State = iota
	StateAttempting
	StateSucceeded
	StateExhausted
	// StateFailed is reached when generation or repair fails; the run is
	// aborted without further attempts.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Attempt records one execution of a candidate query.
type Attempt struct {
	Number int    `json:"number"`
	Query  Query  `json:"query"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of a run. Rows is set only when State is
// StateSucceeded.
type Result struct {
	RunID    string          `json:"run_id"`
	State    State           `json:"-"`
	Rows     graph.ResultSet `json:"rows,omitempty"`
	Query    Query           `json:"query,omitempty"`
	Attempts []Attempt       `json:"attempts"`
	Repairs  int             `json:"repairs"`
}

// Succeeded reports whether the run ended with an executed query.
func (r *Result) Succeeded() bool {
	return r != nil && r.State == StateSucceeded
}
