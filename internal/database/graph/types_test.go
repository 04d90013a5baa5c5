package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"sparql", DialectSPARQL, false},
		{"", DialectSPARQL, false},
		{" Cypher ", DialectCypher, false},
		{"gremlin", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDialect(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectForm(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  QueryForm
	}{
		{"plain select", "SELECT ?s WHERE { ?s ?p ?o }", FormSelect},
		{"lowercase ask", "ask { ?s ?p ?o }", FormAsk},
		{"construct after prefixes", "PREFIX ex: <http://example.org/select#>\nCONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }", FormConstruct},
		{"keyword in comment", "# describe the samples\nSELECT * WHERE { ?s ?p ?o }", FormSelect},
		{"describe", "DESCRIBE <http://example.org/x>", FormDescribe},
		{"unknown", "not a query", FormSelect},
		{"prefix named describe", "PREFIX describe: <http://example.org/d#>\nSELECT ?s WHERE { ?s describe:p ?o }", FormSelect},
		{"prefix named ask", "PREFIX ask: <http://example.org/a#>\nCONSTRUCT { ?s ask:p ?o } WHERE { ?s ask:p ?o }", FormConstruct},
		{"local name construct", "PREFIX ex: <http://example.org/>\nSELECT ?s WHERE { ?s ex:construct ?o }", FormSelect},
		{"prefix without space", "PREFIX construct:<http://example.org/c#> ASK { ?s construct:p ?o }", FormAsk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectForm(tt.query))
		})
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := newExecutionError("SELECT 1", cause)

	assert.Equal(t, "connection refused", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "query execution failed: connection refused", err.Error())
}

func TestTermString(t *testing.T) {
	assert.Equal(t, "_:b0", Term{Type: "bnode", Value: "b0"}.String())
	assert.Equal(t, `"1"^^<http://www.w3.org/2001/XMLSchema#int>`,
		Term{Type: "literal", Value: "1", Datatype: "http://www.w3.org/2001/XMLSchema#int"}.String())
	assert.Equal(t, `"say \"hi\""`, Term{Type: "literal", Value: `say "hi"`}.String())
}
