package graph

import (
	"context"
	"fmt"
	"strings"
)

// OntologyQuery builds the CONSTRUCT query that dumps every triple of a
// named graph.
func OntologyQuery(graphIRI string) string {
	iri := strings.TrimSpace(graphIRI)
	if !strings.HasPrefix(iri, "<") {
		iri = "<" + iri + ">"
	}
	return "CONSTRUCT {?s ?p ?o} FROM " + iri + " WHERE {?s ?p ?o}"
}

// FetchOntology loads the ontology stored in graphIRI and renders it as
// N-Triples text suitable for prompt interpolation.
func (c *SPARQLClient) FetchOntology(ctx context.Context, graphIRI string) (string, error) {
	rows, err := c.Execute(ctx, OntologyQuery(graphIRI))
	if err != nil {
		return "", fmt.Errorf("fetch ontology %s: %w", graphIRI, err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("fetch ontology %s: graph is empty", graphIRI)
	}
	return FormatNTriples(rows), nil
}

// FormatNTriples renders subject/predicate/object rows, one triple per line.
// Rows missing any of the three positions are skipped.
func FormatNTriples(rows ResultSet) string {
	var b strings.Builder
	for _, row := range rows {
		s, okS := row["subject"].(Term)
		p, okP := row["predicate"].(Term)
		o, okO := row["object"].(Term)
		if !okS || !okP || !okO {
			continue
		}
		fmt.Fprintf(&b, "%s %s %s .\n", s, p, o)
	}
	return b.String()
}
