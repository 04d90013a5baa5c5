package graph

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
)

// QueryForm is the SPARQL query form, which decides the result format.
type QueryForm string

const (
	FormSelect    QueryForm = "SELECT"
	FormAsk       QueryForm = "ASK"
	FormConstruct QueryForm = "CONSTRUCT"
	FormDescribe  QueryForm = "DESCRIBE"
)

func (f QueryForm) accept() string {
	switch f {
	case FormConstruct, FormDescribe:
		return mimeRDFJSON
	default:
		return mimeSPARQLResultsJSON
	}
}

var (
	iriRef      = regexp.MustCompile(`<[^<>\s]*>`)
	lineComment = regexp.MustCompile(`#[^\n]*`)
	formKeyword = regexp.MustCompile(`(?i)\b(SELECT|ASK|CONSTRUCT|DESCRIBE)\b`)
)

// DetectForm finds the query form keyword, skipping prologue IRIs and
// comments. A keyword touching a colon is part of a prefixed name
// ("PREFIX ask: <...>", "ex:select") and does not count. Unrecognised text
// is treated as SELECT.
func DetectForm(query string) QueryForm {
	stripped := iriRef.ReplaceAllString(query, "<>")
	stripped = lineComment.ReplaceAllString(stripped, "")
	for _, m := range formKeyword.FindAllStringSubmatchIndex(stripped, -1) {
		start, end := m[0], m[1]
		if start > 0 && stripped[start-1] == ':' {
			continue
		}
		if end < len(stripped) && stripped[end] == ':' {
			continue
		}
		return QueryForm(strings.ToUpper(stripped[m[2]:m[3]]))
	}
	return FormSelect
}

// Term is one RDF term as reported by the store.
type Term struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

// String renders the term in N-Triples syntax.
func (t Term) String() string {
	switch t.Type {
	case "uri":
		return "<" + t.Value + ">"
	case "bnode":
		if strings.HasPrefix(t.Value, "_:") {
			return t.Value
		}
		return "_:" + t.Value
	case "literal", "typed-literal":
		lit := quoteLiteral(t.Value)
		if t.Lang != "" {
			return lit + "@" + t.Lang
		}
		if t.Datatype != "" {
			return lit + "^^<" + t.Datatype + ">"
		}
		return lit
	default:
		return t.Value
	}
}

func quoteLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

type sparqlResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Boolean *bool `json:"boolean"`
	Results *struct {
		Bindings []map[string]Term `json:"bindings"`
	} `json:"results"`
}

// decodeSPARQLResults parses the SPARQL 1.1 Query Results JSON format.
// ASK answers become a single row with the key "boolean".
func decodeSPARQLResults(data []byte) (ResultSet, error) {
	var res sparqlResults
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}

	if res.Boolean != nil {
		return ResultSet{{"boolean": *res.Boolean}}, nil
	}
	if res.Results == nil {
		return nil, errors.New("response has neither results nor boolean")
	}

	rows := make(ResultSet, 0, len(res.Results.Bindings))
	for _, b := range res.Results.Bindings {
		row := make(Row, len(b))
		for name, term := range b {
			row[name] = term
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeRDFJSON parses the RDF/JSON graph format into subject/predicate/object
// rows, ordered by subject then predicate.
func decodeRDFJSON(data []byte) (ResultSet, error) {
	var graph map[string]map[string][]Term
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, err
	}

	subjects := make([]string, 0, len(graph))
	for s := range graph {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	var rows ResultSet
	for _, s := range subjects {
		subject := Term{Type: "uri", Value: s}
		if strings.HasPrefix(s, "_:") {
			subject.Type = "bnode"
		}

		preds := make([]string, 0, len(graph[s]))
		for p := range graph[s] {
			preds = append(preds, p)
		}
		sort.Strings(preds)

		for _, p := range preds {
			for _, o := range graph[s][p] {
				rows = append(rows, Row{
					"subject":   subject,
					"predicate": Term{Type: "uri", Value: p},
					"object":    o,
				})
			}
		}
	}
	if rows == nil {
		rows = ResultSet{}
	}
	return rows, nil
}
