package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"sparqlgen/internal/database/graph"
	"sparqlgen/internal/repair"
)

// Triple columns lead in this order when present (CONSTRUCT results).
var leadingColumns = []string{"subject", "predicate", "object"}

// UI/view-model types (no printing here)
type Table struct {
	Columns []string
	Rows    [][]string
}

// Empty reports whether the table has no rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// AttemptLine is one executed candidate as shown to the user.
type AttemptLine struct {
	Number int
	Query  string
	Error  string
	OK     bool
}

// AnswerView is everything printed for one answered question.
type AnswerView struct {
	Question  string
	Rephrased string // empty when the question was used as given
	Query     string
	Table     Table
	Attempts  []AttemptLine
	Construct *ConstructView
}

// ConstructView is the optional CONSTRUCT stage of an answer.
type ConstructView struct {
	Query  string
	Table  Table
	Failed string // set when the stage produced no result
}

// BuildTable flattens rows into string cells. Columns are the union of row
// keys, sorted, with subject/predicate/object first.
func BuildTable(rows graph.ResultSet) Table {
	seen := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}

	var cols []string
	for _, k := range leadingColumns {
		if _, ok := seen[k]; ok {
			cols = append(cols, k)
			delete(seen, k)
		}
	}
	rest := make([]string, 0, len(seen))
	for k := range seen {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	cols = append(cols, rest...)

	t := Table{Columns: cols, Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = FormatValue(row[c])
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// FormatValue renders one cell. RDF terms use their N-Triples form.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case graph.Term:
		return val.String()
	case fmt.Stringer:
		return val.String()
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// BuildAttempts converts a run's attempt log for display.
func BuildAttempts(res *repair.Result) []AttemptLine {
	if res == nil {
		return nil
	}
	lines := make([]AttemptLine, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		lines = append(lines, AttemptLine{
			Number: a.Number,
			Query:  string(a.Query),
			Error:  a.Error,
			OK:     a.Error == "",
		})
	}
	return lines
}

// BuildAnswer assembles the view of an answered question.
func BuildAnswer(original, question string, sel, construct *repair.Result) AnswerView {
	v := AnswerView{Question: original}
	if question != original {
		v.Rephrased = question
	}
	if sel != nil {
		v.Query = string(sel.Query)
		v.Table = BuildTable(sel.Rows)
		v.Attempts = BuildAttempts(sel)
	}
	if construct != nil {
		v.Construct = &ConstructView{
			Query: string(construct.Query),
			Table: BuildTable(construct.Rows),
		}
	}
	return v
}
