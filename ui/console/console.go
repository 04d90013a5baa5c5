// Package console renders answers and failures for the terminal.
package console

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"sparqlgen/internal/output"
	"sparqlgen/internal/repair"
)

var (
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#C28A00", Dark: "#F2C94C"}
	danger    = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F6D"}
	subtle    = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#6C6C6C"}
)

// Printer writes styled output to w. Colors are dropped when w is not a
// terminal.
type Printer struct {
	w io.Writer

	title  lipgloss.Style
	label  lipgloss.Style
	query  lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	failed lipgloss.Style
	muted  lipgloss.Style
	border lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style

	compact bool
}

// New returns a Printer for w.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:      w,
		title:  r.NewStyle().Bold(true).Foreground(highlight),
		label:  r.NewStyle().Foreground(subtle),
		query:  r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(highlight).Padding(0, 1),
		ok:     r.NewStyle().Foreground(special),
		warn:   r.NewStyle().Foreground(warning),
		failed: r.NewStyle().Bold(true).Foreground(danger),
		muted:  r.NewStyle().Foreground(subtle),
		border: r.NewStyle().Foreground(subtle),
		header: r.NewStyle().Bold(true).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
	}
}

// Compact hides the attempt log and query boxes.
func (p *Printer) Compact() *Printer {
	p.compact = true
	return p
}

// PrintAnswer renders the query that ran, its rows and the attempt log.
func (p *Printer) PrintAnswer(v output.AnswerView) {
	fmt.Fprintln(p.w, p.title.Render("■ "+v.Question))
	if v.Rephrased != "" {
		fmt.Fprintf(p.w, "%s %s\n", p.label.Render("rephrased:"), v.Rephrased)
	}

	if !p.compact {
		p.printAttempts(v.Attempts)
		fmt.Fprintln(p.w, p.query.Render(v.Query))
	}
	p.PrintTable(v.Table)

	if v.Construct != nil {
		fmt.Fprintln(p.w, p.title.Render("■ CONSTRUCT"))
		if v.Construct.Failed != "" {
			fmt.Fprintln(p.w, p.failed.Render("✗ "+firstLine(v.Construct.Failed)))
			return
		}
		if !p.compact {
			fmt.Fprintln(p.w, p.query.Render(v.Construct.Query))
		}
		p.PrintTable(v.Construct.Table)
	}
}

func (p *Printer) printAttempts(lines []output.AttemptLine) {
	if len(lines) < 2 {
		return
	}
	for _, a := range lines {
		if a.OK {
			fmt.Fprintf(p.w, "  %s attempt %d\n", p.ok.Render("✓"), a.Number)
			continue
		}
		fmt.Fprintf(p.w, "  %s attempt %d %s\n", p.warn.Render("!"), a.Number, p.muted.Render(firstLine(a.Error)))
	}
}

// PrintTable renders rows, or a note when there are none.
func (p *Printer) PrintTable(t output.Table) {
	if t.Empty() {
		fmt.Fprintln(p.w, p.muted.Render("(no results)"))
		return
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.border).
		Headers(t.Columns...).
		Rows(t.Rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			return p.cell
		})
	fmt.Fprintln(p.w, tbl.Render())
	fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf("%d row(s)", len(t.Rows))))
}

// PrintError explains why no answer was produced. For an exhausted budget
// it shows the number of tries, the last query and the store's last
// diagnostic verbatim.
func (p *Printer) PrintError(err error) {
	var exhausted *repair.ExhaustionError
	var genErr *repair.GenerationError

	switch {
	case errors.As(err, &exhausted):
		heading := fmt.Sprintf("✗ No valid query after %d tries", exhausted.Attempts)
		if exhausted.Repeated {
			heading += " (repair repeated an earlier query)"
		}
		fmt.Fprintln(p.w, p.failed.Render(heading))
		if exhausted.LastQuery != "" {
			fmt.Fprintln(p.w, p.label.Render("last query:"))
			fmt.Fprintln(p.w, p.query.Render(string(exhausted.LastQuery)))
		}
		fmt.Fprintln(p.w, p.label.Render("last error:"))
		fmt.Fprintln(p.w, exhausted.LastError)
	case errors.As(err, &genErr):
		fmt.Fprintln(p.w, p.failed.Render(fmt.Sprintf("✗ Text generation failed during %s", genErr.Stage)))
		fmt.Fprintln(p.w, genErr.Err)
	default:
		fmt.Fprintln(p.w, p.failed.Render("✗ "+err.Error()))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
