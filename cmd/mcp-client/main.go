// Command mcp-client is an interactive shell for the sparqlgen MCP server.
// Lines are sent to ask_graph; /query sends a raw query to query_graph.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sparqlgen/internal/database/graph"
	"sparqlgen/internal/mcpserver"
	"sparqlgen/internal/output"
	"sparqlgen/ui/console"
)

const help = `  <question>      ask the graph in plain language
  /query <query>  run a query as written
  /tools          list the server's tools
  /raw            toggle printing the raw tool output
  /exit           leave`

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: mcp-client <server-command> [<args>]")
		fmt.Fprintln(os.Stderr, "Example: mcp-client ./sparqlgen mcp")
	}
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	client := mcp.NewClient(&mcp.Implementation{Name: "sparqlgen-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: exec.Command(args[0], args[1:]...)}, nil)
	if err != nil {
		log.Fatalf("connect to %s: %v", args[0], err)
	}
	defer session.Close()

	sh := &shell{session: session, out: os.Stdout, printer: console.New(os.Stdout)}
	fmt.Fprintln(sh.out, "Connected to", strings.Join(args, " "))
	fmt.Fprintln(sh.out, help)
	if err := sh.loop(ctx, os.Stdin); err != nil {
		log.Printf("read input: %v", err)
	}
}

type shell struct {
	session *mcp.ClientSession
	out     io.Writer
	printer *console.Printer
	raw     bool
}

func (s *shell) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
		case line == "/exit":
			return nil
		case line == "/tools":
			s.listTools(ctx)
		case line == "/raw":
			s.raw = !s.raw
			fmt.Fprintf(s.out, "raw output %v\n", s.raw)
		case strings.HasPrefix(line, "/query "):
			s.query(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/query ")))
		case strings.HasPrefix(line, "/"):
			fmt.Fprintln(s.out, help)
		default:
			s.ask(ctx, line)
		}
	}
}

func (s *shell) listTools(ctx context.Context) {
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			s.printer.PrintError(err)
			return
		}
		fmt.Fprintf(s.out, "  %s: %s\n", tool.Name, tool.Description)
	}
}

func (s *shell) ask(ctx context.Context, question string) {
	var res mcpserver.AskGraphResult
	if !s.call(ctx, "ask_graph", map[string]any{"question": question}, &res) {
		return
	}

	view := output.AnswerView{
		Question: question,
		Query:    res.Query,
		Table:    output.BuildTable(termRows(res.Rows)),
	}
	if res.Question != question {
		view.Rephrased = res.Question
	}
	// Failures lists the rejected candidates in order; the last attempt is the one that ran.
	for i, f := range res.Failures {
		view.Attempts = append(view.Attempts, output.AttemptLine{Number: i + 1, Query: f.Query, Error: f.Error})
	}
	view.Attempts = append(view.Attempts, output.AttemptLine{Number: res.Attempts, Query: res.Query, OK: true})

	switch {
	case res.ConstructError != "":
		view.Construct = &output.ConstructView{Failed: res.ConstructError}
	case res.ConstructQuery != "":
		view.Construct = &output.ConstructView{
			Query: res.ConstructQuery,
			Table: output.BuildTable(termRows(res.ConstructRows)),
		}
	}
	s.printer.PrintAnswer(view)
}

func (s *shell) query(ctx context.Context, query string) {
	if query == "" {
		fmt.Fprintln(s.out, help)
		return
	}
	var res mcpserver.QueryGraphResult
	if s.call(ctx, "query_graph", map[string]any{"query": query}, &res) {
		s.printer.PrintTable(output.BuildTable(termRows(res.Rows)))
	}
}

// call runs a tool and decodes its structured output into out. Tool and
// transport failures are printed and reported as false.
func (s *shell) call(ctx context.Context, name string, args map[string]any, out any) bool {
	result, err := s.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		s.printer.PrintError(err)
		return false
	}
	if result.IsError {
		s.printer.PrintError(errors.New(contentText(result)))
		return false
	}

	data, err := json.Marshal(result.StructuredContent)
	if err != nil || result.StructuredContent == nil {
		fmt.Fprintln(s.out, contentText(result))
		return false
	}
	if s.raw {
		var pretty bytes.Buffer
		if json.Indent(&pretty, data, "", "  ") == nil {
			fmt.Fprintln(s.out, pretty.String())
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.printer.PrintError(fmt.Errorf("decode %s result: %w", name, err))
		return false
	}
	return true
}

func contentText(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if t, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, t.Text)
		}
	}
	if len(parts) == 0 {
		return "tool returned no content"
	}
	return strings.Join(parts, "\n")
}

// termRows turns RDF terms that arrived as JSON objects back into
// graph.Term so cells print in N-Triples form.
func termRows(rows []map[string]any) graph.ResultSet {
	out := make(graph.ResultSet, 0, len(rows))
	for _, row := range rows {
		r := make(graph.Row, len(row))
		for k, v := range row {
			r[k] = asTerm(v)
		}
		out = append(out, r)
	}
	return out
}

func asTerm(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	typ, ok1 := m["type"].(string)
	val, ok2 := m["value"].(string)
	if !ok1 || !ok2 {
		return v
	}
	t := graph.Term{Type: typ, Value: val}
	t.Lang, _ = m["xml:lang"].(string)
	t.Datatype, _ = m["datatype"].(string)
	return t
}
