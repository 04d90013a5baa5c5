package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sparqlgen/internal/database/graph"
	"sparqlgen/internal/engine"
	"sparqlgen/internal/metrics"
	"sparqlgen/internal/repair"
)

// Asker answers natural-language questions. *engine.Engine implements it.
type Asker interface {
	Ask(ctx context.Context, req repair.Request) (*engine.Answer, error)
}

// Server wraps the MCP server with question answering over one graph store.
type Server struct {
	mcpServer *mcp.Server
	asker     Asker
	store     repair.Executor
	dialect   graph.Dialect
	schema    repair.Schema
	prefix    string
	logger    *slog.Logger

	// Optional /metrics listener
	collector   *metrics.Collector
	metricsAddr string
	metricsMu   sync.Mutex
	metricsSrv  *http.Server
	metricsWg   sync.WaitGroup
}

// Config holds configuration for the MCP server.
type Config struct {
	ServerName    string
	ServerVersion string
	Dialect       graph.Dialect
	Schema        string
	Prefix        string
	MetricsAddr   string // empty disables the metrics listener
}

// NewServer creates a new MCP server instance. collector may be nil.
func NewServer(cfg Config, asker Asker, store repair.Executor, logger *slog.Logger, collector *metrics.Collector) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = "sparqlgen"
	}

	impl := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}

	s := &Server{
		mcpServer:   mcp.NewServer(impl, nil),
		asker:       asker,
		store:       store,
		dialect:     cfg.Dialect,
		schema:      repair.Schema(cfg.Schema),
		prefix:      cfg.Prefix,
		logger:      logger.With("component", "mcpserver"),
		collector:   collector,
		metricsAddr: cfg.MetricsAddr,
	}
	s.registerTools()
	return s
}

// AskGraphArgs defines the input for the ask_graph tool.
type AskGraphArgs struct {
	Question string `json:"question" jsonschema:"the question to answer from the knowledge graph"`
}

// AskGraphResult defines the output for the ask_graph tool.
type AskGraphResult struct {
	Question       string           `json:"question" jsonschema:"the question as sent to query generation"`
	Query          string           `json:"query" jsonschema:"the query that produced the rows"`
	Rows           []map[string]any `json:"rows" jsonschema:"result rows"`
	Attempts       int              `json:"attempts" jsonschema:"number of queries executed"`
	Repairs        int              `json:"repairs" jsonschema:"number of repaired queries"`
	ConstructQuery string           `json:"construct_query,omitempty" jsonschema:"CONSTRUCT form of the query"`
	ConstructRows  []map[string]any `json:"construct_rows,omitempty" jsonschema:"triples built by the CONSTRUCT query"`
	ConstructError string           `json:"construct_error,omitempty" jsonschema:"why the CONSTRUCT stage failed, the SELECT rows are still valid"`
	Failures       []AttemptFailure `json:"failures,omitempty" jsonschema:"store errors that were repaired"`
}

// AttemptFailure is a rejected candidate reported back to the caller.
type AttemptFailure struct {
	Query string `json:"query"`
	Error string `json:"error"`
}

// QueryGraphArgs defines the input for the query_graph tool.
type QueryGraphArgs struct {
	Query string `json:"query" jsonschema:"query to execute as is"`
}

// QueryGraphResult wraps graph query results.
type QueryGraphResult struct {
	Rows []map[string]any `json:"rows" jsonschema:"query results"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "ask_graph",
		Description: "Answer a natural-language question from the knowledge graph. The question is translated into a " + s.dialectName() + " query, executed, and repaired automatically if the store rejects it.",
	}, s.handleAskGraph)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "query_graph",
		Description: "Execute a " + s.dialectName() + " query directly on the graph store. Store errors are returned verbatim.",
	}, s.handleQueryGraph)
}

func (s *Server) dialectName() string {
	if s.dialect == graph.DialectCypher {
		return "Cypher"
	}
	return "SPARQL"
}

func (s *Server) handleAskGraph(ctx context.Context, _ *mcp.CallToolRequest, args AskGraphArgs) (*mcp.CallToolResult, AskGraphResult, error) {
	if strings.TrimSpace(args.Question) == "" {
		return nil, AskGraphResult{}, errors.New("question must not be empty")
	}

	ans, err := s.asker.Ask(ctx, repair.Request{
		Question: args.Question,
		Schema:   s.schema,
		Prefix:   s.prefix,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "ask_graph failed", "error", err)
		return nil, AskGraphResult{}, err
	}

	res := AskGraphResult{
		Question: ans.Question,
		Query:    string(ans.Select.Query),
		Rows:     rowsOrEmpty(ans.Select.Rows),
		Attempts: len(ans.Select.Attempts),
		Repairs:  ans.Select.Repairs,
	}
	for _, a := range ans.Select.Attempts {
		if a.Error != "" {
			res.Failures = append(res.Failures, AttemptFailure{Query: string(a.Query), Error: a.Error})
		}
	}
	if ans.Construct != nil {
		res.ConstructQuery = string(ans.Construct.Query)
		res.ConstructRows = rowsOrEmpty(ans.Construct.Rows)
	}
	if ans.ConstructErr != nil {
		s.logger.WarnContext(ctx, "ask_graph construct stage failed", "error", ans.ConstructErr)
		res.ConstructError = ans.ConstructErr.Error()
	}
	return nil, res, nil
}

func (s *Server) handleQueryGraph(ctx context.Context, _ *mcp.CallToolRequest, args QueryGraphArgs) (*mcp.CallToolResult, QueryGraphResult, error) {
	if strings.TrimSpace(args.Query) == "" {
		return nil, QueryGraphResult{}, errors.New("query must not be empty")
	}

	rows, err := s.store.Execute(ctx, args.Query)
	if err != nil {
		return nil, QueryGraphResult{}, err
	}
	return nil, QueryGraphResult{Rows: rowsOrEmpty(rows)}, nil
}

func rowsOrEmpty(rows graph.ResultSet) []map[string]any {
	if rows == nil {
		return []map[string]any{}
	}
	return rows
}

// Start serves MCP on stdio until ctx is done or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	if err := s.startMetrics(); err != nil {
		return err
	}
	s.logger.Info("serving MCP on stdio", "dialect", s.dialect)
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Close stops the metrics listener.
func (s *Server) Close(ctx context.Context) error {
	return s.stopMetrics(ctx)
}

func (s *Server) startMetrics() error {
	if s.collector == nil || s.metricsAddr == "" {
		return nil
	}

	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()

	if s.metricsSrv != nil {
		return nil // Already running
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.collector.Handler())
	srv := &http.Server{
		Addr:              s.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.metricsSrv = srv
	s.metricsWg.Add(1)

	go func() {
		defer s.metricsWg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics listener stopped", "addr", s.metricsAddr, "error", err)
		}
	}()

	s.logger.Info("metrics listener started", "addr", s.metricsAddr)
	return nil
}

func (s *Server) stopMetrics(ctx context.Context) error {
	s.metricsMu.Lock()
	srv := s.metricsSrv
	s.metricsSrv = nil
	s.metricsMu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	s.metricsWg.Wait()
	if err != nil {
		return fmt.Errorf("stop metrics listener: %w", err)
	}
	return nil
}
