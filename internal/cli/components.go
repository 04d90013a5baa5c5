package cli

import (
	"context"
	"fmt"
	"log/slog"

	"sparqlgen/internal/config"
	"sparqlgen/internal/database/graph"
	"sparqlgen/internal/engine"
	"sparqlgen/internal/llm"
	"sparqlgen/internal/prompt"
	"sparqlgen/internal/repair"
)

// Components builds the external clients a command needs. Tests replace
// them with fakes.
type Components struct {
	TextGenerator func(ctx context.Context, cfg config.Config) (llm.TextGenerator, func(), error)
	Store         func(ctx context.Context, cfg config.Config) (graph.Client, error)
}

// DefaultComponents connects to the configured LLM provider and store.
func DefaultComponents() Components {
	return Components{
		TextGenerator: newTextGenerator,
		Store:         newStore,
	}
}

func newTextGenerator(ctx context.Context, cfg config.Config) (llm.TextGenerator, func(), error) {
	if err := cfg.RequireLLM(); err != nil {
		return nil, nil, err
	}

	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		g, err := llm.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIURL)
		if err != nil {
			return nil, nil, err
		}
		return limit(g, cfg), func() {}, nil
	default:
		g, err := llm.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		return limit(g, cfg), func() { _ = g.Close() }, nil
	}
}

// limit applies the per-call timeout and the optional rate limit. The
// timeout covers the completion only, not the wait for a token.
func limit(g llm.TextGenerator, cfg config.Config) llm.TextGenerator {
	return llm.WithRateLimit(llm.WithTimeout(g, cfg.RequestTimeout), cfg.LLMRateLimit, 1)
}

func newStore(_ context.Context, cfg config.Config) (graph.Client, error) {
	if cfg.Dialect == graph.DialectCypher {
		c, err := graph.NewNeo4jClient(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, cfg.RequestTimeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	opts := []graph.SPARQLOption{graph.WithRequestTimeout(cfg.RequestTimeout)}
	if cfg.GraphDBUser != "" {
		opts = append(opts, graph.WithBasicAuth(cfg.GraphDBUser, cfg.GraphDBPassword))
	}
	c, err := graph.NewSPARQLClient(cfg.GraphDBURL, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ontologySource is implemented by stores that can export their schema.
type ontologySource interface {
	FetchOntology(ctx context.Context, graphIRI string) (string, error)
}

// session holds the clients opened for one command.
type session struct {
	cfg     config.Config
	store   graph.Client
	tg      llm.TextGenerator
	schema  string
	closeTG func()
}

// openSession connects to the store and, when withLLM is set, the text
// generator, then resolves the schema.
func (a *app) openSession(ctx context.Context, cfg config.Config, withLLM bool) (*session, error) {
	store, err := a.comps.Store(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %s store: %w", cfg.Dialect, err)
	}
	s := &session{cfg: cfg, store: store, closeTG: func() {}}

	if !withLLM {
		return s, nil
	}

	s.tg, s.closeTG, err = a.comps.TextGenerator(ctx, cfg)
	if err != nil {
		s.closeTG = func() {}
		s.Close(ctx)
		return nil, err
	}
	a.logger.Debug("text generator ready", "name", s.tg.Name())

	if s.schema, err = resolveSchema(ctx, cfg, store); err != nil {
		s.Close(ctx)
		return nil, err
	}
	if s.schema == "" {
		a.logger.Warn("no schema configured; set SCHEMA, SCHEMA_FILE or SCHEMA_GRAPH for better queries")
	}
	return s, nil
}

func resolveSchema(ctx context.Context, cfg config.Config, store graph.Client) (string, error) {
	schema, err := cfg.ResolveSchema()
	if err != nil || schema != "" || cfg.SchemaGraph == "" {
		return schema, err
	}
	src, ok := store.(ontologySource)
	if !ok {
		return "", &config.ConfigError{Field: "SCHEMA_GRAPH", Message: "store cannot export its ontology"}
	}
	schema, err = src.FetchOntology(ctx, cfg.SchemaGraph)
	if err != nil {
		return "", fmt.Errorf("fetch schema graph: %w", err)
	}
	return schema, nil
}

// Engine builds the question pipeline over the session's clients.
func (s *session) Engine(logger *slog.Logger, observers ...repair.Observer) (*engine.Engine, error) {
	set, err := prompt.NewSet(s.cfg.Dialect)
	if err != nil {
		return nil, err
	}

	opts := engine.Options{
		Rephrase:  s.cfg.Rephrase,
		Construct: s.cfg.Construct,
		Loop: repair.LoopConfig{
			MaxAttempts:   s.cfg.MaxAttempts,
			DetectRepeats: s.cfg.DetectRepeats,
		},
	}
	loopOpts := []repair.LoopOption{repair.WithObserver(repair.NewLogObserver(logger))}
	for _, o := range observers {
		loopOpts = append(loopOpts, repair.WithObserver(o))
	}
	return engine.New(s.tg, set, s.store, opts, loopOpts...)
}

func (s *session) request(question string) repair.Request {
	return repair.Request{
		Question: question,
		Schema:   repair.Schema(s.schema),
		Prefix:   s.cfg.Prefix,
	}
}

// Close releases every client of the session.
func (s *session) Close(ctx context.Context) {
	s.closeTG()
	if s.store != nil {
		_ = s.store.Close(ctx)
	}
}
