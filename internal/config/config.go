// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sparqlgen/internal/database/graph"
	"sparqlgen/internal/llm"
)

// LLM providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// DefaultEnvFiles are tried in order by LoadDotEnv when no path is given.
var DefaultEnvFiles = []string{".env", "env/.env"}

// Config holds every setting of a run. Use DefaultConfig() or LoadFromEnv()
// and override with the WithX methods.
type Config struct {
	// Text generation
	LLMProvider  string // gemini or openai (default: gemini)
	GeminiAPIKey string
	GeminiModel  string // model key or literal model name (default: pro)
	OpenAIAPIKey string
	OpenAIModel  string  // default: llm.DefaultOpenAIModel
	OpenAIURL    string  // optional base URL for compatible servers
	LLMRateLimit float64 // completions per second; 0 disables the limit

	// Target store
	Dialect         graph.Dialect
	GraphDBURL      string // SPARQL repository endpoint
	GraphDBUser     string
	GraphDBPassword string
	Neo4jURI        string
	Neo4jUser       string
	Neo4jPassword   string
	Neo4jDatabase   string

	// Ontology given to every prompt. SchemaFile and SchemaGraph are
	// alternative sources, resolved by ResolveSchema.
	Schema      string
	SchemaFile  string
	SchemaGraph string // named graph to fetch with CONSTRUCT (SPARQL only)
	Prefix      string

	// Loop
	MaxAttempts    int           // executed candidates per run (default: 2)
	RequestTimeout time.Duration // per LLM or store call (default: 60s)
	Rephrase       bool          // default: true
	Construct      bool          // default: false
	DetectRepeats  bool          // default: false

	LogLevel    string // debug, info, warn, error (default: info)
	MetricsAddr string // listen address for /metrics; empty disables it
}

// DefaultConfig returns a Config with defaults and no credentials.
func DefaultConfig() Config {
	return Config{
		LLMProvider:    ProviderGemini,
		OpenAIModel:    llm.DefaultOpenAIModel,
		Dialect:        graph.DialectSPARQL,
		GraphDBURL:     "http://localhost:7200/repositories/ontology",
		Neo4jURI:       "neo4j://localhost:7687",
		Neo4jUser:      "neo4j",
		Neo4jDatabase:  "neo4j",
		MaxAttempts:    2,
		RequestTimeout: 60 * time.Second,
		Rephrase:       true,
		LogLevel:       "info",
	}
}

// LoadDotEnv seeds the environment from .env files. Variables already set
// are kept. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = DefaultEnvFiles
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEnv reads the configuration from environment variables on top of
// DefaultConfig. Malformed numbers, durations and booleans are errors.
func LoadFromEnv() (Config, error) {
	cfg := DefaultConfig()

	setString(&cfg.LLMProvider, "LLM_PROVIDER")
	setString(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.GeminiModel, "GEMINI_MODEL")
	setString(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAIModel, "OPENAI_MODEL")
	setString(&cfg.OpenAIURL, "OPENAI_BASE_URL")
	setString(&cfg.GraphDBURL, "GRAPHDB_URL")
	setString(&cfg.GraphDBUser, "GRAPHDB_USER")
	setString(&cfg.GraphDBPassword, "GRAPHDB_PASSWORD")
	setString(&cfg.Neo4jURI, "NEO4J_URI")
	setString(&cfg.Neo4jUser, "NEO4J_USER")
	setString(&cfg.Neo4jPassword, "NEO4J_PASSWORD")
	setString(&cfg.Neo4jDatabase, "NEO4J_DATABASE")
	setString(&cfg.Schema, "SCHEMA")
	setString(&cfg.SchemaFile, "SCHEMA_FILE")
	setString(&cfg.SchemaGraph, "SCHEMA_GRAPH")
	setString(&cfg.Prefix, "PREFIX")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.MetricsAddr, "METRICS_ADDR")

	if v := os.Getenv("DIALECT"); v != "" {
		d, err := graph.ParseDialect(v)
		if err != nil {
			return cfg, &ConfigError{Field: "DIALECT", Message: err.Error()}
		}
		cfg.Dialect = d
	}
	if v := os.Getenv("MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, &ConfigError{Field: "MAX_ATTEMPTS", Message: "must be an integer"}
		}
		cfg.MaxAttempts = n
	}
	if v := os.Getenv("LLM_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, &ConfigError{Field: "LLM_RATE_LIMIT", Message: "must be a number"}
		}
		cfg.LLMRateLimit = f
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, &ConfigError{Field: "REQUEST_TIMEOUT", Message: "must be a duration such as 30s"}
		}
		cfg.RequestTimeout = d
	}

	for _, b := range []struct {
		key string
		dst *bool
	}{
		{"REPHRASE", &cfg.Rephrase},
		{"CONSTRUCT", &cfg.Construct},
		{"DETECT_REPEATS", &cfg.DetectRepeats},
	} {
		if v := os.Getenv(b.key); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return cfg, &ConfigError{Field: b.key, Message: "must be true or false"}
			}
			*b.dst = parsed
		}
	}

	return cfg, nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// WithDialect returns a copy of the config targeting d.
func (c Config) WithDialect(d graph.Dialect) Config {
	c.Dialect = d
	return c
}

// WithMaxAttempts returns a copy of the config with a different budget.
func (c Config) WithMaxAttempts(n int) Config {
	c.MaxAttempts = n
	return c
}

// WithLogLevel returns a copy of the config with a different log level.
func (c Config) WithLogLevel(level string) Config {
	c.LogLevel = level
	return c
}

// WithRephrase returns a copy of the config with rephrasing enabled/disabled.
func (c Config) WithRephrase(enabled bool) Config {
	c.Rephrase = enabled
	return c
}

// WithConstruct returns a copy of the config with the CONSTRUCT stage enabled/disabled.
func (c Config) WithConstruct(enabled bool) Config {
	c.Construct = enabled
	return c
}

// WithSchema returns a copy of the config with an inline schema.
func (c Config) WithSchema(schema string) Config {
	c.Schema = schema
	return c
}

// Validate checks settings that do not depend on which command runs.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return &ConfigError{Field: "LLM_PROVIDER", Message: "must be gemini or openai"}
	}
	if _, err := graph.ParseDialect(string(c.Dialect)); err != nil {
		return &ConfigError{Field: "DIALECT", Message: err.Error()}
	}
	if c.MaxAttempts < 1 {
		return &ConfigError{Field: "MAX_ATTEMPTS", Message: "must be at least 1"}
	}
	if c.LLMRateLimit < 0 {
		return &ConfigError{Field: "LLM_RATE_LIMIT", Message: "must not be negative"}
	}
	if c.RequestTimeout <= 0 {
		return &ConfigError{Field: "REQUEST_TIMEOUT", Message: "must be positive"}
	}
	if c.Construct && c.Dialect != graph.DialectSPARQL {
		return &ConfigError{Field: "CONSTRUCT", Message: "requires the sparql dialect"}
	}
	if c.SchemaGraph != "" && c.Dialect != graph.DialectSPARQL {
		return &ConfigError{Field: "SCHEMA_GRAPH", Message: "requires the sparql dialect"}
	}
	switch c.Dialect {
	case graph.DialectSPARQL:
		if c.GraphDBURL == "" {
			return &ConfigError{Field: "GRAPHDB_URL", Message: "must not be empty"}
		}
	case graph.DialectCypher:
		if c.Neo4jURI == "" {
			return &ConfigError{Field: "NEO4J_URI", Message: "must not be empty"}
		}
	}
	return nil
}

// RequireLLM checks that the selected provider has credentials.
func (c Config) RequireLLM() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return &ConfigError{Field: "OPENAI_API_KEY", Message: "must be set for the openai provider"}
		}
	default:
		if c.GeminiAPIKey == "" {
			return &ConfigError{Field: "GEMINI_API_KEY", Message: "must be set for the gemini provider"}
		}
	}
	return nil
}

// ResolveSchema returns the inline schema, or the contents of SchemaFile.
// It returns "" when neither is set; SchemaGraph is fetched by the caller
// because it needs a store connection.
func (c Config) ResolveSchema() (string, error) {
	if c.Schema != "" {
		return c.Schema, nil
	}
	if c.SchemaFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.SchemaFile)
	if err != nil {
		return "", &ConfigError{Field: "SCHEMA_FILE", Message: err.Error()}
	}
	return strings.TrimSpace(string(data)), nil
}

// SlogLevel maps LogLevel to an slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Message
}
