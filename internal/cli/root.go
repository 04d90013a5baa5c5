// Package cli implements the sparqlgen command line.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sparqlgen/internal/config"
	"sparqlgen/internal/database/graph"
	"sparqlgen/ui/console"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	return run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, DefaultComponents())
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, comps Components) int {
	rootCmd := newRootCmd(comps)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		console.New(stderr).PrintError(err)
		return 1
	}
	return 0
}

// app carries state resolved by the root command to its subcommands.
type app struct {
	comps  Components
	cfg    config.Config
	logger *slog.Logger

	envFile     string
	logLevel    string
	dialect     string
	maxAttempts int
}

func newRootCmd(comps Components) *cobra.Command {
	a := &app{comps: comps}

	rootCmd := &cobra.Command{
		Use:   "sparqlgen",
		Short: "Translate questions into graph queries",
		Long: "sparqlgen asks a language model to translate a natural-language question into a SPARQL " +
			"(or Cypher) query, runs it, and repairs the query with the store's error message when it fails.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Load environment variables from this file (default: .env, env/.env)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (env LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&a.dialect, "dialect", "", "Query dialect: sparql or cypher (env DIALECT)")
	rootCmd.PersistentFlags().IntVar(&a.maxAttempts, "max-attempts", 0, "Executed queries per question, including repairs (env MAX_ATTEMPTS)")

	rootCmd.AddCommand(newAskCmd(a))
	rootCmd.AddCommand(newQueryCmd(a))
	rootCmd.AddCommand(newMCPCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// configure resolves settings with precedence flag > environment > .env > default.
func (a *app) configure(cmd *cobra.Command) error {
	var files []string
	if a.envFile != "" {
		files = []string{a.envFile}
	}
	if err := config.LoadDotEnv(files...); err != nil {
		return err
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg = cfg.WithLogLevel(a.logLevel)
	}
	if flags.Changed("dialect") {
		d, err := graph.ParseDialect(a.dialect)
		if err != nil {
			return &config.ConfigError{Field: "--dialect", Message: err.Error()}
		}
		cfg = cfg.WithDialect(d)
	}
	if flags.Changed("max-attempts") {
		cfg = cfg.WithMaxAttempts(a.maxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	return nil
}
