package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"sparqlgen/internal/mcpserver"
	"sparqlgen/internal/metrics"
	"sparqlgen/internal/repair"
)

func newMCPCmd(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve ask_graph and query_graph as MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := a.cfg
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}

			sess, err := a.openSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer sess.Close(context.Background())

			var (
				collector *metrics.Collector
				observers []repair.Observer
			)
			if cfg.MetricsAddr != "" {
				if collector, err = metrics.NewCollector(prometheus.NewRegistry()); err != nil {
					return err
				}
				observers = append(observers, collector)
			}

			eng, err := sess.Engine(a.logger, observers...)
			if err != nil {
				return err
			}

			srv := mcpserver.NewServer(mcpserver.Config{
				ServerName:    "sparqlgen",
				ServerVersion: version,
				Dialect:       cfg.Dialect,
				Schema:        sess.schema,
				Prefix:        cfg.Prefix,
				MetricsAddr:   cfg.MetricsAddr,
			}, eng, sess.store, a.logger, collector)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Close(shutdownCtx)
			}()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464 (env METRICS_ADDR)")
	return cmd
}
