// Package metrics exports Prometheus metrics for the repair loop.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sparqlgen/internal/repair"
)

const namespace = "sparqlgen"

// Collector records loop transitions. It implements repair.Observer.
type Collector struct {
	runs     *prometheus.CounterVec // terminal runs by outcome
	attempts prometheus.Histogram   // executions per finished run
	repairs  prometheus.Counter     // repair calls that produced a query
	failures *prometheus.CounterVec // store rejections, labelled by whether they ended the run
	registry prometheus.Gatherer
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// uses a fresh registry.
func NewCollector(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "runs_total",
			Help:      "Finished loop runs by outcome",
		}, []string{"outcome"}),

		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "attempts",
			Help:      "Query executions per finished run",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}),

		repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "repairs_total",
			Help:      "Queries rewritten after a store rejection",
		}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "rejections_total",
			Help:      "Candidate queries rejected by the store, by whether the rejection ended the run",
		}, []string{"final"}),

		registry: reg,
	}

	for _, m := range []prometheus.Collector{c.runs, c.attempts, c.repairs, c.failures} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// OnTransition implements repair.Observer.
func (c *Collector) OnTransition(ctx context.Context, ev repair.Event) {
	switch ev.To {
	case repair.StateAttempting:
		if ev.From == repair.StateAttempting {
			c.repairs.Inc()
			c.failures.WithLabelValues("false").Inc()
		}
	case repair.StateSucceeded:
		c.runs.WithLabelValues(repair.StateSucceeded.String()).Inc()
		c.attempts.Observe(float64(ev.Attempt))
	case repair.StateExhausted:
		c.runs.WithLabelValues(repair.StateExhausted.String()).Inc()
		c.failures.WithLabelValues("true").Inc()
		c.attempts.Observe(float64(ev.Attempt))
	case repair.StateFailed:
		c.runs.WithLabelValues(repair.StateFailed.String()).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
