// Package metrics exposes classifier activity as Prometheus metrics on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "toolscope"

// Collector implements tool.Recorder.
type Collector struct {
	registry *prometheus.Registry

	filterCalls   prometheus.Counter
	toolsInput    prometheus.Counter
	toolsRetained prometheus.Counter
	toolsExcluded prometheus.Counter
	inputSize     prometheus.Histogram
	sourceSyncs   *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		filterCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_calls_total",
			Help:      "Number of search tool filter passes.",
		}),
		toolsInput: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tools_input_total",
			Help:      "Tool descriptors received by the filter.",
		}),
		toolsRetained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tools_retained_total",
			Help:      "Tool descriptors kept as search tools.",
		}),
		toolsExcluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tools_excluded_total",
			Help:      "Tool descriptors dropped by the filter.",
		}),
		inputSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "filter_input_size",
			Help:      "Number of descriptors per filter call.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		sourceSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_syncs_total",
			Help:      "Tool source syncs by outcome.",
		}, []string{"kind", "status"}),
	}

	c.registry.MustRegister(
		c.filterCalls,
		c.toolsInput,
		c.toolsRetained,
		c.toolsExcluded,
		c.inputSize,
		c.sourceSyncs,
		collectors.NewGoCollector(),
	)
	return c
}

// ObserveFilter records one filter pass.
func (c *Collector) ObserveFilter(input, retained int) {
	c.filterCalls.Inc()
	c.toolsInput.Add(float64(input))
	c.toolsRetained.Add(float64(retained))
	c.toolsExcluded.Add(float64(input - retained))
	c.inputSize.Observe(float64(input))
}

// ObserveSync records a source sync outcome ("ok" or "error").
func (c *Collector) ObserveSync(kind, status string) {
	c.sourceSyncs.WithLabelValues(kind, status).Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
