// Package middleware provides built-in plugins that attach cross-cutting
// observability to every store a registry creates.
package middleware

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pantry-dev/pantry/pkg/pantry"
)

// MetricsConfig configures the Prometheus plugin.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "pantry").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for action duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus plugin.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "pantry",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus metrics for the store runtime.
type metrics struct {
	storesCreated  prometheus.Counter
	mutationsTotal *prometheus.CounterVec
	actionsTotal   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
}

// globalMetrics is the singleton metrics instance.
// Created on first call to Prometheus().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

// initMetrics initializes the Prometheus metrics.
func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		storesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stores_created_total",
			Help:        "Total number of store instances created",
			ConstLabels: config.ConstLabels,
		}),

		mutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mutations_total",
			Help:        "Total number of committed mutations by store and kind",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "kind"}),

		actionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "actions_total",
			Help:        "Total number of action invocations by store, action and status",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "action", "status"}),

		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "action_duration_seconds",
			Help:        "Action duration from dispatch to settle in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"store", "action"}),
	}
}

// Prometheus creates a plugin that collects Prometheus metrics for every
// store created after registration.
//
// Metrics collected:
//   - pantry_stores_created_total: Counter of store instantiations
//   - pantry_mutations_total: Counter of mutations by store and kind
//   - pantry_actions_total: Counter of action calls by store, action and status
//   - pantry_action_duration_seconds: Histogram of dispatch-to-settle duration
//
// Example:
//
//	reg := pantry.NewRegistry()
//	reg.Use(middleware.Prometheus(
//	    middleware.WithNamespace("myapp"),
//	))
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) pantry.Plugin {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Initialize metrics once
	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return func(pc *pantry.PluginContext) (map[string]any, error) {
		m.storesCreated.Inc()

		pc.Store.Subscribe(func(mu pantry.Mutation, _ pantry.State) {
			m.mutationsTotal.WithLabelValues(mu.StoreID, mu.Kind.String()).Inc()
		})

		pc.Store.OnAction(func(call *pantry.ActionCall) error {
			start := time.Now()
			call.After(func(any) {
				m.actionDuration.WithLabelValues(call.StoreID, call.Name).Observe(time.Since(start).Seconds())
				m.actionsTotal.WithLabelValues(call.StoreID, call.Name, "ok").Inc()
			})
			call.OnError(func(error) {
				m.actionDuration.WithLabelValues(call.StoreID, call.Name).Observe(time.Since(start).Seconds())
				m.actionsTotal.WithLabelValues(call.StoreID, call.Name, "error").Inc()
			})
			return nil
		})

		return nil, nil
	}
}
