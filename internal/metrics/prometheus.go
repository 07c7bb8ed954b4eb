// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "wabkit"

// PrometheusCollector implements Collector with Prometheus metrics held in
// a private registry.
type PrometheusCollector struct {
	transformEntries  *prometheus.CounterVec
	transformDuration *prometheus.HistogramVec
	resolvedDeps      prometheus.Histogram
	modulesScanned    *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	lifecycleErrors   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusCollector creates a collector whose metric names start with
// namespace.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	pc := &PrometheusCollector{registry: prometheus.NewRegistry()}

	pc.transformEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "entries_total",
			Help:      "Archive entries handled by the transformer, by action",
		},
		[]string{"action"},
	)

	pc.transformDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "duration_seconds",
			Help:      "Duration of archive transform passes",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	pc.resolvedDeps = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "dependencies",
			Help:      "Number of transitive dependencies per resolve call",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	pc.modulesScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "modules_total",
			Help:      "Dependencies visited by the archive walker",
		},
		[]string{"kind", "outcome"},
	)

	pc.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Lifecycle state transitions of web modules",
		},
		[]string{"from_state", "to_state"},
	)

	pc.lifecycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "errors_total",
			Help:      "Failed application starts and stops",
		},
		[]string{"operation"},
	)

	pc.registry.MustRegister(
		pc.transformEntries,
		pc.transformDuration,
		pc.resolvedDeps,
		pc.modulesScanned,
		pc.transitions,
		pc.lifecycleErrors,
	)

	return pc
}

// TransformCompleted implements Collector.
func (pc *PrometheusCollector) TransformCompleted(copied, rewritten, dropped int, duration time.Duration, err error) {
	status := OutcomeSuccess
	if err != nil {
		status = OutcomeError
	}
	pc.transformEntries.WithLabelValues("copied").Add(float64(copied))
	pc.transformEntries.WithLabelValues("rewritten").Add(float64(rewritten))
	pc.transformEntries.WithLabelValues("dropped").Add(float64(dropped))
	pc.transformDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// DependenciesResolved implements Collector.
func (pc *PrometheusCollector) DependenciesResolved(count int) {
	pc.resolvedDeps.Observe(float64(count))
}

// ModuleScanned implements Collector.
func (pc *PrometheusCollector) ModuleScanned(kind, outcome string) {
	pc.modulesScanned.WithLabelValues(kind, outcome).Inc()
}

// LifecycleTransition implements Collector.
func (pc *PrometheusCollector) LifecycleTransition(from, to string) {
	pc.transitions.WithLabelValues(from, to).Inc()
}

// LifecycleError implements Collector.
func (pc *PrometheusCollector) LifecycleError(operation string) {
	pc.lifecycleErrors.WithLabelValues(operation).Inc()
}

// Registry returns the registry holding the collector's metrics.
func (pc *PrometheusCollector) Registry() *prometheus.Registry {
	return pc.registry
}

// WriteTextfile writes the current metrics to path in the text exposition
// format.
func (pc *PrometheusCollector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, pc.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
