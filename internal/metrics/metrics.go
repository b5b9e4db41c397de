// Package metrics holds the run counters for one riskgraph process.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a set of collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	nodesIngested   prometheus.Counter
	subtreesDropped prometheus.Counter
	conflicts       *prometheus.CounterVec
	entities        *prometheus.GaugeVec
	orphans         prometheus.Counter
	risksUpdated    prometheus.Counter
	findings        *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	documents       *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		nodesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskgraph_nodes_ingested_total",
			Help: "Instance nodes registered during ingestion.",
		}),
		subtreesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskgraph_subtrees_dropped_total",
			Help: "Malformed instance subtrees skipped during ingestion.",
		}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgraph_dedup_conflicts_total",
			Help: "Entities seen again with different content.",
		}, []string{"kind"}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskgraph_entities",
			Help: "Canonical entities in the registry of the last document.",
		}, []string{"kind"}),
		orphans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskgraph_orphan_nodes_total",
			Help: "Nodes whose parent chain never reaches a root.",
		}),
		risksUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskgraph_risks_updated_total",
			Help: "Risk cache recomputations during propagation.",
		}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgraph_findings_total",
			Help: "Rule matches against risk events.",
		}, []string{"severity"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgraph_alerts_total",
			Help: "Threshold alerts raised.",
		}, []string{"level"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgraph_documents_total",
			Help: "Documents processed by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskgraph_stage_duration_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
	}
	m.registry.MustRegister(
		m.nodesIngested,
		m.subtreesDropped,
		m.conflicts,
		m.entities,
		m.orphans,
		m.risksUpdated,
		m.findings,
		m.alerts,
		m.documents,
		m.stageDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) NodesIngested(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.nodesIngested.Add(float64(n))
}

func (m *Metrics) SubtreesDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.subtreesDropped.Add(float64(n))
}

func (m *Metrics) Conflict(kind string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(kind).Inc()
}

// Entities sets the per-kind entity gauge.
func (m *Metrics) Entities(kind string, n int) {
	if m == nil {
		return
	}
	m.entities.WithLabelValues(kind).Set(float64(n))
}

func (m *Metrics) Orphans(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.orphans.Add(float64(n))
}

func (m *Metrics) RisksUpdated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.risksUpdated.Add(float64(n))
}

func (m *Metrics) Finding(severity string) {
	if m == nil {
		return
	}
	if severity == "" {
		severity = "unknown"
	}
	m.findings.WithLabelValues(severity).Inc()
}

func (m *Metrics) Alert(level string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(level).Inc()
}

// Document counts a processed document; outcome is "ok" or "failed".
func (m *Metrics) Document(outcome string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(outcome).Inc()
}

// ObserveStage records the duration of a named stage started at start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteTextfile dumps all metrics in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
