// Package metrics exposes Prometheus metrics for policy evaluations, policy
// reloads and audit retention.
//
// Metrics:
//   - spendgate_evaluations_total: evaluations by module and outcome
//   - spendgate_reasons_total: emitted reasons by code and severity
//   - spendgate_evaluation_duration_seconds: engine latency
//   - spendgate_rule_failures_total: recovered rule panics by rule id
//   - spendgate_policy_reloads_total: reload attempts by result
//   - spendgate_audit_pruned_total: audit records removed by retention
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidahmann/spendgate/pkg/types"
)

const DefaultNamespace = "spendgate"

// Reload results.
const (
	ReloadChanged   = "changed"
	ReloadUnchanged = "unchanged"
	ReloadError     = "error"
)

// Collector owns a private registry. A nil *Collector is valid and records
// nothing, so callers do not need to branch on metrics being disabled.
type Collector struct {
	registry *prometheus.Registry

	evaluationsTotal   *prometheus.CounterVec
	reasonsTotal       *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	ruleFailuresTotal  *prometheus.CounterVec
	policyReloadsTotal *prometheus.CounterVec
	auditPrunedTotal   prometheus.Counter
}

// NewCollector creates and registers all metrics. A nil registry gets a
// fresh one.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: registry,
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of spend evaluations",
			},
			[]string{"module", "outcome"},
		),
		reasonsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reasons_total",
				Help:      "Total number of reasons emitted",
			},
			[]string{"code", "severity"},
		),
		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of spend evaluation in seconds",
				// 1µs to 16ms
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15),
			},
		),
		ruleFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_failures_total",
				Help:      "Total number of rules that failed during evaluation",
			},
			[]string{"rule"},
		),
		policyReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_reloads_total",
				Help:      "Total number of policy reload attempts",
			},
			[]string{"result"},
		),
		auditPrunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_pruned_total",
				Help:      "Total number of audit records removed by retention",
			},
		),
	}

	registry.MustRegister(
		c.evaluationsTotal,
		c.reasonsTotal,
		c.evaluationDuration,
		c.ruleFailuresTotal,
		c.policyReloadsTotal,
		c.auditPrunedTotal,
	)
	return c
}

// RecordEvaluation records one completed evaluation.
func (c *Collector) RecordEvaluation(module string, outcome types.Outcome, reasons []types.Reason, d time.Duration) {
	if c == nil {
		return
	}
	c.evaluationsTotal.WithLabelValues(module, string(outcome)).Inc()
	for _, r := range reasons {
		c.reasonsTotal.WithLabelValues(r.Code, string(r.Severity)).Inc()
	}
	c.evaluationDuration.Observe(d.Seconds())
}

func (c *Collector) RecordRuleFailure(ruleID string) {
	if c == nil {
		return
	}
	c.ruleFailuresTotal.WithLabelValues(ruleID).Inc()
}

// RecordPolicyReload maps a reload attempt to one of the Reload* results.
func (c *Collector) RecordPolicyReload(changed bool, err error) {
	if c == nil {
		return
	}
	result := ReloadUnchanged
	switch {
	case err != nil:
		result = ReloadError
	case changed:
		result = ReloadChanged
	}
	c.policyReloadsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) RecordAuditPruned(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.auditPrunedTotal.Add(float64(n))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
