// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exports extraction diagnostics and oracle traffic as
// Prometheus collectors.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/specgraph/internal/oracle"
	"github.com/pdiddy/specgraph/pkg/types"
)

const namespace = "specgraph"

// Recorder owns a private registry holding every specgraph collector.
type Recorder struct {
	reg *prometheus.Registry

	diagnostics *prometheus.GaugeVec
	rate        prometheus.Gauge
	runs        prometheus.Counter
	oracleCalls *prometheus.CounterVec
	oracleTime  *prometheus.HistogramVec
}

// New returns a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		diagnostics: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "diagnostic",
			Help:      "Counts reported by the last extraction run, by diagnostic.",
		}, []string{"name"}),
		rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "extraction_rate",
			Help:      "Defined concepts over defined concepts plus unconsumed markers.",
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Extraction runs completed.",
		}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Oracle calls by stage and outcome.",
		}, []string{"stage", "outcome"}),
		oracleTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_call_seconds",
			Help:      "Oracle call latency by stage.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"stage"}),
	}
	r.reg.MustRegister(r.diagnostics, r.rate, r.runs, r.oracleCalls, r.oracleTime)
	return r
}

// Registry returns the registry for exposition.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Register adds extra collectors, such as HTTP middleware counters.
func (r *Recorder) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := r.reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRun records the diagnostics of a finished run.
func (r *Recorder) ObserveRun(d types.Diagnostics) {
	for _, kv := range diagnosticValues(d) {
		r.diagnostics.WithLabelValues(kv.name).Set(float64(kv.value))
	}
	r.rate.Set(d.Rate)
	r.runs.Inc()
}

// WriteTextfile writes the current state in the Prometheus text format,
// for node_exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Instrument wraps o so every call is counted and timed under stage.
// A nil oracle stays nil.
func (r *Recorder) Instrument(o oracle.Oracle, stage string) oracle.Oracle {
	if o == nil {
		return nil
	}
	return oracle.Func(func(ctx context.Context, transcript []oracle.Message) (string, error) {
		start := time.Now()
		reply, err := o.Ask(ctx, transcript)
		r.oracleTime.WithLabelValues(stage).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		r.oracleCalls.WithLabelValues(stage, outcome).Inc()
		return reply, err
	})
}

type namedValue struct {
	name  string
	value int
}

func diagnosticValues(d types.Diagnostics) []namedValue {
	return []namedValue{
		{"markers", d.Markers},
		{"concepts", d.Concepts},
		{"defined", d.Defined},
		{"undefined", d.Undefined},
		{"remaining", d.Remaining},
		{"skipped_no_identifier", d.SkippedNoIdentifier},
		{"skipped_no_parent", d.SkippedNoParent},
		{"skipped_ambiguous", d.SkippedAmbiguous},
		{"skipped_shape", d.SkippedShape},
		{"skipped_consumed", d.SkippedConsumed},
		{"resolved_conjunction", d.ResolvedConjunction},
		{"resolved_concept_prefix", d.ResolvedConceptPrefix},
		{"resolved_scoped", d.ResolvedScoped},
		{"redefinitions", d.Redefinitions},
		{"interpreter_resolved", d.InterpreterResolved},
		{"interpreter_unresolved", d.InterpreterUnresolved},
		{"classified", d.Classified},
		{"classified_coerced", d.ClassifiedCoerced},
		{"cycles", d.Cycles},
		{"self_references", d.SelfReferences},
	}
}
