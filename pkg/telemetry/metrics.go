package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// Metrics provides Prometheus metrics for leadflow.
// It implements engine.Recorder.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastRun     *prometheus.GaugeVec

	// Lead metrics
	transitions *prometheus.CounterVec
	leads       *prometheus.GaugeVec

	// Port metrics
	portCalls    *prometheus.CounterVec
	portDuration *prometheus.HistogramVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	registry *prometheus.Registry
}

var _ engine.Recorder = (*Metrics)(nil)

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of orchestration runs by final status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of orchestration runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run completed",
			},
			[]string{"status"},
		),

		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of committed lead state transitions",
			},
			[]string{"from", "to"},
		),
		leads: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "leads",
				Help:      "Current number of leads per state",
			},
			[]string{"state"},
		),

		portCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "port_calls_total",
				Help:      "Total number of calls to external ports",
			},
			[]string{"port", "result"},
		),
		portDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "port_call_duration_seconds",
				Help:      "Duration of external port calls in seconds",
				Buckets:   buckets,
			},
			[]string{"port"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),
	}

	collectors := []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.lastRun,
		m.transitions,
		m.leads,
		m.portCalls,
		m.portDuration,
		m.errorsByClass,
		m.errorsByCode,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordTransition counts a committed lead state transition.
func (m *Metrics) RecordTransition(from, to engine.LeadState) {
	if !m.enabled() {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// RecordPortCall records one call to an external port.
func (m *Metrics) RecordPortCall(port, result string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.portCalls.WithLabelValues(port, result).Inc()
	m.portDuration.WithLabelValues(port).Observe(duration.Seconds())
}

// RecordError counts a classified error.
func (m *Metrics) RecordError(class engine.ErrorClass, code string) {
	if !m.enabled() {
		return
	}
	m.errorsByClass.WithLabelValues(string(class)).Inc()
	if code != "" {
		m.errorsByCode.WithLabelValues(code).Inc()
	}
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(status string, duration time.Duration, completedAt time.Time) {
	if !m.enabled() {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.lastRun.WithLabelValues(status).Set(float64(completedAt.Unix()))
}

// SetLeadCounts replaces the per-state lead gauge. States missing from
// counts are reported as zero.
func (m *Metrics) SetLeadCounts(counts map[engine.LeadState]int) {
	if !m.enabled() {
		return
	}
	for _, s := range engine.AllStates {
		m.leads.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

// Registry returns the Prometheus registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes the current metrics in the text exposition format for
// the node-exporter textfile collector. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if !m.enabled() || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Push sends the current metrics to the configured Pushgateway.
func (m *Metrics) Push(ctx context.Context) error {
	if !m.enabled() || m.config.PushgatewayURL == "" {
		return nil
	}
	pusher := push.New(m.config.PushgatewayURL, m.config.Job).Gatherer(m.registry)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

// Flush writes the textfile and pushes to the Pushgateway when configured.
func (m *Metrics) Flush(ctx context.Context) error {
	if !m.enabled() {
		return nil
	}
	if err := m.WriteTextfile(m.config.Textfile); err != nil {
		return err
	}
	return m.Push(ctx)
}
