package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/panel"
)

const namespace = "gamehost"

// Result labels.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
	ResultTimeout  = "timeout"
	ResultError    = "error"
)

// Metrics holds every collector of the daemon on its own registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	panelCalls       *prometheus.CounterVec
	panelLatency     *prometheus.HistogramVec
	workflows        *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	grants           *prometheus.CounterVec
	nodeUnused       *prometheus.GaugeVec
	nodeMaintenance  *prometheus.GaugeVec
	panelUp          prometheus.Gauge
}

// New creates the collectors and registers them together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		panelCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "panel",
				Name:      "calls_total",
				Help:      "Total number of panel calls by operation and result",
			},
			[]string{"operation", "result"},
		),

		panelLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "panel",
				Name:      "call_duration_seconds",
				Help:      "Latency of panel calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"operation"},
		),

		workflows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orchestrator",
				Name:      "workflows_total",
				Help:      "Total number of provisioning workflows by workflow and result",
			},
			[]string{"workflow", "result"},
		),

		workflowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "orchestrator",
				Name:      "workflow_duration_seconds",
				Help:      "Duration of provisioning workflows in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"workflow"},
		),

		grants: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orchestrator",
				Name:      "entitlement_grants_total",
				Help:      "Post-provisioning entitlement grants by mode and result",
			},
			[]string{"mode", "result"},
		),

		nodeUnused: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "unused_memory_megabytes",
				Help:      "Reported total minus allocated memory of a node",
			},
			[]string{"node"},
		),

		nodeMaintenance: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "maintenance",
				Help:      "Whether the node is in maintenance mode (1) or not (0)",
			},
			[]string{"node"},
		),

		panelUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "panel",
				Name:      "up",
				Help:      "Whether the last capacity poll of the panel succeeded (1) or not (0)",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.panelCalls,
		m.panelLatency,
		m.workflows,
		m.workflowDuration,
		m.grants,
		m.nodeUnused,
		m.nodeMaintenance,
		m.panelUp,
	)

	return m
}

// Registry returns the registry to expose over HTTP.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObservePanelCall records one panel call.
func (m *Metrics) ObservePanelCall(op string, d time.Duration, err error) {
	if m == nil {
		return
	}

	m.panelCalls.WithLabelValues(op, panelResult(err)).Inc()
	m.panelLatency.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveWorkflow records a finished workflow. Failures are labelled with their domain kind.
func (m *Metrics) ObserveWorkflow(workflow string, d time.Duration, err error) {
	if m == nil {
		return
	}

	m.workflows.WithLabelValues(workflow, WorkflowResult(err)).Inc()
	m.workflowDuration.WithLabelValues(workflow).Observe(d.Seconds())
}

// ObserveGrant records a post-provisioning entitlement attempt.
func (m *Metrics) ObserveGrant(mode string, err error) {
	if m == nil {
		return
	}

	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.grants.WithLabelValues(mode, result).Inc()
}

// SetNode publishes the capacity of one node.
func (m *Metrics) SetNode(node string, unusedMB int64, maintenance bool) {
	if m == nil {
		return
	}

	m.nodeUnused.WithLabelValues(node).Set(float64(unusedMB))
	if maintenance {
		m.nodeMaintenance.WithLabelValues(node).Set(1)
	} else {
		m.nodeMaintenance.WithLabelValues(node).Set(0)
	}
}

// ForgetNode drops the series of a node that disappeared from the panel.
func (m *Metrics) ForgetNode(node string) {
	if m == nil {
		return
	}

	m.nodeUnused.DeleteLabelValues(node)
	m.nodeMaintenance.DeleteLabelValues(node)
}

// SetPanelUp records the outcome of the last capacity poll.
func (m *Metrics) SetPanelUp(up bool) {
	if m == nil {
		return
	}

	if up {
		m.panelUp.Set(1)
	} else {
		m.panelUp.Set(0)
	}
}

// PoolStats is the view of the worker pool exported as gauges.
type PoolStats interface {
	Workers() int
	Running() int64
	Queued() int64
}

// RegisterPool exports the pool's size and load.
func (m *Metrics) RegisterPool(p PoolStats) {
	if m == nil {
		return
	}

	gauge := func(name, help string, fn func() float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, fn)
	}

	m.registry.MustRegister(
		gauge("workers", "Size of the worker pool", func() float64 { return float64(p.Workers()) }),
		gauge("running_tasks", "Tasks currently holding a worker", func() float64 { return float64(p.Running()) }),
		gauge("queued_tasks", "Tasks waiting for a worker", func() float64 { return float64(p.Queued()) }),
	)
}

// WorkflowResult labels an outcome by its domain kind.
func WorkflowResult(err error) string {
	if err == nil {
		return ResultOK
	}
	if kind := errs.KindOf(err); kind != "" {
		return string(kind)
	}
	return string(errs.KindTransport)
}

func panelResult(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case panel.IsNotFound(err):
		return ResultNotFound
	case panel.IsConflict(err):
		return ResultConflict
	case panel.IsTimeout(err):
		return ResultTimeout
	default:
		return ResultError
	}
}
