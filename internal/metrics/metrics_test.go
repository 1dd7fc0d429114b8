package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/panel"
)

type poolStats struct{}

func (poolStats) Workers() int { return 4 }
func (poolStats) Running() int64 { return 2 }
func (poolStats) Queued() int64 { return 1 }

// TestObservePanelCall verifies the result label of panel calls.
func TestObservePanelCall(t *testing.T) {
	t.Parallel()

	m := New()

	m.ObservePanelCall("GetServer", time.Millisecond, nil)
	m.ObservePanelCall("GetServer", time.Millisecond, panel.NewError("GetServer", "x", panel.ErrNotFound))
	m.ObservePanelCall("CreateUser", time.Millisecond, panel.NewError("CreateUser", "bob", panel.ErrConflict))
	m.ObservePanelCall("ListNodes", time.Millisecond, panel.NewError("ListNodes", "", context.DeadlineExceeded))
	m.ObservePanelCall("ListNodes", time.Millisecond, errors.New("reset"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.panelCalls.WithLabelValues("GetServer", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.panelCalls.WithLabelValues("GetServer", ResultNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.panelCalls.WithLabelValues("CreateUser", ResultConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.panelCalls.WithLabelValues("ListNodes", ResultTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.panelCalls.WithLabelValues("ListNodes", ResultError)))
}

// TestObserveWorkflow verifies that failures are labelled with their domain kind.
func TestObserveWorkflow(t *testing.T) {
	t.Parallel()

	m := New()

	m.ObserveWorkflow("create_server", time.Second, nil)
	m.ObserveWorkflow("create_server", time.Second, errs.ServerAlreadyExists("lobby"))
	m.ObserveWorkflow("create_server", time.Second, errors.New("unclassified"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.workflows.WithLabelValues("create_server", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workflows.WithLabelValues("create_server", string(errs.KindAlreadyExists))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workflows.WithLabelValues("create_server", string(errs.KindTransport))))
}

// TestNodeGauges verifies that node capacity is exported and can be forgotten.
func TestNodeGauges(t *testing.T) {
	t.Parallel()

	m := New()

	m.SetNode("node-a", 4096, false)
	m.SetNode("node-b", 100, true)
	m.SetPanelUp(true)

	assert.Equal(t, 4096.0, testutil.ToFloat64(m.nodeUnused.WithLabelValues("node-a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodeMaintenance.WithLabelValues("node-b")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.panelUp))

	m.ForgetNode("node-a")
	assert.Equal(t, 1, testutil.CollectAndCount(m.nodeUnused))
}

// TestRegisterPool verifies that pool gauges are read from the pool.
func TestRegisterPool(t *testing.T) {
	t.Parallel()

	m := New()
	m.RegisterPool(poolStats{})

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, f := range families {
		if len(f.GetMetric()) == 1 && f.GetMetric()[0].GetGauge() != nil {
			values[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
		}
	}

	assert.Equal(t, 4.0, values["gamehost_pool_workers"])
	assert.Equal(t, 2.0, values["gamehost_pool_running_tasks"])
	assert.Equal(t, 1.0, values["gamehost_pool_queued_tasks"])
}

// TestNilMetrics verifies that a nil *Metrics is safe to use.
func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObservePanelCall("x", 0, nil)
		m.ObserveWorkflow("x", 0, nil)
		m.ObserveGrant("inline", nil)
		m.SetNode("x", 0, false)
		m.SetPanelUp(false)
		m.RegisterPool(poolStats{})
	})
}
