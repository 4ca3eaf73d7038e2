package mcpmgr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InvocationBuckets spans quick local tools through slow remote ones.
var InvocationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}

// Metrics records connection and invocation counters. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	ConnectAttempts  *prometheus.CounterVec
	ConnectedServers prometheus.Gauge
	ToolInvocations  *prometheus.CounterVec
	ToolDuration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpmgr_connect_attempts_total",
				Help: "Server connection attempts",
			},
			[]string{"server", "transport", "status"},
		),
		ConnectedServers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mcpmgr_connected_servers",
				Help: "Currently connected servers",
			},
		),
		ToolInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpmgr_tool_invocations_total",
				Help: "Tool invocations",
			},
			[]string{"server", "tool", "status"},
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcpmgr_tool_duration_seconds",
				Help:    "Tool invocation latency",
				Buckets: InvocationBuckets,
			},
			[]string{"server", "tool"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.ConnectAttempts, m.ConnectedServers, m.ToolInvocations, m.ToolDuration)
	}
	return m
}

func (m *Metrics) connectAttempt(server string, kind ConfigTransport, err error) {
	if m == nil {
		return
	}
	m.ConnectAttempts.WithLabelValues(server, string(kind), statusLabel(err)).Inc()
}

func (m *Metrics) setConnected(n int) {
	if m == nil {
		return
	}
	m.ConnectedServers.Set(float64(n))
}

func (m *Metrics) invocation(server, tool string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.ToolInvocations.WithLabelValues(server, tool, statusLabel(err)).Inc()
	m.ToolDuration.WithLabelValues(server, tool).Observe(time.Since(started).Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
