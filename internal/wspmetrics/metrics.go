// Package wspmetrics exposes the server's internal counters and
// gauges as Prometheus metrics. The session machine reports malformed
// PDUs and capability clamps; wspserver polls the registry's session
// count and cmd/wspd polls the DLR store's entry count.
package wspmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements wspsession.Metrics and the gauge setters the
// periodic registry and DLR store polls report into. A nil *Collector is valid — every
// method is a no-op on it, so metrics can be wired optionally.
type Collector struct {
	activeSessions  prometheus.Gauge
	dlrWaiting      prometheus.Gauge
	malformedPDU    prometheus.Counter
	capabilityClamp prometheus.Counter
	sessionsCreated prometheus.Counter
	sessionsAborted prometheus.Counter
}

// New registers the collector's metrics against reg and returns it.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "wspd_active_sessions",
			Help: "Number of WSP sessions currently tracked by the registry.",
		}),
		dlrWaiting: f.NewGauge(prometheus.GaugeOpts{
			Name: "wspd_dlr_waiting",
			Help: "Number of delivery reports currently awaiting correlation.",
		}),
		malformedPDU: f.NewCounter(prometheus.CounterOpts{
			Name: "wspd_malformed_pdus_total",
			Help: "Total number of PDUs rejected for being malformed.",
		}),
		capabilityClamp: f.NewCounter(prometheus.CounterOpts{
			Name: "wspd_capability_clamps_total",
			Help: "Total number of negotiated capabilities clamped to a server ceiling.",
		}),
		sessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "wspd_sessions_created_total",
			Help: "Total number of sessions created.",
		}),
		sessionsAborted: f.NewCounter(prometheus.CounterOpts{
			Name: "wspd_sessions_aborted_total",
			Help: "Total number of sessions torn down via TR-Abort rather than Disconnect.",
		}),
	}
}

// IncMalformedPDU implements wspsession.Metrics.
func (c *Collector) IncMalformedPDU() {
	if c == nil {
		return
	}
	c.malformedPDU.Inc()
}

// IncCapabilityClamp implements wspsession.Metrics.
func (c *Collector) IncCapabilityClamp() {
	if c == nil {
		return
	}
	c.capabilityClamp.Inc()
}

// IncSessionCreated records a new session entering the registry.
func (c *Collector) IncSessionCreated() {
	if c == nil {
		return
	}
	c.sessionsCreated.Inc()
}

// IncSessionAborted records a session torn down by TR-Abort.
func (c *Collector) IncSessionAborted() {
	if c == nil {
		return
	}
	c.sessionsAborted.Inc()
}

// SetActiveSessions reports the registry's current session count.
func (c *Collector) SetActiveSessions(n int) {
	if c == nil {
		return
	}
	c.activeSessions.Set(float64(n))
}

// SetDLRWaiting reports the DLR store's current entry count.
func (c *Collector) SetDLRWaiting(n int) {
	if c == nil {
		return
	}
	c.dlrWaiting.Set(float64(n))
}
