// Package metrics exposes the process-wide counters and gauges the peer
// and listener state machines update, backed by
// github.com/VictoriaMetrics/metrics — the same library bgpfix-bgpipe
// wires into its pipeline stages. This replaces the teacher's bespoke
// counter.Counter (counter/counter.go), which only ever held a single
// uint64 per instance and had no way to label a metric by peer.
package metrics

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// PeerMetrics is the set of counters/gauges for one configured neighbor,
// labeled by its remote address so a shared registry can serve many
// peers (spec.md §4.2.3: "increment the route counter").
type PeerMetrics struct {
	routesReceived *metrics.Counter
	keepalivesSent *metrics.Counter
	established    *metrics.Gauge
	skipUntilUnix  *metrics.Gauge
	backoffSeconds *metrics.Gauge
}

// NewPeer registers (or reuses) the counters/gauges for peerAddr. Safe to
// call more than once for the same address; VictoriaMetrics/metrics
// de-duplicates by name.
func NewPeer(peerAddr string) *PeerMetrics {
	label := fmt.Sprintf(`peer=%q`, peerAddr)
	p := &PeerMetrics{
		routesReceived: metrics.GetOrCreateCounter(fmt.Sprintf(`bgp_routes_received_total{%s}`, label)),
		keepalivesSent: metrics.GetOrCreateCounter(fmt.Sprintf(`bgp_keepalives_sent_total{%s}`, label)),
		established:    metrics.GetOrCreateGauge(fmt.Sprintf(`bgp_session_established{%s}`, label), nil),
		skipUntilUnix:  metrics.GetOrCreateGauge(fmt.Sprintf(`bgp_backoff_skip_until_unix{%s}`, label), nil),
		backoffSeconds: metrics.GetOrCreateGauge(fmt.Sprintf(`bgp_backoff_next_seconds{%s}`, label), nil),
	}
	return p
}

// AddRoutes increments the route counter by n (spec.md §4.2.3: "If it is
// UPDATE, increment the route counter by the number of routes it
// carries").
func (p *PeerMetrics) AddRoutes(n int) {
	p.routesReceived.Add(n)
}

// IncKeepalivesSent increments the keepalive-sent counter.
func (p *PeerMetrics) IncKeepalivesSent() {
	p.keepalivesSent.Inc()
}

// SetEstablished records whether the session is currently established.
func (p *PeerMetrics) SetEstablished(v bool) {
	if v {
		p.established.Set(1)
	} else {
		p.established.Set(0)
	}
}

// SetBackoff records the current back-off state (spec.md §5's
// skip_until/next_skip).
func (p *PeerMetrics) SetBackoff(skipUntilUnix float64, nextSkipSeconds float64) {
	p.skipUntilUnix.Set(skipUntilUnix)
	p.backoffSeconds.Set(nextSkipSeconds)
}

// Listener metrics are process-wide (not per peer), covering every bind
// address the listener owns.
var (
	AcceptedTotal   = metrics.NewCounter(`bgp_listener_accepted_total`)
	RejectedTotal   = metrics.NewCounter(`bgp_listener_rejected_total`)
	TimedOutTotal   = metrics.NewCounter(`bgp_listener_timed_out_total`)
	HandedOffTotal  = metrics.NewCounter(`bgp_listener_handed_off_total`)
)
