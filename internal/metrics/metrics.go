// Package metrics exposes Prometheus counters for the feed and broadcaster.
//
// All recording methods are safe to call on a nil *Metrics, so components can
// run without instrumentation in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adsb_xgps"

// Line results for the lines counter.
const (
	LineApplied   = "applied"
	LineDiscarded = "discarded"
)

// Metrics holds the collectors and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	feedConnects       prometheus.Counter
	feedConnectFailure prometheus.Counter
	feedDisconnects    prometheus.Counter
	feedState          prometheus.Gauge
	lines              *prometheus.CounterVec

	broadcasts     prometheus.Counter
	broadcastSkips *prometheus.CounterVec
	sendErrors     prometheus.Counter
}

// New creates the collectors on a fresh registry, along with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		feedConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_connects_total",
			Help:      "Successful connections to the SBS feed.",
		}),
		feedConnectFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_connect_failures_total",
			Help:      "Failed connection attempts to the SBS feed.",
		}),
		feedDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_disconnects_total",
			Help:      "Feed streams that ended with EOF or a read error.",
		}),
		feedState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_state",
			Help:      "Feed connection state (0 disconnected, 1 connecting, 2 streaming).",
		}),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "SBS lines read from the feed, by result.",
		}, []string{"result"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "XGPS datagrams sent.",
		}),
		broadcastSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_skips_total",
			Help:      "Broadcast ticks that sent nothing, by reason.",
		}, []string{"reason"}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "XGPS datagrams that failed to send.",
		}),
	}

	m.registry.MustRegister(
		m.feedConnects,
		m.feedConnectFailure,
		m.feedDisconnects,
		m.feedState,
		m.lines,
		m.broadcasts,
		m.broadcastSkips,
		m.sendErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WatchAircraft exports the registry size as a gauge read on each scrape.
func (m *Metrics) WatchAircraft(count func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "aircraft",
		Help:      "Aircraft currently held in the registry.",
	}, func() float64 { return float64(count()) }))
}

// ConnectAttempt records the outcome of one dial.
func (m *Metrics) ConnectAttempt(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.feedConnectFailure.Inc()
		return
	}
	m.feedConnects.Inc()
}

// Disconnected records the end of a stream.
func (m *Metrics) Disconnected() {
	if m == nil {
		return
	}
	m.feedDisconnects.Inc()
}

// SetFeedState records the feed state as its numeric value.
func (m *Metrics) SetFeedState(state int) {
	if m == nil {
		return
	}
	m.feedState.Set(float64(state))
}

// Line records one line read from the feed.
func (m *Metrics) Line(applied bool) {
	if m == nil {
		return
	}
	if applied {
		m.lines.WithLabelValues(LineApplied).Inc()
		return
	}
	m.lines.WithLabelValues(LineDiscarded).Inc()
}

// BroadcastSent records a sent datagram.
func (m *Metrics) BroadcastSent() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

// BroadcastSkipped records a tick that sent nothing.
func (m *Metrics) BroadcastSkipped(reason string) {
	if m == nil {
		return
	}
	m.broadcastSkips.WithLabelValues(reason).Inc()
}

// SendError records a failed send.
func (m *Metrics) SendError() {
	if m == nil {
		return
	}
	m.sendErrors.Inc()
}
