package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/aggression-monitor/internal/connection"
	"github.com/rickgao/aggression-monitor/internal/poller"
	"github.com/rickgao/aggression-monitor/internal/threshold"
	"github.com/rickgao/aggression-monitor/internal/writer"
)

const namespace = "aggression"

// Metrics holds the registry and monitor collectors.
type Metrics struct {
	registry *prometheus.Registry

	Cycles        *prometheus.CounterVec
	CycleErrors   *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec
	WindowTrades  *prometheus.GaugeVec
	WindowPages   *prometheus.GaugeVec
	NewTrades     *prometheus.CounterVec
	Imbalance     *prometheus.GaugeVec
	BandMean      *prometheus.GaugeVec
	BandStdDev    *prometheus.GaugeVec
	Alerts        *prometheus.CounterVec
}

// New creates Metrics on a fresh registry with Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Completed monitor cycles by classification status",
		}, []string{"symbol", "status"}),
		CycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycle_errors_total",
			Help: "Monitor cycles that failed (fetch error, timeout, panic)",
		}, []string{"symbol"}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cycle_duration_seconds",
			Help:    "Wall time of a monitor cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		}, []string{"symbol"}),
		WindowTrades: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "window_trades",
			Help: "Trades in the last lookback window",
		}, []string{"symbol"}),
		WindowPages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "window_pages",
			Help: "Pages fetched to build the last window",
		}, []string{"symbol"}),
		NewTrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "new_trades_total",
			Help: "Trades above the previous cycle's cursor",
		}, []string{"symbol"}),
		Imbalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "latest_imbalance",
			Help: "Imbalance of the newest completed bucket (base asset)",
		}, []string{"symbol"}),
		BandMean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "band_mean",
			Help: "Mean imbalance over history buckets",
		}, []string{"symbol"}),
		BandStdDev: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "band_std_dev",
			Help: "Population standard deviation of history imbalance",
		}, []string{"symbol"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_total",
			Help: "Signals by direction and delivery outcome",
		}, []string{"symbol", "direction", "outcome"}),
	}

	reg.MustRegister(
		m.Cycles, m.CycleErrors, m.CycleDuration,
		m.WindowTrades, m.WindowPages, m.NewTrades,
		m.Imbalance, m.BandMean, m.BandStdDev,
		m.Alerts,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCycle implements poller.Recorder.
func (m *Metrics) ObserveCycle(r poller.CycleReport) {
	sym := r.Symbol

	m.CycleDuration.WithLabelValues(sym).Observe(r.Duration.Seconds())
	if r.Failed() {
		m.CycleErrors.WithLabelValues(sym).Inc()
	}
	if r.Status == threshold.StatusNone {
		m.Cycles.WithLabelValues(sym, "error").Inc()
		return
	}

	m.Cycles.WithLabelValues(sym, r.Status.String()).Inc()
	m.WindowTrades.WithLabelValues(sym).Set(float64(r.Trades))
	m.WindowPages.WithLabelValues(sym).Set(float64(r.Pages))
	m.NewTrades.WithLabelValues(sym).Add(float64(r.NewTrades))

	if r.Model.SampleCount > 0 {
		m.Imbalance.WithLabelValues(sym).Set(r.Latest.InexactFloat64())
		m.BandMean.WithLabelValues(sym).Set(r.Model.Mean.InexactFloat64())
		m.BandStdDev.WithLabelValues(sym).Set(r.Model.StdDev.InexactFloat64())
	}

	if r.Signal != nil {
		m.Alerts.WithLabelValues(sym, r.Signal.Direction.String(), r.Outcome).Inc()
	}
}

// RegisterWriter exposes trade writer counters.
func (m *Metrics) RegisterWriter(stats func() writer.Stats) {
	counter := func(name, help string, get func(writer.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "writer", Name: name, Help: help,
		}, func() float64 { return float64(get(stats())) })
	}

	m.registry.MustRegister(
		counter("enqueued_total", "Trades queued for persistence", func(s writer.Stats) int64 { return s.Enqueued }),
		counter("dropped_total", "Streamed trades dropped on buffer overflow", func(s writer.Stats) int64 { return s.Dropped }),
		counter("inserted_total", "Trades inserted by the sink", func(s writer.Stats) int64 { return s.Inserted }),
		counter("duplicates_total", "Trades already stored", func(s writer.Stats) int64 { return s.Duplicates }),
		counter("flushes_total", "Sink writes", func(s writer.Stats) int64 { return s.Flushes }),
		counter("errors_total", "Failed sink writes", func(s writer.Stats) int64 { return s.Errors }),
		counter("windows_total", "Fetch windows queued for persistence", func(s writer.Stats) int64 { return s.Windows }),
		counter("windows_dropped_total", "Fetch windows dropped on queue overflow", func(s writer.Stats) int64 { return s.WindowsDropped }),
	)
}

// RegisterStream exposes live stream counters.
func (m *Metrics) RegisterStream(stats func() connection.StreamStats) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "stream", Name: "connected",
			Help: "1 when the trade stream is connected",
		}, func() float64 {
			if stats().Connected {
				return 1
			}
			return 0
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "messages_total",
			Help: "Frames received on the trade stream",
		}, func() float64 { return float64(stats().Messages) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "reconnects_total",
			Help: "Successful trade stream connections",
		}, func() float64 { return float64(stats().Connects) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "failures_total",
			Help: "Failed or dropped trade stream connections",
		}, func() float64 { return float64(stats().Failures) }),
	)
}
