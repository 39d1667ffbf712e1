// Package metrics exposes recorder activity in the Prometheus exposition
// format. All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const namespace = "uptime"

// Cycle results reported by ObserveCycle.
const (
	ResultSuccess     = "success"
	ResultConfigError = "config_error"
	ResultProbeError  = "probe_error"
	ResultStoreError  = "store_error"
)

// Metrics holds the recorder's collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	probeLatency  prometheus.Gauge
	probeDuration prometheus.Histogram
	probeStatus   prometheus.Gauge
	probeFailures prometheus.Counter
	certDaysLeft  prometheus.Gauge
	pruned        prometheus.Counter
	swept         prometheus.Counter
	retained      prometheus.Gauge
	cycles        *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		probeLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_latency_ms",
			Help:      "Latency of the most recent probe in milliseconds.",
		}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Duration of probes that reached the target.",
			Buckets:   prometheus.DefBuckets,
		}),
		probeStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_status_code",
			Help:      "HTTP status code returned by the most recent probe.",
		}),
		probeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_failures_total",
			Help:      "Probes that produced no HTTP response.",
		}),
		certDaysLeft: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_cert_days_left",
			Help:      "Days until the target's TLS leaf certificate expires.",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_pruned_total",
			Help:      "Log entries removed for falling outside the retention window.",
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_deleted_keys_total",
			Help:      "Stale job-result keys deleted by the sweep.",
		}),
		retained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retention_entries",
			Help:      "Entries in the retention log at the last read.",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Recorder cycles by result.",
		}, []string{"result"}),
	}
	m.reg.MustRegister(
		m.probeLatency,
		m.probeDuration,
		m.probeStatus,
		m.probeFailures,
		m.certDaysLeft,
		m.pruned,
		m.swept,
		m.retained,
		m.cycles,
	)
	return m
}

// ObserveProbe records a probe that reached the target.
func (m *Metrics) ObserveProbe(statusCode int, latencyMillis float64) {
	if m == nil {
		return
	}
	m.probeLatency.Set(latencyMillis)
	m.probeDuration.Observe(latencyMillis / 1000)
	m.probeStatus.Set(float64(statusCode))
}

func (m *Metrics) ObserveProbeFailure() {
	if m == nil {
		return
	}
	m.probeFailures.Inc()
}

// ObserveCert records the days left on the target certificate.
func (m *Metrics) ObserveCert(daysLeft int) {
	if m == nil {
		return
	}
	m.certDaysLeft.Set(float64(daysLeft))
}

func (m *Metrics) ObservePrune(n int64) {
	if m == nil {
		return
	}
	m.pruned.Add(float64(n))
}

func (m *Metrics) ObserveSweep(n int64) {
	if m == nil {
		return
	}
	m.swept.Add(float64(n))
}

func (m *Metrics) SetRetained(n int) {
	if m == nil {
		return
	}
	m.retained.Set(float64(n))
}

func (m *Metrics) ObserveCycle(result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
}

// Gather returns the current metric families.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	if m == nil {
		return nil, nil
	}
	return m.reg.Gather()
}

// ServeHTTP writes every family in the format negotiated from the request's
// Accept header (text exposition when absent).
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mfs, err := m.Gather()
	if err != nil {
		slog.Error("metrics: gather failed", "err", err)
		http.Error(w, "gather metrics: "+err.Error(), http.StatusInternalServerError)
		return
	}

	format := expfmt.Negotiate(r.Header)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("metrics: encode failed", "family", mf.GetName(), "err", err)
			return
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		closer.Close() //nolint:errcheck
	}
}
