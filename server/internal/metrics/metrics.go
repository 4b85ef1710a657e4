package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xrbridge/xrbridge/server/internal/store"
)

const namespace = "xrbridge"

// Source is the read-only view of relay state sampled at scrape time.
type Source interface {
	UserCount() int
	Sequences() store.Sequences
}

// Metrics holds the relay's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	sessions  prometheus.Gauge
	frames    *prometheus.CounterVec
	armed     *prometheus.CounterVec
	delivered *prometheus.CounterVec
}

// New creates the collectors and registers them, plus Go runtime and process
// collectors, on a fresh registry.
func New(src Source) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open /ws sessions",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Inbound WebSocket frames by kind",
		}, []string{"kind"}),
		armed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_armed_total",
			Help:      "Arm calls by event kind",
		}, []string{"kind"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Event notifications queued to sessions by kind",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessions, m.frames, m.armed, m.delivered,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users_known",
			Help:      "User records currently held",
		}, func() float64 { return float64(src.UserCount()) }),
	)
	for _, k := range []store.Kind{store.KindButton, store.KindHaptic, store.KindCue} {
		k := k
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "sequence",
			Help:        "Current value of each event sequence counter",
			ConstLabels: prometheus.Labels{"kind": k.String()},
		}, func() float64 { return float64(seqOf(src.Sequences(), k)) }))
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// Frame counts one inbound frame of the given kind.
func (m *Metrics) Frame(kind string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(kind).Inc()
}

// Armed counts one arm call. It has the store.OnArm observer signature.
func (m *Metrics) Armed(ev store.Event) {
	if m == nil {
		return
	}
	m.armed.WithLabelValues(ev.Kind.String()).Inc()
}

// Delivered counts one notification queued to a session.
func (m *Metrics) Delivered(k store.Kind) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(k.String()).Inc()
}

func seqOf(s store.Sequences, k store.Kind) uint64 {
	switch k {
	case store.KindButton:
		return s.Button
	case store.KindHaptic:
		return s.Haptic
	default:
		return s.Cue
	}
}
