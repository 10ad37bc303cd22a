// Package telemetry exports engine events as Prometheus metrics.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Paranoid-AF/ghostline/inline"
)

// Metrics is an inline.Listener that records engine events.
type Metrics struct {
	reg *prometheus.Registry

	events    *prometheus.CounterVec
	firstShow *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	accepted  *prometheus.CounterVec

	mu      sync.Mutex
	pending map[string]time.Time // editor -> request time, until first show
}

// New creates metrics registered on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ghostline_events_total",
			Help: "Engine events by kind and provider",
		}, []string{"kind", "provider"}),
		firstShow: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ghostline_first_show_seconds",
			Help:    "Time from request to the first shown element",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}, []string{"provider"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ghostline_completion_errors_total",
			Help: "Requests that ended with a provider error",
		}, []string{"provider"}),
		accepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ghostline_accepted_bytes_total",
			Help: "Suggestion bytes inserted into documents",
		}, []string{"provider"}),
		pending: make(map[string]time.Time),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) OnEvent(ev inline.Event) {
	provider := ev.Provider
	m.events.WithLabelValues(ev.Kind.String(), provider).Inc()

	switch ev.Kind {
	case inline.EventRequest:
		m.mu.Lock()
		m.pending[ev.Editor] = ev.Time
		m.mu.Unlock()
	case inline.EventShow:
		m.mu.Lock()
		start, ok := m.pending[ev.Editor]
		delete(m.pending, ev.Editor)
		m.mu.Unlock()
		if ok {
			m.firstShow.WithLabelValues(provider).Observe(ev.Time.Sub(start).Seconds())
		}
	case inline.EventInsert:
		m.accepted.WithLabelValues(provider).Add(float64(len(ev.Element.Text)))
	case inline.EventCompletion, inline.EventHide, inline.EventInvalidated, inline.EventNoVariants:
		m.Forget(ev.Editor)
		if ev.Err != nil {
			m.errors.WithLabelValues(provider).Inc()
		}
	}
}

// Forget drops the pending request of editor, if any.
func (m *Metrics) Forget(editor string) {
	m.mu.Lock()
	delete(m.pending, editor)
	m.mu.Unlock()
}

// Pending returns the number of requests waiting for their first shown
// element.
func (m *Metrics) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
