package prefs

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the handler's Prometheus collectors. A nil *metrics records
// nothing.
type metrics struct {
	gets             prometheus.Counter
	sets             prometheus.Counter
	materializations prometheus.Counter
	notifications    prometheus.Counter
	refreshes        prometheus.Counter
	errors           *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	labels := prometheus.Labels{"namespace": namespace}
	counter := func(name, help string) prometheus.Counter {
		return register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}))
	}

	return &metrics{
		gets:             counter("typedprefs_get_total", "Total number of preference reads"),
		sets:             counter("typedprefs_set_total", "Total number of preference writes"),
		materializations: counter("typedprefs_materialize_total", "Total number of defaults written on first read"),
		notifications:    counter("typedprefs_notify_total", "Total number of change events dispatched"),
		refreshes:        counter("typedprefs_refresh_total", "Total number of cache reloads from the store"),
		errors: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "typedprefs_errors_total",
				Help:        "Total number of failed preference operations",
				ConstLabels: labels,
			},
			[]string{"op"},
		)),
	}
}

// register registers c, reusing an identical collector that is already
// registered, so several handlers may share a namespace and registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) get() {
	if m != nil {
		m.gets.Inc()
	}
}

func (m *metrics) set() {
	if m != nil {
		m.sets.Inc()
	}
}

func (m *metrics) materialize() {
	if m != nil {
		m.materializations.Inc()
	}
}

func (m *metrics) notify() {
	if m != nil {
		m.notifications.Inc()
	}
}

func (m *metrics) refresh() {
	if m != nil {
		m.refreshes.Inc()
	}
}

func (m *metrics) fail(op string) {
	if m != nil {
		m.errors.WithLabelValues(op).Inc()
	}
}
