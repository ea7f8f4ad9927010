package store

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/curriculagg/curricula-grade/report"
)

const metricsSubsystem = "report_store"

var _ Store = &Metrics{}

// Metrics records the number of stored reports and store lookups
type Metrics struct {
	Store

	mu      sync.Mutex
	partial map[string]bool

	total   *prometheus.GaugeVec
	lookups *prometheus.CounterVec
}

// NewMetrics wraps s and registers its collectors with reg
func NewMetrics(s Store, namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Store:   s,
		partial: make(map[string]bool),
		total: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "reports_current_total",
			Help:      "Number of reports currently in the store",
		}, []string{"partial"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "lookups_total",
			Help:      "Number of report lookups by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.total, m.lookups)
	return m
}

func partialLabel(p bool) string {
	if p {
		return "true"
	}
	return "false"
}

func (m *Metrics) Add(name string, r *report.AssignmentReport) (string, error) {
	id, err := m.Store.Add(name, r)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := r.Partial()
	m.partial[id] = p
	m.total.WithLabelValues(partialLabel(p)).Inc()
	return id, nil
}

func (m *Metrics) Get(id string) (string, *report.AssignmentReport, error) {
	name, r, err := m.Store.Get(id)
	switch {
	case err == nil:
		m.lookups.WithLabelValues("hit").Inc()
	case errors.Is(err, ErrNotFound):
		m.lookups.WithLabelValues("miss").Inc()
	default:
		m.lookups.WithLabelValues("error").Inc()
	}
	return name, r, err
}

func (m *Metrics) Remove(id string) bool {
	ok := m.Store.Remove(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	p, found := m.partial[id]
	if !found {
		return ok
	}
	delete(m.partial, id)
	m.total.WithLabelValues(partialLabel(p)).Dec()
	return ok
}
