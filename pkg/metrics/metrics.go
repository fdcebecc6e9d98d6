package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBucketsMs covers everything from a cached lookup to a long broadcast run.
var LatencyBucketsMs = []float64{
	5, 10, 25, 50, 100, 250, 500,
	// Bot API round trips, retries included
	1000, 2000, 5000, 10000,
	// sweeps and broadcasts
	30000, 60000, 120000,
}

// Kind selects the collector built for a Metric.
type Kind string

const (
	KindCounterVec   Kind = "counter_vec"
	KindHistogramVec Kind = "histogram_vec"
	KindSummaryVec   Kind = "summary_vec"
)

// Metric describes one labelled collector.
type Metric struct {
	Name        string
	Description string
	Kind        Kind
	Labels      []string
	// Buckets overrides LatencyBucketsMs for histograms.
	Buckets []float64
}

// NewMetric builds the collector for m under subsystem.
func NewMetric(m *Metric, subsystem string) (prometheus.Collector, error) {
	switch m.Kind {
	case KindCounterVec:
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      m.Name,
			Help:      m.Description,
		}, m.Labels), nil
	case KindHistogramVec:
		buckets := m.Buckets
		if len(buckets) == 0 {
			buckets = LatencyBucketsMs
		}
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      m.Name,
			Help:      m.Description,
			Buckets:   buckets,
		}, m.Labels), nil
	case KindSummaryVec:
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Subsystem: subsystem,
			Name:      m.Name,
			Help:      m.Description,
		}, m.Labels), nil
	default:
		return nil, fmt.Errorf("metric %s: unknown kind %q", m.Name, m.Kind)
	}
}

// register builds m and registers it on reg. A collector already registered under the
// same descriptor is reused, so two constructions against one registry share series.
func register(reg prometheus.Registerer, m *Metric, subsystem string) (prometheus.Collector, error) {
	c, err := NewMetric(m, subsystem)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return c, err
	}
	return c, nil
}
