package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metric results
const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics counters of the remote synchronization path
type Metrics struct {
	mirrorTotal  *prometheus.CounterVec
	hydrateTotal *prometheus.CounterVec
	queueDepth   prometheus.Gauge
}

// NewMetrics create the remote sync metrics and register them on reg, a nil
// reg leaves them unregistered
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		mirrorTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "course_catalog_remote_mirror_total",
			Help: "Remote mirror calls by kind, operation and result",
		}, []string{"kind", "op", "result"}),
		hydrateTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "course_catalog_remote_hydrate_total",
			Help: "Full re-hydrations from the remote by result",
		}, []string{"result"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "course_catalog_remote_queue_depth",
			Help: "Reconciliation jobs waiting or running",
		}),
	}
}

// ObserveMirror count one mirror call
func (m *Metrics) ObserveMirror(kind, op string, err error) {
	m.mirrorTotal.WithLabelValues(kind, op, result(err)).Inc()
}

func (m *Metrics) observeHydrate(err error) {
	m.hydrateTotal.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}
