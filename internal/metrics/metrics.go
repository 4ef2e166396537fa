package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yesterday-dev/yesterday/internal/restore"
)

// Restorations records restoration lifecycle metrics. It implements restore.Observer.
type Restorations struct {
	registry    *prometheus.Registry
	started     prometheus.Counter
	transitions *prometheus.CounterVec
	finished    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	active      prometheus.Gauge
}

// NewRestorations creates the metrics on a fresh registry
func NewRestorations() *Restorations {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Restorations{
		registry: reg,
		started: factory.NewCounter(prometheus.CounterOpts{
			Name: "yesterday_restorations_started_total",
			Help: "Restorations accepted by the controller",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yesterday_restoration_transitions_total",
			Help: "Milestones reported by the restore script, by status",
		}, []string{"status"}),
		finished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yesterday_restorations_finished_total",
			Help: "Restorations that reached a terminal state, by status",
		}, []string{"status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yesterday_restoration_duration_seconds",
			Help:    "Wall time from start to terminal state",
			Buckets: []float64{60, 300, 600, 1200, 1800, 3600, 7200, 14400},
		}, []string{"status"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "yesterday_restorations_active",
			Help: "Restorations currently running",
		}),
	}
}

func (r *Restorations) JobStarted(backupID string) {
	r.started.Inc()
	r.active.Inc()
}

func (r *Restorations) JobTransition(backupID string, status restore.Status) {
	r.transitions.WithLabelValues(string(status)).Inc()
}

func (r *Restorations) JobFinished(backupID string, status restore.Status, d time.Duration) {
	r.active.Dec()
	r.finished.WithLabelValues(string(status)).Inc()
	r.duration.WithLabelValues(string(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (r *Restorations) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
