package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry agrupa as métricas da API e serve /metrics.
type Registry struct {
	reg *prometheus.Registry

	AuthFailures  *prometheus.CounterVec
	TrackersAlive prometheus.Gauge
	TrackersSwept prometheus.Counter

	InFlightRejected prometheus.Counter
	StatsDropped     prometheus.Counter
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		AuthFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomlink_auth_failures_total",
				Help: "Authentication failures by reason",
			},
			[]string{"reason"},
		),
		TrackersAlive: f.NewGauge(prometheus.GaugeOpts{
			Name: "roomlink_ratelimit_trackers",
			Help: "Quota trackers currently held in memory",
		}),
		TrackersSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "roomlink_ratelimit_trackers_swept_total",
			Help: "Idle quota trackers removed by the janitor",
		}),
		InFlightRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "roomlink_inflight_rejected_total",
			Help: "Requests rejected because no in-flight slot was free",
		}),
		StatsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "roomlink_ratelimit_stats_dropped_total",
			Help: "Rate limit stats events dropped because the async queue was full",
		}),
	}
}

// Registerer expõe o registry para coletores de outros pacotes.
func (r *Registry) Registerer() prometheus.Registerer { return r.reg }

// ObserveSweep recebe o resultado de cada rodada do janitor.
func (r *Registry) ObserveSweep(removed, remaining int) {
	r.TrackersSwept.Add(float64(removed))
	r.TrackersAlive.Set(float64(remaining))
}

// ObserveInFlight publica a ocupação do pool de concorrência a cada scrape.
func (r *Registry) ObserveInFlight(inUse func() int) {
	promauto.With(r.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "roomlink_inflight_requests",
		Help: "Requests currently holding an in-flight slot",
	}, func() float64 { return float64(inUse()) })
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
