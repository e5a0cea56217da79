package infra

import (
	"context"

	"roomlink-api/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusStatsStore conta decisões em roomlink_ratelimit_decisions_total.
//
// Labels: route (regra da policy: auth|create|other) e result (allowed|denied).
// Path, origem e chave não viram label: séries Prometheus nunca expiram.
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer) *PrometheusStatsStore {
	return &PrometheusStatsStore{
		decisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomlink_ratelimit_decisions_total",
				Help: "Rate limit decisions on protected routes",
			},
			[]string{"route", "result"},
		),
	}
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.decisions.WithLabelValues(ev.RouteLabel(), ev.Result()).Inc()
	return nil
}
