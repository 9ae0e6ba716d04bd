package infra

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"merchant-update-gate/middleware/throttle/domain"
)

// PrometheusStatsStore conta decisões em um CounterVec
// (merchant_update_decisions_total{outcome,reason}).
//
// Não usa merchant como label para não explodir a cardinalidade.
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer) (*PrometheusStatsStore, error) {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merchant_update_decisions_total",
		Help: "Merchant update throttle decisions by outcome and reason.",
	}, []string{"outcome", "reason"})

	if reg != nil {
		if err := reg.Register(decisions); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			decisions = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return &PrometheusStatsStore{decisions: decisions}, nil
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	outcome := "denied"
	if ev.Allowed {
		outcome = "allowed"
	}
	reason := ev.Reason
	if reason == "" {
		reason = domain.ReasonNone
	}
	s.decisions.WithLabelValues(outcome, string(reason)).Inc()
	return nil
}

// Counter expõe o CounterVec (usado em testes e em registries customizados).
func (s *PrometheusStatsStore) Counter() *prometheus.CounterVec { return s.decisions }
