package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão do gate.
//
// Method/Path são strings genéricas, sem acoplar a net/http.
//
// Observação: cuidado com cardinalidade ao salvar Merchant por evento
// (Redis/Prometheus podem explodir em número de chaves/séries).
type StatsEvent struct {
	RequestID string
	Merchant  MerchantID
	Allowed   bool
	Reason    Reason

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de decisão.
//
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
