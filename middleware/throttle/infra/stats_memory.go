package infra

import (
	"context"
	"sync"

	"merchant-update-gate/middleware/throttle/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu         sync.Mutex
	total      Counters
	byReason   map[domain.Reason]int64
	byMerchant map[domain.MerchantID]Counters

	trackMerchants bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackMerchants(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackMerchants = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byReason:   make(map[domain.Reason]int64),
		byMerchant: make(map[domain.MerchantID]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.byMerchant[ev.Merchant]
	if ev.Allowed {
		s.total.Allowed++
		m.Allowed++
	} else {
		s.total.Denied++
		m.Denied++
		s.byReason[ev.Reason]++
	}
	if s.trackMerchants {
		s.byMerchant[ev.Merchant] = m
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// DeniedByReason retorna uma cópia das negações por motivo.
func (s *MemoryStatsStore) DeniedByReason() map[domain.Reason]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Reason]int64, len(s.byReason))
	for k, v := range s.byReason {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByMerchant() map[domain.MerchantID]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.MerchantID]Counters, len(s.byMerchant))
	for k, v := range s.byMerchant {
		out[k] = v
	}
	return out
}
