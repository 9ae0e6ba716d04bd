package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"merchant-update-gate/middleware/throttle/domain"
)

func TestMemoryStatsStore_CountsByOutcomeAndReason(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackMerchants(true))
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Merchant: "a", Allowed: true})
	_ = s.Record(ctx, domain.StatsEvent{Merchant: "a", Reason: domain.ReasonCooldown})
	_ = s.Record(ctx, domain.StatsEvent{Merchant: "b", Reason: domain.ReasonCooldown})
	_ = s.Record(ctx, domain.StatsEvent{Merchant: "b", Reason: domain.ReasonWeeklyCap})

	if got := s.Total(); got.Allowed != 1 || got.Denied != 3 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if got := s.DeniedByReason()[domain.ReasonCooldown]; got != 2 {
		t.Fatalf("expected 2 cooldown denials, got %d", got)
	}
	if got := s.ByMerchant()["b"]; got.Denied != 2 {
		t.Fatalf("expected 2 denials for b, got %+v", got)
	}
}

func TestMemoryStatsStore_DoesNotTrackMerchantsByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Merchant: "a", Allowed: true})
	if len(s.ByMerchant()) != 0 {
		t.Fatalf("expected no per-merchant counters")
	}
}

func TestPrometheusStatsStore_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPrometheusStatsStore(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Allowed: true, Reason: domain.ReasonNone})
	_ = s.Record(ctx, domain.StatsEvent{Reason: domain.ReasonDailyCap})
	_ = s.Record(ctx, domain.StatsEvent{Reason: domain.ReasonDailyCap})

	if got := testutil.ToFloat64(s.Counter().WithLabelValues("denied", "daily_cap")); got != 2 {
		t.Fatalf("expected 2 daily_cap denials, got %v", got)
	}
	if got := testutil.ToFloat64(s.Counter().WithLabelValues("allowed", "none")); got != 1 {
		t.Fatalf("expected 1 allowed, got %v", got)
	}
}

func TestPrometheusStatsStore_ReusesRegisteredCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	s1, err := NewPrometheusStatsStore(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	s2, err := NewPrometheusStatsStore(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if s1.Counter() != s2.Counter() {
		t.Fatalf("expected second store to reuse the registered counter")
	}
}

type failingStats struct{ err error }

func (f failingStats) Record(context.Context, domain.StatsEvent) error { return f.err }

func TestMultiStats_FansOutAndJoinsErrors(t *testing.T) {
	mem := NewMemoryStatsStore()
	boom := errors.New("boom")
	m := MultiStats{mem, nil, failingStats{err: boom}}

	err := m.Record(context.Background(), domain.StatsEvent{Allowed: true})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if mem.Total().Allowed != 1 {
		t.Fatalf("expected memory store to still record")
	}
}

func TestStatsField(t *testing.T) {
	if got := statsField(domain.StatsEvent{Allowed: true}); got != "allowed" {
		t.Fatalf("unexpected field %q", got)
	}
	if got := statsField(domain.StatsEvent{Reason: domain.ReasonCooldown}); got != "denied:cooldown" {
		t.Fatalf("unexpected field %q", got)
	}
}
