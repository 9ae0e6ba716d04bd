package infra

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStorage_GetSetRemove(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	if _, ok, err := s.GetItem(ctx, "uh_m"); ok || err != nil {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	if err := s.SetItem(ctx, "uh_m", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.GetItem(ctx, "uh_m")
	if err != nil || !ok || v != "v1" {
		t.Fatalf("expected v1, got %q ok=%v err=%v", v, ok, err)
	}
	if err := s.RemoveItem(ctx, "uh_m"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty storage after remove")
	}
}

func TestMemoryStorage_CleanupRemovesIdleKeys(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStorage(WithMemoryIdleTTL(time.Hour), WithMemoryCleanupEvery(0))
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.SetItem(ctx, "old", "x")
	now = now.Add(2 * time.Hour)
	_ = s.SetItem(ctx, "fresh", "y")

	if removed := s.Cleanup(); removed != 1 {
		t.Fatalf("expected 1 removed key, got %d", removed)
	}
	if _, ok, _ := s.GetItem(ctx, "old"); ok {
		t.Fatalf("expected old key to be removed")
	}
	if _, ok, _ := s.GetItem(ctx, "fresh"); !ok {
		t.Fatalf("expected fresh key to be kept")
	}
}

func TestMemoryStorage_CleanupDisabledWithoutTTL(t *testing.T) {
	s := NewMemoryStorage(WithMemoryIdleTTL(0))
	_ = s.SetItem(context.Background(), "k", "v")
	if removed := s.Cleanup(); removed != 0 {
		t.Fatalf("expected no cleanup, got %d", removed)
	}
}
