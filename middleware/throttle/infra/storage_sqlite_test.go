package infra

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestSQLiteStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "gate", "history.db"))
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED=0") {
			t.Skip("sqlite driver needs cgo")
		}
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStorage_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStorage(t)

	if _, ok, err := s.GetItem(ctx, "uh_m_1"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	if err := s.SetItem(ctx, "uh_m_1", "WyJhIl0="); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if err := s.SetItem(ctx, "uh_m_1", "WyJiIl0="); err != nil {
		t.Fatalf("SetItem overwrite: %v", err)
	}
	v, ok, err := s.GetItem(ctx, "uh_m_1")
	if err != nil || !ok || v != "WyJiIl0=" {
		t.Fatalf("GetItem: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := s.RemoveItem(ctx, "uh_m_1"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if _, ok, _ := s.GetItem(ctx, "uh_m_1"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestSQLiteStorage_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := NewSQLiteStorage(path)
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED=0") {
			t.Skip("sqlite driver needs cgo")
		}
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	if err := first.SetItem(ctx, "uh_m_2", "x"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	_ = first.Close()

	second, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if v, ok, err := second.GetItem(ctx, "uh_m_2"); err != nil || !ok || v != "x" {
		t.Fatalf("expected persisted value, got v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestSQLiteStorage_PurgeIdle(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStorage(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	_ = s.SetItem(ctx, "uh_old", "a")
	s.now = func() time.Time { return base.Add(8 * 24 * time.Hour) }
	_ = s.SetItem(ctx, "uh_new", "b")

	n, err := s.PurgeIdle(ctx, base.Add(7*24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeIdle: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged row, got %d", n)
	}
	if _, ok, _ := s.GetItem(ctx, "uh_new"); !ok {
		t.Fatalf("expected recent key to survive")
	}
}

func TestOpenStorage_SQLiteScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gate.db")
	st, err := OpenStorage(context.Background(), "sqlite://"+path, StorageOptions{})
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED=0") {
			t.Skip("sqlite driver needs cgo")
		}
		t.Fatalf("open: %v", err)
	}
	defer st.Close()
	if got := StorageKind(st); got != "sqlite" {
		t.Fatalf("expected sqlite, got %s", got)
	}
	if got := st.(*SQLiteStorage).Path(); got != path {
		t.Fatalf("expected path %s, got %s", path, got)
	}
}
