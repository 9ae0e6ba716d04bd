package application

import (
	"context"
	"testing"
	"time"
)

type blockingPool struct{}

func (p *blockingPool) Acquire(ctx context.Context, _ string) (func(), bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-time.After(5 * time.Second):
		// não deve chegar aqui nos testes
		return nil, false
	}
}

type immediatePool struct {
	keys []string
}

func (p *immediatePool) Acquire(_ context.Context, key string) (func(), bool) {
	p.keys = append(p.keys, key)
	return func() {}, true
}

func TestConcurrencyService_Acquire_AllowsWhenNoPool(t *testing.T) {
	svc := ConcurrencyService{}
	release, ok := svc.Acquire(context.Background(), "m")
	if !ok {
		t.Fatalf("expected ok")
	}
	release()
}

func TestConcurrencyService_Acquire_UsesTimeout(t *testing.T) {
	svc := ConcurrencyService{Pool: &blockingPool{}, AcquireTimeout: 10 * time.Millisecond}

	_, ok := svc.Acquire(context.Background(), "m")
	if ok {
		t.Fatalf("expected timeout and ok=false")
	}
}

func TestConcurrencyService_Acquire_PassesMerchantAsKey(t *testing.T) {
	pool := &immediatePool{}
	svc := ConcurrencyService{Pool: pool}

	_, ok := svc.Acquire(context.Background(), "m_42")
	if !ok {
		t.Fatalf("expected ok")
	}
	if len(pool.keys) != 1 || pool.keys[0] != "m_42" {
		t.Fatalf("expected pool Acquire with key m_42, got %v", pool.keys)
	}
}
