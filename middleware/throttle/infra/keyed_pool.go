package infra

import (
	"context"
	"sync"

	"merchant-update-gate/middleware/throttle/domain"
)

// keyedPool mantém um semáforo (channel) por chave. Semáforos sem ninguém
// esperando ou segurando vaga são removidos, então o map não cresce com o
// número de merchants já vistos.
type keyedPool struct {
	mu       sync.Mutex
	slots    map[string]*keyedSlot
	capacity int
}

type keyedSlot struct {
	sem  chan struct{}
	refs int
}

// NewKeyedPool cria um pool com `capacity` vagas por chave (mínimo 1).
func NewKeyedPool(capacity int) domain.SlotPool {
	if capacity < 1 {
		capacity = 1
	}
	return &keyedPool{slots: make(map[string]*keyedSlot), capacity: capacity}
}

func (p *keyedPool) Acquire(ctx context.Context, key string) (func(), bool) {
	p.mu.Lock()
	slot, ok := p.slots[key]
	if !ok {
		slot = &keyedSlot{sem: make(chan struct{}, p.capacity)}
		p.slots[key] = slot
	}
	slot.refs++
	p.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.sem
				p.unref(key)
			})
		}, true
	case <-ctx.Done():
		p.unref(key)
		return nil, false
	}
}

func (p *keyedPool) unref(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot, ok := p.slots[key]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs <= 0 {
		delete(p.slots, key)
	}
}

func (p *keyedPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
