package infra

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage guarda os históricos em um map. Útil para testes, para o
// example-server e para um gateway de instância única.
//
// Como o histórico só muda em escrita, uma chave sem escrita há mais de
// idleTTL só contém entradas expiradas e pode ser removida pelo janitor.
type MemoryStorage struct {
	mu           sync.RWMutex
	items        map[string]memoryItem
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type memoryItem struct {
	value     string
	writtenAt time.Time
}

type MemoryStorageOption func(*MemoryStorage)

func WithMemoryIdleTTL(d time.Duration) MemoryStorageOption {
	return func(s *MemoryStorage) { s.idleTTL = d }
}

func WithMemoryCleanupEvery(d time.Duration) MemoryStorageOption {
	return func(s *MemoryStorage) { s.cleanupEvery = d }
}

func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	s := &MemoryStorage{
		items:        make(map[string]memoryItem),
		idleTTL:      7 * 24 * time.Hour,
		cleanupEvery: 10 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[key]
	return it.value, ok, nil
}

func (s *MemoryStorage) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryItem{value: value, writtenAt: s.now()}
	return nil
}

func (s *MemoryStorage) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStorage) Close() error { return nil }

// Cleanup remove chaves sem escrita há mais de idleTTL.
func (s *MemoryStorage) Cleanup() int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, it := range s.items {
		if it.writtenAt.Before(cutoff) {
			delete(s.items, k)
			removed++
		}
	}
	return removed
}

// StartJanitor inicia uma goroutine que chama Cleanup periodicamente.
// Pare cancelando o contexto.
func (s *MemoryStorage) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 || s.idleTTL <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
