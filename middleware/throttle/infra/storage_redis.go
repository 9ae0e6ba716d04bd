package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage guarda cada chave como uma string Redis sob um prefixo.
//
// SetItem aplica TTL: um histórico sem escrita por mais tempo que a janela de
// retenção só tem entradas expiradas, então o Redis pode apagá-lo sozinho.
type RedisStorage struct {
	rdb *redis.Client

	prefix string
	// ttl <= 0 desliga a expiração.
	ttl time.Duration
}

type RedisStorageOption func(*RedisStorage)

func WithRedisPrefix(prefix string) RedisStorageOption {
	return func(s *RedisStorage) { s.prefix = strings.Trim(prefix, ":") }
}

func WithRedisTTL(d time.Duration) RedisStorageOption {
	return func(s *RedisStorage) { s.ttl = d }
}

func NewRedisStorage(rdb *redis.Client, opts ...RedisStorageOption) *RedisStorage {
	s := &RedisStorage{
		rdb:    rdb,
		prefix: "merchant-gate",
		ttl:    7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenRedisStorage conecta usando redis.ParseURL (redis:// ou rediss://) e
// valida a conexão com PING.
func OpenRedisStorage(ctx context.Context, url string, opts ...RedisStorageOption) (*RedisStorage, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := redis.NewClient(ropts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisStorage(rdb, opts...), nil
}

func (s *RedisStorage) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *RedisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStorage) SetItem(ctx context.Context, key, value string) error {
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) RemoveItem(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
