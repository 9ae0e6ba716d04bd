package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"merchant-update-gate/middleware/throttle/domain"
)

var (
	ErrInvalidDSN        = errors.New("invalid storage dsn")
	ErrUnsupportedScheme = errors.New("unsupported storage scheme")
)

// Storage é um KeyValueStore que precisa ser fechado.
type Storage interface {
	domain.KeyValueStore
	io.Closer
}

type StorageOptions struct {
	// Retention é a janela de retenção do gate. Expiração física (TTL do
	// Redis, janitor da memória) nunca acontece antes dela.
	Retention time.Duration
	// RedisPrefix / RedisTTL: ver RedisStorage. RedisTTL 0 segue Retention.
	RedisPrefix string
	RedisTTL    time.Duration
	// MemoryCleanupEvery: intervalo do janitor do MemoryStorage (0 = padrão).
	MemoryCleanupEvery time.Duration
}

// OpenStorage escolhe o backend pelo esquema do DSN:
//
//	memory://                      -> MemoryStorage
//	file:///var/lib/x.json ou path -> FileStorage
//	redis://, rediss://            -> RedisStorage
//	postgres://, postgresql://     -> PostgresStorage
//	sqlite:///var/lib/x.db         -> SQLiteStorage
func OpenStorage(ctx context.Context, dsn string, opts StorageOptions) (Storage, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidDSN)
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDSN, err)
	}

	switch scheme := strings.ToLower(parsed.Scheme); scheme {
	case "memory", "mem", "inmem":
		var mopts []MemoryStorageOption
		if opts.Retention > 0 {
			mopts = append(mopts, WithMemoryIdleTTL(opts.Retention))
		}
		if opts.MemoryCleanupEvery > 0 {
			mopts = append(mopts, WithMemoryCleanupEvery(opts.MemoryCleanupEvery))
		}
		return NewMemoryStorage(mopts...), nil
	case "", "file":
		return NewFileStorage(dsnPath(dsn, parsed))
	case "redis", "rediss":
		var ropts []RedisStorageOption
		if opts.RedisPrefix != "" {
			ropts = append(ropts, WithRedisPrefix(opts.RedisPrefix))
		}
		if ttl := redisTTLFor(opts); ttl != 0 {
			ropts = append(ropts, WithRedisTTL(ttl))
		}
		return OpenRedisStorage(ctx, dsn, ropts...)
	case "postgres", "postgresql":
		return NewPostgresStorage(dsn)
	case "sqlite", "sqlite3":
		return NewSQLiteStorage(dsnPath(dsn, parsed))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// redisTTLFor devolve o TTL das chaves de histórico: RedisTTL, mas nunca
// menor que Retention (uma chave expirada antes some com entradas que ainda
// contam nos limites). Negativo desliga a expiração.
func redisTTLFor(opts StorageOptions) time.Duration {
	ttl := opts.RedisTTL
	if ttl < 0 {
		return ttl
	}
	if ttl < opts.Retention {
		ttl = opts.Retention
	}
	return ttl
}

// dsnPath extrai o caminho de file:///x, sqlite:///x, scheme://relativo/x
// ou de um path sem scheme.
func dsnPath(dsn string, parsed *url.URL) string {
	if parsed.Scheme == "" {
		return dsn
	}
	if parsed.Host != "" {
		return parsed.Host + parsed.Path
	}
	return parsed.Path
}

// StorageKind devolve um nome curto do backend para logs.
func StorageKind(s Storage) string {
	switch s.(type) {
	case *MemoryStorage:
		return "memory"
	case *FileStorage:
		return "file"
	case *SQLiteStorage:
		return "sqlite"
	case *RedisStorage:
		return "redis"
	case *PostgresStorage:
		return "postgres"
	default:
		return fmt.Sprintf("%T", s)
	}
}
