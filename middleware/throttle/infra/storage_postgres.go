package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const (
	postgresStorageTableName = "merchant_gate_storage"
	postgresOperationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresStorage guarda cada chave em uma linha. A tabela é criada na
// primeira operação.
type PostgresStorage struct {
	dsn       string
	tableName string
	openDB    sqlOpenFunc

	initMu sync.Mutex
	db     *sql.DB
}

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty postgres dsn", ErrInvalidDSN)
	}
	return &PostgresStorage{
		dsn:       dsn,
		tableName: postgresStorageTableName,
		openDB:    sql.Open,
	}, nil
}

func (s *PostgresStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := s.ensureReady(); err != nil {
		return "", false, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT item_value FROM %s WHERE item_key = $1", postgresQuoteIdentifier(s.tableName))
	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStorage) SetItem(ctx context.Context, key, value string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (item_key, item_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (item_key)
		DO UPDATE SET item_value = EXCLUDED.item_value, updated_at = NOW()`, postgresQuoteIdentifier(s.tableName))
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStorage) RemoveItem(ctx context.Context, key string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE item_key = $1", postgresQuoteIdentifier(s.tableName))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("postgres delete %s: %w", key, err)
	}
	return nil
}

// PurgeIdle apaga linhas sem escrita desde antes de cutoff.
func (s *PostgresStorage) PurgeIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.ensureReady(); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE updated_at < $1", postgresQuoteIdentifier(s.tableName))
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres purge: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStorage) Close() error {
	if s == nil {
		return nil
	}
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ensureReady abre a conexão e cria a tabela na primeira operação. Roda com
// contexto próprio: cancelar a requisição não derruba a inicialização. Erro
// não fica guardado, a próxima operação tenta de novo.
func (s *PostgresStorage) ensureReady() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.db != nil {
		return nil
	}

	db, err := s.openDB("postgres", s.dsn)
	if err != nil {
		return fmt.Errorf("opening postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			item_key TEXT PRIMARY KEY,
			item_value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, postgresQuoteIdentifier(s.tableName))
	if _, err := db.ExecContext(ctx, query); err != nil {
		_ = db.Close()
		return fmt.Errorf("creating storage table: %w", err)
	}
	s.db = db
	return nil
}

func postgresQuoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "\"\""
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
