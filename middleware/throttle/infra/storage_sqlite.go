package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteStorageSchema = `
	CREATE TABLE IF NOT EXISTS merchant_gate_storage (
		item_key TEXT PRIMARY KEY,
		item_value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`

// SQLiteStorage é o equivalente local do PostgresStorage: um arquivo, sem
// servidor. Bom para o CLI e para um gateway de instância única que precisa
// sobreviver a restart.
type SQLiteStorage struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", ErrInvalidDSN)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// um escritor por vez; evita "database is locked"
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteStorageSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating storage table: %w", err)
	}
	return &SQLiteStorage{db: db, path: path, now: time.Now}, nil
}

func (s *SQLiteStorage) Path() string { return s.path }

func (s *SQLiteStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT item_value FROM merchant_gate_storage WHERE item_key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStorage) SetItem(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchant_gate_storage (item_key, item_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (item_key)
		DO UPDATE SET item_value = excluded.item_value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM merchant_gate_storage WHERE item_key = ?", key); err != nil {
		return fmt.Errorf("sqlite delete %s: %w", key, err)
	}
	return nil
}

// PurgeIdle apaga linhas sem escrita desde antes de cutoff.
func (s *SQLiteStorage) PurgeIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM merchant_gate_storage WHERE updated_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
