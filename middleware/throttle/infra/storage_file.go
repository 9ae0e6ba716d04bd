package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStorage persiste todas as chaves em um único arquivo JSON.
//
// Cada escrita regrava o arquivo inteiro (temp + rename). Só é segura dentro
// de um processo; dois processos no mesmo arquivo podem perder escritas.
type FileStorage struct {
	path string
	mu   sync.Mutex
}

type fileStorageState struct {
	Items map[string]string `json:"items"`
}

func NewFileStorage(path string) (*FileStorage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty file path", ErrInvalidDSN)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage dir: %w", err)
		}
	}
	return &FileStorage{path: path}, nil
}

func (s *FileStorage) Path() string { return s.path }

func (s *FileStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := st.Items[key]
	return v, ok, nil
}

func (s *FileStorage) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	st.Items[key] = value
	return s.write(st)
}

func (s *FileStorage) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := st.Items[key]; !ok {
		return nil
	}
	delete(st.Items, key)
	return s.write(st)
}

func (s *FileStorage) Close() error { return nil }

func (s *FileStorage) read() (fileStorageState, error) {
	st := fileStorageState{Items: map[string]string{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	if st.Items == nil {
		st.Items = map[string]string{}
	}
	return st, nil
}

func (s *FileStorage) write(st fileStorageState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".merchant-gate-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}
