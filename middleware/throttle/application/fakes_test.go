package application

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"merchant-update-gate/middleware/throttle/domain"
)

var errBoom = errors.New("boom")

type fakeStorage struct {
	items    map[string]string
	getErr   error
	setErr   error
	setCalls int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{items: make(map[string]string)}
}

func (s *fakeStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *fakeStorage) SetItem(_ context.Context, key, value string) error {
	s.setCalls++
	if s.setErr != nil {
		return s.setErr
	}
	s.items[key] = value
	return nil
}

func (s *fakeStorage) RemoveItem(_ context.Context, key string) error {
	delete(s.items, key)
	return nil
}

// relógio fixo em segundo cheio, para o formato RFC 1123 não perder precisão
var fixedNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestGate(st domain.KeyValueStore) *Gate {
	return &Gate{
		Storage: st,
		Now:     func() time.Time { return fixedNow },
		Logger:  quietLogger(),
	}
}

// seed grava um histórico com entradas de idades dadas em relação a fixedNow.
func seed(t *testing.T, st *fakeStorage, id domain.MerchantID, ages ...time.Duration) {
	t.Helper()
	entries := make([]time.Time, 0, len(ages))
	for _, a := range ages {
		entries = append(entries, fixedNow.Add(-a))
	}
	raw, err := EncodeHistory(entries)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	st.items[HistoryKey(id)] = raw
}
