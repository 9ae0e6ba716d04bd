package domain

import "context"

// KeyValueStore é o armazenamento chave/valor onde o histórico de tentativas
// fica persistido (o equivalente ao localStorage do navegador).
//
// GetItem retorna ok=false quando a chave não existe; isso não é erro.
// Implementações podem ser memória, arquivo, Redis, Postgres, etc.
type KeyValueStore interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}
