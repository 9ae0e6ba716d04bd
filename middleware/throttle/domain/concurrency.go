package domain

import "context"

// SlotPool limita quantas operações por chave podem estar em andamento
// ao mesmo tempo (ex: uma atualização por merchant).
//
// Acquire bloqueia até conseguir uma vaga para a chave ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool)
}
