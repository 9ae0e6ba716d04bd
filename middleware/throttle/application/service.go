package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"merchant-update-gate/middleware/throttle/domain"
)

// Service concentra a regra de aplicação usada pelos adapters.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Gate *Gate
	// MinRetryAfter é usado quando o gate bloqueia sem recomendação.
	MinRetryAfter time.Duration
	// Locks serializa Attempt por merchant (capacidade 1). Sem ele, duas
	// tentativas simultâneas podem ler o mesmo histórico e passar as duas.
	Locks domain.SlotPool
}

// ErrAttemptAborted: o ctx acabou antes de conseguir o lock do merchant.
var ErrAttemptAborted = errors.New("throttle: attempt aborted before decision")

func (s Service) Decide(ctx context.Context, id domain.MerchantID) domain.Decision {
	if s.Gate == nil {
		return domain.Decision{Allowed: true, Reason: domain.ReasonNone}
	}
	if s.MinRetryAfter <= 0 {
		s.MinRetryAfter = 1 * time.Second
	}

	dec := s.Gate.Evaluate(ctx, id)
	if !dec.Allowed && dec.RetryAfter < s.MinRetryAfter {
		dec.RetryAfter = s.MinRetryAfter
	}
	return dec
}

// Attempt decide e, se permitido, registra a tentativa.
//
// O erro só vem do registro; a decisão continua válida mesmo com erro.
func (s Service) Attempt(ctx context.Context, id domain.MerchantID) (domain.Decision, error) {
	if s.Locks != nil && s.Gate != nil {
		release, ok := s.Locks.Acquire(ctx, string(id))
		if !ok {
			return domain.Decision{}, fmt.Errorf("%w: %v", ErrAttemptAborted, ctx.Err())
		}
		defer release()
	}

	dec := s.Decide(ctx, id)
	if !dec.Allowed || s.Gate == nil {
		return dec, nil
	}
	return dec, s.Gate.Record(ctx, id)
}
