package throttle

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"merchant-update-gate/middleware/throttle/application"
	"merchant-update-gate/middleware/throttle/domain"
	"merchant-update-gate/middleware/throttle/infra"
)

type InFlightOptions struct {
	MerchantFn MerchantFunc
	Methods    []string
	// PerMerchant é o número de atualizações simultâneas por merchant (padrão 1).
	PerMerchant    int
	RejectStatus   int
	AcquireTimeout time.Duration
	Pool           domain.SlotPool
	Logger         *logrus.Entry
}

// InFlightMiddleware segura uma atualização por merchant de cada vez neste
// processo. Outra instância do gateway não enxerga essas vagas.
func InFlightMiddleware(opts InFlightOptions) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusConflict
	}
	if opts.MerchantFn == nil {
		opts.MerchantFn = MerchantFromPath("/merchants")
	}
	if opts.Pool == nil {
		opts.Pool = infra.NewKeyedPool(opts.PerMerchant)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	log := opts.Logger.WithField("component", "merchant_inflight")
	gated := methodSet(opts.Methods, http.MethodPut, http.MethodPatch, http.MethodPost)

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := opts.MerchantFn(r)
			if !gated[r.Method] || id == "" {
				next.ServeHTTP(w, r)
				return
			}

			release, ok := svc.Acquire(r.Context(), id)
			if !ok {
				log.WithField("merchant", id).Info("merchant update already in flight")
				writeJSON(w, opts.RejectStatus, errorBody{Error: "merchant_update_in_progress"})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
