package throttle

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"merchant-update-gate/middleware/throttle/application"
	"merchant-update-gate/middleware/throttle/domain"
	"merchant-update-gate/middleware/throttle/infra"
)

type Options struct {
	Gate  *application.Gate
	Stats domain.StatsStore
	// MerchantFn é obrigatório na prática; sem ele usa MerchantFromPath("/merchants").
	MerchantFn MerchantFunc
	// Methods limitados (padrão PUT, PATCH, POST). GET nunca deveria estar aqui.
	Methods       []string
	RejectStatus  int
	MinRetryAfter time.Duration
	// AddHeaders adiciona X-Merchant-Update-Decision / -Reason.
	AddHeaders bool
	Logger     *logrus.Entry
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.MerchantFn == nil {
		opts.MerchantFn = MerchantFromPath("/merchants")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	log := opts.Logger.WithField("component", "merchant_throttle")
	gated := methodSet(opts.Methods, http.MethodPut, http.MethodPatch, http.MethodPost)

	// decisão + registro de um merchant acontecem um de cada vez
	svc := application.Service{
		Gate:          opts.Gate,
		MinRetryAfter: opts.MinRetryAfter,
		Locks:         infra.NewKeyedPool(1),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !gated[r.Method] {
				next.ServeHTTP(w, r)
				return
			}
			id := opts.MerchantFn(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			reqID := r.Header.Get("X-Request-Id")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			entry := log.WithFields(logrus.Fields{
				"merchant":   id,
				"request_id": reqID,
			})

			dec, err := svc.Attempt(r.Context(), id)
			if errors.Is(err, application.ErrAttemptAborted) {
				// cliente foi embora esperando a vez do merchant
				entry.WithError(err).Debug("merchant update abandoned before decision")
				return
			}
			if err != nil {
				// a atualização segue: só perdemos o registro da tentativa
				entry.WithError(err).Warn("failed to record merchant update attempt")
			}
			if opts.Stats != nil {
				if err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					RequestID: reqID,
					Merchant:  id,
					Allowed:   dec.Allowed,
					Reason:    dec.Reason,
					Method:    r.Method,
					Path:      r.URL.Path,
					At:        time.Now(),
				}); err != nil {
					entry.WithError(err).Debug("stats record failed")
				}
			}

			if opts.AddHeaders {
				outcome := "allowed"
				if !dec.Allowed {
					outcome = "denied"
				}
				w.Header().Set("X-Merchant-Update-Decision", outcome)
				w.Header().Set("X-Merchant-Update-Reason", string(dec.Reason))
			}

			if !dec.Allowed {
				entry.WithFields(logrus.Fields{
					"reason":      dec.Reason,
					"retry_after": dec.RetryAfter,
				}).Info("merchant update throttled")
				setRetryAfter(w, dec.RetryAfter)
				writeJSON(w, opts.RejectStatus, errorBody{
					Error:             "merchant_update_throttled",
					Reason:            string(dec.Reason),
					RetryAfterSeconds: retryAfterSeconds(dec.RetryAfter),
				})
				return
			}

			entry.Debug("merchant update allowed")
			next.ServeHTTP(w, r)
		})
	}
}
