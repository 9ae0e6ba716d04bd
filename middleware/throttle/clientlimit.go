package throttle

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"merchant-update-gate/middleware/throttle/domain"
)

type ClientLimitOptions struct {
	Limiter            domain.ClientRateLimiter
	KeyFn              ClientKeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	// MerchantFn + Methods: em atualizações o bucket é (cliente, merchant).
	// Sem MerchantFn o bucket é só do cliente.
	MerchantFn MerchantFunc
	Methods    []string
	// Stats recebe as negações de atualizações com Reason client_rate.
	Stats         domain.StatsStore
	RejectStatus  int
	MinRetryAfter time.Duration
	AddHeaders    bool
	Logger        *logrus.Entry
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// ClientLimitMiddleware aplica o token bucket por cliente. Sem Limiter, não faz nada.
func ClientLimitMiddleware(opts ClientLimitOptions) func(next http.Handler) http.Handler {
	if opts.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.MinRetryAfter <= 0 {
		opts.MinRetryAfter = time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultClientKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	log := opts.Logger.WithField("component", "client_limit")
	updates := methodSet(opts.Methods, http.MethodPut, http.MethodPatch, http.MethodPost)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.ClientKey{Client: opts.KeyFn(r)}
			if opts.MerchantFn != nil && updates[r.Method] {
				key.Merchant = opts.MerchantFn(r)
			}

			if opts.AddHeaders {
				w.Header().Set("X-RateLimit-Key", key.Client)
				if ri, ok := opts.Limiter.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", strconv.FormatFloat(ri.RPS(), 'f', -1, 64))
					w.Header().Set("X-RateLimit-Burst", strconv.Itoa(ri.Burst()))
				}
			}

			dec := opts.Limiter.Take(key)
			if dec.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			wait := dec.RetryAfter
			if wait < opts.MinRetryAfter {
				wait = opts.MinRetryAfter
			}
			entry := log.WithFields(logrus.Fields{
				"client":      key.Client,
				"merchant":    key.Merchant,
				"retry_after": wait,
			})
			entry.Debug("client rate limited")

			if opts.Stats != nil && key.Merchant != "" {
				if err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					RequestID: r.Header.Get("X-Request-Id"),
					Merchant:  key.Merchant,
					Allowed:   false,
					Reason:    dec.Reason,
					Method:    r.Method,
					Path:      r.URL.Path,
					At:        time.Now(),
				}); err != nil {
					entry.WithError(err).Debug("stats record failed")
				}
			}

			setRetryAfter(w, wait)
			writeJSON(w, opts.RejectStatus, errorBody{
				Error:             "rate_limited",
				Reason:            string(dec.Reason),
				RetryAfterSeconds: retryAfterSeconds(wait),
			})
		})
	}
}
