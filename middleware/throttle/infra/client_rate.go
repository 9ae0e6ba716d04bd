package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"merchant-update-gate/middleware/throttle/domain"
)

// ClientRateLimiter guarda um token bucket por domain.ClientKey. Um cliente
// martelando o merchant A não gasta a cota dele para o merchant B.
//
// Em vez de Allow, usa Reserve: quando nega, devolve na Decision quanto falta
// para o próximo token, e a reserva é cancelada para não atrasar o bucket.
type ClientRateLimiter struct {
	mu      sync.Mutex
	buckets map[domain.ClientKey]*clientBucket
	rps     rate.Limit
	burst   int

	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type clientBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type ClientRateOption func(*ClientRateLimiter)

// WithClientIdleTTL: buckets sem uso há mais que d são descartados (um
// bucket parado por 1/rps*burst já está cheio de novo, então nada se perde).
func WithClientIdleTTL(d time.Duration) ClientRateOption {
	return func(l *ClientRateLimiter) { l.idleTTL = d }
}

func WithClientCleanupEvery(d time.Duration) ClientRateOption {
	return func(l *ClientRateLimiter) { l.cleanupEvery = d }
}

func withClientClock(now func() time.Time) ClientRateOption {
	return func(l *ClientRateLimiter) { l.now = now }
}

func NewClientRateLimiter(rps float64, burst int, opts ...ClientRateOption) *ClientRateLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &ClientRateLimiter{
		buckets:      make(map[domain.ClientKey]*clientBucket),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *ClientRateLimiter) RPS() float64 { return float64(l.rps) }
func (l *ClientRateLimiter) Burst() int   { return l.burst }

// Take implementa domain.ClientRateLimiter.
func (l *ClientRateLimiter) Take(key domain.ClientKey) domain.Decision {
	now := l.now()
	lim := l.limiter(key, now)

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return domain.Decision{Allowed: false, Reason: domain.ReasonClientRate}
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return domain.Decision{Allowed: false, Reason: domain.ReasonClientRate, RetryAfter: wait}
	}
	return domain.Decision{Allowed: true, Reason: domain.ReasonNone}
}

func (l *ClientRateLimiter) limiter(key domain.ClientKey, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		b.lastSeen = now
		return b.lim
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.buckets[key] = &clientBucket{lim: lim, lastSeen: now}
	return lim
}

func (l *ClientRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Cleanup remove buckets ociosos e devolve quantos saíram.
func (l *ClientRateLimiter) Cleanup() int {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}

// StartJanitor chama Cleanup periodicamente até o ctx encerrar.
func (l *ClientRateLimiter) StartJanitor(ctx context.Context) {
	if l.cleanupEvery <= 0 || l.idleTTL <= 0 {
		return
	}

	t := time.NewTicker(l.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}
