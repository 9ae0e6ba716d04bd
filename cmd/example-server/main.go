package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"merchant-update-gate/middleware/throttle"
	"merchant-update-gate/middleware/throttle/application"
	"merchant-update-gate/middleware/throttle/domain"
	"merchant-update-gate/middleware/throttle/infra"
)

func main() {
	log := logrus.WithField("app", "example-server")

	// Exemplo: middleware embutido direto na API do merchant (sem proxy)
	storage := infra.NewMemoryStorage()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	storage.StartJanitor(ctx)

	gate := &application.Gate{
		Storage: storage,
		Policy:  domain.DefaultPolicy(),
		Logger:  log.WithField("component", "gate"),
	}
	stats := infra.NewMemoryStatsStore(infra.WithTrackMerchants(true))

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newHandler(gate, stats, log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		t := stats.Total()
		log.WithFields(logrus.Fields{
			"allowed": t.Allowed,
			"denied":  t.Denied,
		}).Info("decisions")
	}()

	log.WithField("addr", addr).Info("example server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server error")
	}
}

// newHandler é a API fake do merchant: PATCH /merchants/{id} responde 200 e
// GET /merchants/{id}/update-status mostra o estado do throttle.
func newHandler(gate *application.Gate, stats domain.StatsStore, log *logrus.Entry) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("PATCH /merchants/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"merchant_id": r.PathValue("id"),
			"status":      "updated",
		})
	})
	api.Handle("GET /merchants/{id}/update-status", throttle.StatusHandler(gate, throttle.MerchantFromPathValue("id")))

	h := throttle.Middleware(throttle.Options{
		Gate:       gate,
		Stats:      stats,
		MerchantFn: throttle.MerchantFromPath("/merchants"),
		Methods:    []string{http.MethodPatch},
		AddHeaders: true,
		Logger:     log,
	})(api)
	h = throttle.InFlightMiddleware(throttle.InFlightOptions{
		MerchantFn:     throttle.MerchantFromPath("/merchants"),
		Methods:        []string{http.MethodPatch},
		AcquireTimeout: 5 * time.Second,
		Logger:         log,
	})(h)
	return h
}
