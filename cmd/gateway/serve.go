package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"merchant-update-gate/internal/config"
	"merchant-update-gate/middleware/throttle"
	"merchant-update-gate/middleware/throttle/application"
	"merchant-update-gate/middleware/throttle/domain"
	"merchant-update-gate/middleware/throttle/infra"
)

func serveCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{
			Name:  "listen-address",
			Usage: "HTTP listen address (e.g. :8080)",
		},
		&cli.StringFlag{
			Name:  "upstream-url",
			Usage: "Merchant API base URL",
		},
	)
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the throttling reverse proxy",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v := cmd.String("listen-address"); v != "" {
				cfg.Server.ListenAddress = v
			}
			if v := cmd.String("upstream-url"); v != "" {
				cfg.Server.UpstreamURL = v
			}
			if cfg.Server.UpstreamURL == "" {
				return fmt.Errorf("upstream URL is required (--upstream-url or config file)")
			}

			log := newLogger(cfg.Log)
			log.WithFields(logrus.Fields{
				"version": version,
				"commit":  commit,
			}).Info("starting merchant-gate")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, log)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, log *logrus.Entry) error {
	target, err := url.Parse(cfg.Server.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid upstream URL: %w", err)
	}

	store, err := infra.OpenStorage(ctx, cfg.Storage.DSN, storageOptions(cfg))
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() { _ = store.Close() }()
	if mem, ok := store.(*infra.MemoryStorage); ok {
		mem.StartJanitor(ctx)
	}
	if p, ok := store.(idlePurger); ok {
		startPurger(ctx, p, cfg.Policy.Retention, cfg.Storage.CleanupInterval, log.WithField("component", "purger"))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	stats, closeStats, err := buildStats(ctx, cfg.Stats, reg)
	if err != nil {
		return err
	}
	defer closeStats()

	gate := &application.Gate{
		Storage: store,
		Policy:  cfg.Policy.Domain(),
		Logger:  log.WithField("component", "gate"),
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithError(err).WithField("path", r.URL.Path).Warn("proxy error")
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	var clients *infra.ClientRateLimiter
	if cfg.ClientLimit.Enabled {
		clients = infra.NewClientRateLimiter(cfg.ClientLimit.RPS, cfg.ClientLimit.Burst)
		clients.StartJanitor(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddress,
		Handler:           newHandler(cfg, gate, stats, clients, reg, proxy, log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":     cfg.Server.ListenAddress,
		"upstream": target.String(),
		"storage":  infra.StorageKind(store),
	}).Info("gateway listening")
	log.WithFields(logrus.Fields{
		"weekly_limit": cfg.Policy.WeeklyLimit,
		"daily_limit":  cfg.Policy.DailyLimit,
		"cooldown":     cfg.Policy.Cooldown,
		"in_flight":    cfg.Gate.InFlight.Enabled,
		"client_limit": cfg.ClientLimit.Enabled,
	}).Info("throttle policy")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("gateway stopped")
	return nil
}

// idlePurger é implementado pelos backends SQL, que não expiram sozinhos.
type idlePurger interface {
	PurgeIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// startPurger apaga periodicamente históricos sem escrita há mais que a
// retenção: todas as entradas deles já expiraram.
func startPurger(ctx context.Context, p idlePurger, retention, every time.Duration, log *logrus.Entry) {
	if every <= 0 || retention <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := p.PurgeIdle(ctx, time.Now().Add(-retention))
				if err != nil {
					log.WithError(err).Warn("purging idle histories")
					continue
				}
				if n > 0 {
					log.WithField("removed", n).Debug("purged idle histories")
				}
			}
		}
	}()
}

func storageOptions(cfg *config.Config) infra.StorageOptions {
	return infra.StorageOptions{
		Retention:          cfg.Policy.Retention,
		RedisPrefix:        cfg.Storage.RedisPrefix,
		RedisTTL:           cfg.Storage.RedisTTL,
		MemoryCleanupEvery: cfg.Storage.CleanupInterval,
	}
}

// buildStats monta os destinos das estatísticas de decisão. O func devolvido
// fecha as conexões abertas aqui.
func buildStats(ctx context.Context, cfg config.StatsConfig, reg prometheus.Registerer) (domain.StatsStore, func(), error) {
	var stores infra.MultiStats
	closer := func() {}

	if cfg.Prometheus && reg != nil {
		ps, err := infra.NewPrometheusStatsStore(reg)
		if err != nil {
			return nil, closer, fmt.Errorf("registering decision metrics: %w", err)
		}
		stores = append(stores, ps)
	}

	if cfg.Redis.Enabled {
		ropts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, closer, fmt.Errorf("parsing stats redis url: %w", err)
		}
		rdb := redis.NewClient(ropts)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err = rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, closer, fmt.Errorf("redis stats ping: %w", err)
		}
		closer = func() { _ = rdb.Close() }

		stores = append(stores, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Redis.Prefix),
			infra.WithStatsTTL(cfg.Redis.TTL),
			infra.WithStatsBucket(cfg.Redis.Bucket),
			infra.WithStatsTrackMerchants(cfg.Redis.TrackMerchants),
		))
	}

	switch len(stores) {
	case 0:
		return nil, closer, nil
	case 1:
		return stores[0], closer, nil
	default:
		return stores, closer, nil
	}
}

// newHandler monta a cadeia (de fora para dentro): limite por cliente ->
// uma atualização em voo por merchant -> throttle do merchant -> upstream.
// Status, /health, /metrics e /config são servidos localmente.
func newHandler(
	cfg *config.Config,
	gate *application.Gate,
	stats domain.StatsStore,
	clients *infra.ClientRateLimiter,
	gatherer prometheus.Gatherer,
	upstream http.Handler,
	log *logrus.Entry,
) http.Handler {
	prefix := "/" + strings.Trim(cfg.Gate.MerchantPathPrefix, "/")
	merchantFn := throttle.MerchantFromPath(prefix)
	if cfg.Gate.MerchantHeader != "" {
		merchantFn = throttle.ChainMerchantFuncs(merchantFn, throttle.MerchantFromHeader(cfg.Gate.MerchantHeader))
	}

	h := throttle.Middleware(throttle.Options{
		Gate:          gate,
		Stats:         stats,
		MerchantFn:    merchantFn,
		Methods:       cfg.Gate.Methods,
		RejectStatus:  cfg.Gate.RejectStatus,
		MinRetryAfter: cfg.Gate.MinRetryAfter,
		AddHeaders:    cfg.Gate.AddHeaders,
		Logger:        log,
	})(upstream)
	// a vaga é pega antes da decisão e solta só depois do upstream responder
	if cfg.Gate.InFlight.Enabled {
		h = throttle.InFlightMiddleware(throttle.InFlightOptions{
			MerchantFn:     merchantFn,
			Methods:        cfg.Gate.Methods,
			PerMerchant:    cfg.Gate.InFlight.PerMerchant,
			AcquireTimeout: cfg.Gate.InFlight.AcquireTimeout,
			Logger:         log,
		})(h)
	}
	if clients != nil {
		h = throttle.ClientLimitMiddleware(throttle.ClientLimitOptions{
			Limiter:            clients,
			KeyHeader:          cfg.ClientLimit.KeyHeader,
			TrustXForwardedFor: cfg.ClientLimit.TrustXForwardedFor,
			MerchantFn:         merchantFn,
			Methods:            cfg.Gate.Methods,
			Stats:              stats,
			MinRetryAfter:      cfg.Gate.MinRetryAfter,
			AddHeaders:         cfg.Gate.AddHeaders,
			Logger:             log,
		})(h)
	}

	mux := http.NewServeMux()
	mux.Handle("GET "+prefix+"/{id}/update-status", throttle.StatusHandler(gate, throttle.MerchantFromPathValue("id")))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /config", func(w http.ResponseWriter, _ *http.Request) {
		data, err := cfg.RedactedJSON()
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})
	if cfg.Server.EnableMetrics && gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}
	mux.Handle("/", h)
	return mux
}
