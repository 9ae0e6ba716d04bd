package config

import (
	"net/http"
	"time"

	"merchant-update-gate/middleware/throttle/domain"
)

// ApplyDefaults preenche os valores base. Arquivo e env vêm por cima.
func ApplyDefaults(cfg *Config) {
	// --- Log ---
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	// --- Server ---
	cfg.Server.ListenAddress = ":8080"
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Server.EnableMetrics = true

	// --- Storage ---
	cfg.Storage.DSN = "memory://"
	cfg.Storage.RedisPrefix = "merchant-gate"
	cfg.Storage.RedisTTL = 0 // segue policy.retention
	cfg.Storage.CleanupInterval = 10 * time.Minute

	// --- Policy ---
	p := domain.DefaultPolicy()
	cfg.Policy.Retention = p.Retention
	cfg.Policy.WeeklyLimit = p.WeeklyLimit
	cfg.Policy.DailyWindow = p.DailyWindow
	cfg.Policy.DailyLimit = p.DailyLimit
	cfg.Policy.Cooldown = p.Cooldown
	cfg.Policy.InProgressWindow = p.InProgressWindow

	// --- Gate ---
	cfg.Gate.MerchantPathPrefix = "/merchants"
	cfg.Gate.MerchantHeader = "X-Merchant-Id"
	cfg.Gate.Methods = []string{http.MethodPut, http.MethodPatch, http.MethodPost}
	cfg.Gate.RejectStatus = http.StatusTooManyRequests
	cfg.Gate.MinRetryAfter = 1 * time.Second
	cfg.Gate.InFlight.Enabled = true
	cfg.Gate.InFlight.PerMerchant = 1
	cfg.Gate.InFlight.AcquireTimeout = 5 * time.Second

	// --- Client limit ---
	cfg.ClientLimit.Enabled = false
	cfg.ClientLimit.RPS = 10
	cfg.ClientLimit.Burst = 20

	// --- Stats ---
	cfg.Stats.Prometheus = true
	cfg.Stats.Redis.Prefix = "merchant-gate:stats"
	cfg.Stats.Redis.TTL = 24 * time.Hour
	cfg.Stats.Redis.Bucket = "minute"
}
