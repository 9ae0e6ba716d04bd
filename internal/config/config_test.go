package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"merchant-update-gate/middleware/throttle/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DSN != "memory://" {
		t.Fatalf("expected memory storage by default, got %q", cfg.Storage.DSN)
	}
	if got := cfg.Policy.Domain(); got != domain.DefaultPolicy() {
		t.Fatalf("expected default policy, got %+v", got)
	}
	if cfg.Gate.RejectStatus != 429 {
		t.Fatalf("expected reject status 429, got %d", cfg.Gate.RejectStatus)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  upstream_url: http://merchant-api:9000
storage:
  dsn: redis://localhost:6379/0
policy:
  cooldown: 2m
  daily_limit: 3
gate:
  methods: [PATCH]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.UpstreamURL != "http://merchant-api:9000" {
		t.Fatalf("upstream: got %q", cfg.Server.UpstreamURL)
	}
	if cfg.Policy.Cooldown != 2*time.Minute || cfg.Policy.DailyLimit != 3 {
		t.Fatalf("policy not loaded: %+v", cfg.Policy)
	}
	// campos ausentes no arquivo mantêm o padrão
	if cfg.Policy.WeeklyLimit != 5 {
		t.Fatalf("expected weekly limit default 5, got %d", cfg.Policy.WeeklyLimit)
	}
	if len(cfg.Gate.Methods) != 1 || cfg.Gate.Methods[0] != "PATCH" {
		t.Fatalf("methods: got %v", cfg.Gate.Methods)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  dsn: file:///tmp/a.json
policy:
  cooldown: 2m
`)
	t.Setenv("MUG_STORAGE_DSN", "postgres://gate:secret@db/gate")
	t.Setenv("MUG_POLICY_COOLDOWN", "90s")
	t.Setenv("MUG_GATE_METHODS", "PUT, PATCH")
	t.Setenv("MUG_CLIENT_LIMIT_RPS", "2.5")
	t.Setenv("MUG_GATE_ADD_HEADERS", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DSN != "postgres://gate:secret@db/gate" {
		t.Fatalf("dsn: got %q", cfg.Storage.DSN)
	}
	if cfg.Policy.Cooldown != 90*time.Second {
		t.Fatalf("cooldown: got %s", cfg.Policy.Cooldown)
	}
	if strings.Join(cfg.Gate.Methods, ",") != "PUT,PATCH" {
		t.Fatalf("methods: got %v", cfg.Gate.Methods)
	}
	if cfg.ClientLimit.RPS != 2.5 {
		t.Fatalf("rps: got %v", cfg.ClientLimit.RPS)
	}
	if !cfg.Gate.AddHeaders {
		t.Fatalf("expected add headers from env")
	}
}

func TestLoad_UnparseableEnvKeepsValue(t *testing.T) {
	t.Setenv("MUG_POLICY_DAILY_LIMIT", "two")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Policy.DailyLimit != 2 {
		t.Fatalf("expected default daily limit, got %d", cfg.Policy.DailyLimit)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := map[string]string{
		"bad log level":   "log:\n  level: loud\n",
		"zero limit":      "policy:\n  weekly_limit: 0\n",
		"bad method":      "gate:\n  methods: [GET]\n",
		"redis stats url": "stats:\n  redis:\n    enabled: true\n",
		"bad status":      "gate:\n  reject_status: 200\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestRedacted_MasksPasswords(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Storage.DSN = "postgres://gate:secret@db:5432/gate?sslmode=disable"
	cfg.Stats.Redis.URL = "redis://:hunter2@cache:6379/1"

	r := cfg.Redacted()
	if strings.Contains(r.Storage.DSN, "secret") || strings.Contains(r.Stats.Redis.URL, "hunter2") {
		t.Fatalf("credentials leaked: %q %q", r.Storage.DSN, r.Stats.Redis.URL)
	}
	if cfg.Storage.DSN != "postgres://gate:secret@db:5432/gate?sslmode=disable" {
		t.Fatalf("Redacted must not modify the original")
	}

	data, err := cfg.RedactedJSON()
	if err != nil {
		t.Fatalf("RedactedJSON: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Fatalf("credentials leaked in JSON: %s", data)
	}
}

func TestLoad_RedisTTLMustCoverRetention(t *testing.T) {
	t.Setenv("MUG_POLICY_RETENTION", "336h")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with retention only: %v", err)
	}
	if cfg.Storage.RedisTTL != 0 {
		t.Fatalf("expected redis ttl to follow retention by default, got %s", cfg.Storage.RedisTTL)
	}

	t.Setenv("MUG_STORAGE_REDIS_TTL", "168h")
	if _, err := Load(""); !errors.Is(err, ErrRedisTTLBelowRetention) {
		t.Fatalf("expected ErrRedisTTLBelowRetention, got %v", err)
	}

	t.Setenv("MUG_STORAGE_REDIS_TTL", "720h")
	if _, err := Load(""); err != nil {
		t.Fatalf("expected longer ttl to be accepted, got %v", err)
	}
}

func TestApplyDefaults_InFlightWaitIsBounded(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Gate.InFlight.AcquireTimeout <= 0 {
		t.Fatalf("expected a finite in-flight acquire timeout, got %s", cfg.Gate.InFlight.AcquireTimeout)
	}
}
