// Package config carrega, valida e completa com padrões a configuração do
// merchant-gate.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"merchant-update-gate/middleware/throttle/domain"
)

// Config é a configuração completa.
type Config struct {
	Log         LogConfig         `yaml:"log"          json:"log"`
	Server      ServerConfig      `yaml:"server"       json:"server"`
	Storage     StorageConfig     `yaml:"storage"      json:"storage"`
	Policy      PolicyConfig      `yaml:"policy"       json:"policy"`
	Gate        GateConfig        `yaml:"gate"         json:"gate"`
	ClientLimit ClientLimitConfig `yaml:"client_limit" json:"client_limit"`
	Stats       StatsConfig       `yaml:"stats"        json:"stats"`
}

type LogConfig struct {
	Level  string `yaml:"level"  json:"level"  env:"MUG_LOG_LEVEL"  validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	Format string `yaml:"format" json:"format" env:"MUG_LOG_FORMAT" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	ListenAddress   string        `yaml:"listen_address"   json:"listen_address"   env:"MUG_LISTEN_ADDRESS"   validate:"required"`
	UpstreamURL     string        `yaml:"upstream_url"     json:"upstream_url"     env:"MUG_UPSTREAM_URL"     validate:"omitempty,url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" env:"MUG_SHUTDOWN_TIMEOUT" validate:"min=0"`
	EnableMetrics   bool          `yaml:"enable_metrics"   json:"enable_metrics"   env:"MUG_ENABLE_METRICS"`
}

// StorageConfig escolhe onde ficam os históricos (ver infra.OpenStorage).
type StorageConfig struct {
	DSN             string        `yaml:"dsn"              json:"dsn"              env:"MUG_STORAGE_DSN"              validate:"required"`
	RedisPrefix     string        `yaml:"redis_prefix"     json:"redis_prefix"     env:"MUG_STORAGE_REDIS_PREFIX"`
	RedisTTL        time.Duration `yaml:"redis_ttl"        json:"redis_ttl"        env:"MUG_STORAGE_REDIS_TTL"        validate:"min=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval" env:"MUG_STORAGE_CLEANUP_INTERVAL" validate:"min=0"`
}

// PolicyConfig espelha domain.Policy.
type PolicyConfig struct {
	Retention        time.Duration `yaml:"retention"          json:"retention"          env:"MUG_POLICY_RETENTION"          validate:"gt=0"`
	WeeklyLimit      int           `yaml:"weekly_limit"       json:"weekly_limit"       env:"MUG_POLICY_WEEKLY_LIMIT"       validate:"min=1"`
	DailyWindow      time.Duration `yaml:"daily_window"       json:"daily_window"       env:"MUG_POLICY_DAILY_WINDOW"       validate:"gt=0"`
	DailyLimit       int           `yaml:"daily_limit"        json:"daily_limit"        env:"MUG_POLICY_DAILY_LIMIT"        validate:"min=1"`
	Cooldown         time.Duration `yaml:"cooldown"           json:"cooldown"           env:"MUG_POLICY_COOLDOWN"           validate:"gt=0"`
	InProgressWindow time.Duration `yaml:"in_progress_window" json:"in_progress_window" env:"MUG_POLICY_IN_PROGRESS_WINDOW" validate:"gt=0"`
}

func (p PolicyConfig) Domain() domain.Policy {
	return domain.Policy{
		Retention:        p.Retention,
		WeeklyLimit:      p.WeeklyLimit,
		DailyWindow:      p.DailyWindow,
		DailyLimit:       p.DailyLimit,
		Cooldown:         p.Cooldown,
		InProgressWindow: p.InProgressWindow,
	}
}

// GateConfig define quais requisições passam pelo throttle e como a recusa
// é respondida.
type GateConfig struct {
	MerchantPathPrefix string         `yaml:"merchant_path_prefix" json:"merchant_path_prefix" env:"MUG_GATE_MERCHANT_PATH_PREFIX" validate:"required,startswith=/"`
	MerchantHeader     string         `yaml:"merchant_header"      json:"merchant_header"      env:"MUG_GATE_MERCHANT_HEADER"`
	Methods            []string       `yaml:"methods"              json:"methods"              env:"MUG_GATE_METHODS"              validate:"dive,oneof=POST PUT PATCH DELETE"`
	RejectStatus       int            `yaml:"reject_status"        json:"reject_status"        env:"MUG_GATE_REJECT_STATUS"        validate:"omitempty,min=400,max=599"`
	MinRetryAfter      time.Duration  `yaml:"min_retry_after"      json:"min_retry_after"      env:"MUG_GATE_MIN_RETRY_AFTER"      validate:"min=0"`
	AddHeaders         bool           `yaml:"add_headers"          json:"add_headers"          env:"MUG_GATE_ADD_HEADERS"`
	InFlight           InFlightConfig `yaml:"in_flight"            json:"in_flight"`
}

type InFlightConfig struct {
	Enabled        bool          `yaml:"enabled"         json:"enabled"         env:"MUG_INFLIGHT_ENABLED"`
	PerMerchant    int           `yaml:"per_merchant"    json:"per_merchant"    env:"MUG_INFLIGHT_PER_MERCHANT"    validate:"omitempty,min=1"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout" json:"acquire_timeout" env:"MUG_INFLIGHT_ACQUIRE_TIMEOUT" validate:"min=0"`
}

// ClientLimitConfig: token bucket por cliente, na frente do throttle.
type ClientLimitConfig struct {
	Enabled            bool    `yaml:"enabled"              json:"enabled"              env:"MUG_CLIENT_LIMIT_ENABLED"`
	RPS                float64 `yaml:"rps"                  json:"rps"                  env:"MUG_CLIENT_LIMIT_RPS"       validate:"gt=0"`
	Burst              int     `yaml:"burst"                json:"burst"                env:"MUG_CLIENT_LIMIT_BURST"     validate:"min=1"`
	KeyHeader          string  `yaml:"key_header"           json:"key_header"           env:"MUG_CLIENT_LIMIT_KEY_HEADER"`
	TrustXForwardedFor bool    `yaml:"trust_x_forwarded_for" json:"trust_x_forwarded_for" env:"MUG_TRUST_XFF"`
}

type StatsConfig struct {
	Prometheus bool             `yaml:"prometheus" json:"prometheus" env:"MUG_STATS_PROMETHEUS"`
	Redis      RedisStatsConfig `yaml:"redis"      json:"redis"`
}

type RedisStatsConfig struct {
	Enabled        bool          `yaml:"enabled"         json:"enabled"         env:"MUG_STATS_REDIS_ENABLED"`
	URL            string        `yaml:"url"             json:"url"             env:"MUG_STATS_REDIS_URL"             validate:"required_if=Enabled true"`
	Prefix         string        `yaml:"prefix"          json:"prefix"          env:"MUG_STATS_REDIS_PREFIX"`
	TTL            time.Duration `yaml:"ttl"             json:"ttl"             env:"MUG_STATS_REDIS_TTL"             validate:"min=0"`
	Bucket         string        `yaml:"bucket"          json:"bucket"          env:"MUG_STATS_REDIS_BUCKET"          validate:"omitempty,oneof=minute none"`
	TrackMerchants bool          `yaml:"track_merchants" json:"track_merchants" env:"MUG_STATS_REDIS_TRACK_MERCHANTS"`
}

// Load aplica, nesta ordem: padrões, arquivo YAML (opcional, path vazio pula),
// variáveis de ambiente (tag env) e validação.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides percorre a struct e sobrescreve os campos com tag "env"
// cuja variável está definida.
func applyEnvOverrides(cfg *Config) {
	applyEnvOverridesOnValue(reflect.ValueOf(cfg))
}

func applyEnvOverridesOnValue(v reflect.Value) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if fieldVal.Kind() == reflect.Struct {
			applyEnvOverridesOnValue(fieldVal.Addr())
			continue
		}

		envKey := field.Tag.Get("env")
		if envKey == "" {
			continue
		}
		envVal, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}
		setFieldFromString(fieldVal, envVal)
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldFromString aceita string, bool, int, float64, time.Duration e
// []string (separado por vírgula). Valor inválido mantém o campo como está.
func setFieldFromString(field reflect.Value, raw string) {
	if !field.CanSet() {
		return
	}

	if field.Type() == durationType {
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
			field.SetInt(int64(d))
		}
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)

	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
		}

	case reflect.Int:
		if n, err := strconv.Atoi(raw); err == nil {
			field.SetInt(int64(n))
		}

	case reflect.Float64:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			field.SetFloat(f)
		}

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(raw, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				result = append(result, s)
			}
		}
		field.Set(reflect.ValueOf(result))
	}
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}

// Redacted devolve uma cópia com as senhas dos DSNs mascaradas.
func (c *Config) Redacted() Config {
	cp := *c
	cp.Storage.DSN = redactDSN(cp.Storage.DSN)
	cp.Stats.Redis.URL = redactDSN(cp.Stats.Redis.URL)
	return cp
}

func (c *Config) RedactedJSON() ([]byte, error) {
	data, err := json.MarshalIndent(c.Redacted(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling redacted config: %w", err)
	}
	return data, nil
}
