package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checa as tags validate da Config.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	// o Redis não pode apagar um histórico que ainda conta nos limites
	if cfg.Storage.RedisTTL > 0 && cfg.Storage.RedisTTL < cfg.Policy.Retention {
		return fmt.Errorf("config validation failed: %w", ErrRedisTTLBelowRetention)
	}
	return nil
}

var ErrRedisTTLBelowRetention = errors.New("storage.redis_ttl must be 0 or at least policy.retention")
