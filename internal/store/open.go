package store

import (
	"fmt"
	"strings"

	"paywall-entitlement/internal/config"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Open builds the configured backend and returns it with its effective name.
// A backend whose connection settings are missing degrades to the nop store
// instead of failing startup.
func Open(cfg config.Store, db *gorm.DB) (Store, string, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))

	switch backend {
	case BackendRedis:
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Warn().Msg("STORE_REDIS_URL not set; entitlement store disabled, all visits resolve as not entitled")
			return NewNopStore(), BackendNop, nil
		}
		s, err := NewRedisStoreFromURL(cfg.RedisURL)
		if err != nil {
			return nil, "", err
		}
		return s, BackendRedis, nil

	case BackendSQL:
		if db == nil {
			log.Warn().Msg("database unavailable; entitlement store disabled, all visits resolve as not entitled")
			return NewNopStore(), BackendNop, nil
		}
		return NewGormStore(db), BackendSQL, nil

	case BackendMemory:
		log.Warn().Msg("using in-memory entitlement store; records are lost on restart")
		return NewMemoryStore(), BackendMemory, nil

	case BackendNop, "":
		return NewNopStore(), BackendNop, nil
	}

	return nil, "", fmt.Errorf("unknown STORE_BACKEND %q", cfg.Backend)
}
