// Package store holds entitlement records keyed by content item and visit token.
// Every backend is last-write-wins: writers only ever assert the same positive
// fact, so concurrent writes for one key need no coordination.
package store

import (
	"context"
	"time"

	"paywall-entitlement/internal/model"
)

const (
	BackendRedis  = "redis"
	BackendSQL    = "sql"
	BackendMemory = "memory"
	BackendNop    = "nop"

	keyPrefix      = "entitlement:"
	maxKeyPartSize = 128
)

type Store interface {
	// Get returns nil, nil when no live record exists for key.
	Get(ctx context.Context, key string) (*model.Record, error)
	Set(ctx context.Context, key string, rec *model.Record, ttl time.Duration) error
}

// Key builds entitlement:<itemKey>:<token>.
func Key(itemKey, token string) string {
	return keyPrefix + itemKey + ":" + token
}

// ValidKeyPart reports whether s can be used as an item key or token inside a
// store key: 1..128 characters of [A-Za-z0-9._-].
func ValidKeyPart(s string) bool {
	if len(s) == 0 || len(s) > maxKeyPartSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-' || c == '.' {
			continue
		}
		return false
	}
	return true
}
