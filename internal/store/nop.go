package store

import (
	"context"
	"errors"
	"time"

	"paywall-entitlement/internal/apperr"
	"paywall-entitlement/internal/model"
)

var errNotConfigured = errors.New("entitlement store not configured")

type nopStore struct{}

// NewNopStore is used when no backend is configured: reads find nothing and
// writes are dropped, reported as StoreUnavailable.
func NewNopStore() Store {
	return nopStore{}
}

func (nopStore) Get(ctx context.Context, key string) (*model.Record, error) {
	return nil, nil
}

func (nopStore) Set(ctx context.Context, key string, rec *model.Record, ttl time.Duration) error {
	return apperr.StoreUnavailable("store.nop.set", errNotConfigured)
}
