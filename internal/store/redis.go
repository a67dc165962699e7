package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paywall-entitlement/internal/apperr"
	"paywall-entitlement/internal/model"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL parses a redis:// or rediss:// URL. The connection is
// lazy: an unreachable server shows up as StoreUnavailable on first use.
func NewRedisStoreFromURL(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts)), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*model.Record, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, apperr.StoreUnavailable("store.redis.get", err)
	}

	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", key, err)
	}
	if !rec.Paid {
		return nil, nil
	}
	return &rec, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, rec *model.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return apperr.InvalidRequest("store.redis.set", "invalid_ttl")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return apperr.StoreUnavailable("store.redis.set", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return apperr.StoreUnavailable("store.redis.ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
