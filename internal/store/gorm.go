package store

import (
	"context"
	"errors"
	"time"

	"paywall-entitlement/internal/apperr"
	"paywall-entitlement/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore expects model.EntitlementRecord to be migrated already.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) Get(ctx context.Context, key string) (*model.Record, error) {
	var row model.EntitlementRecord
	err := s.db.WithContext(ctx).
		Where("store_key = ? AND paid = ? AND expires_at > ?", key, true, s.now().UTC()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.StoreUnavailable("store.sql.get", err)
	}
	return row.ToRecord(), nil
}

func (s *GormStore) Set(ctx context.Context, key string, rec *model.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return apperr.InvalidRequest("store.sql.set", "invalid_ttl")
	}

	row := &model.EntitlementRecord{
		StoreKey:    key,
		Paid:        rec.Paid,
		ConfirmedAt: rec.ConfirmedAt,
		SessionID:   rec.SessionID,
		Source:      string(rec.Source),
		ExpiresAt:   s.now().UTC().Add(ttl),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"paid",
			"confirmed_at",
			"session_id",
			"source",
			"expires_at",
			"updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return apperr.StoreUnavailable("store.sql.set", err)
	}
	return nil
}

// PurgeExpired deletes rows whose TTL has lapsed and returns how many were removed.
func (s *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now().UTC()).
		Delete(&model.EntitlementRecord{})
	if result.Error != nil {
		return 0, apperr.StoreUnavailable("store.sql.purge", result.Error)
	}
	return result.RowsAffected, nil
}
