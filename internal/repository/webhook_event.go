package repository

import (
	"context"
	"errors"
	"time"

	"paywall-entitlement/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventRepository interface {
	// MarkProcessed records the outcome of a delivery. A redelivered event
	// overwrites the previous outcome and bumps the delivery count.
	MarkProcessed(ctx context.Context, event *model.WebhookEvent) error
	// Find returns nil, nil for an event never seen before.
	Find(ctx context.Context, eventID string) (*model.WebhookEvent, error)
}

type webhookEventRepositoryImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepositoryImpl{db: db}
}

func (r *webhookEventRepositoryImpl) MarkProcessed(ctx context.Context, event *model.WebhookEvent) error {
	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now().UTC()
	}
	if event.Deliveries == 0 {
		event.Deliveries = 1
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"outcome":      event.Outcome,
			"session_id":   event.SessionID,
			"token":        event.Token,
			"item_key":     event.ItemKey,
			"processed_at": event.ProcessedAt,
			"deliveries":   gorm.Expr("deliveries + 1"),
			"updated_at":   time.Now().UTC(),
		}),
	}).Create(event).Error
}

func (r *webhookEventRepositoryImpl) Find(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}
