package service

import (
	"context"
	"errors"
	"time"

	"paywall-entitlement/internal/apperr"
	"paywall-entitlement/internal/client"
	"paywall-entitlement/internal/dto"
	"paywall-entitlement/internal/metrics"
	"paywall-entitlement/internal/model"
	"paywall-entitlement/internal/repository"
	"paywall-entitlement/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
)

// Webhook outcomes, as logged and counted.
const (
	OutcomeGranted      = "granted"
	OutcomeIgnored      = "ignored"
	OutcomeUnpaid       = "unpaid"
	OutcomeNoReference  = "no_reference"
	OutcomeFailed       = "failed"
	OutcomeInvalid      = "invalid"
	OutcomeUnauthorized = "unauthorized" // counted only; unverified deliveries are not logged
)

type ConfirmationService interface {
	// HandleEvent verifies and applies one webhook delivery. A nil error means
	// the delivery should be acknowledged.
	HandleEvent(ctx context.Context, rawBody []byte, signatureHeader string) (*dto.WebhookAck, error)
}

type confirmationServiceImpl struct {
	stripeClient     client.StripeClient
	store            store.Store
	webhookEventRepo repository.WebhookEventRepository
	metrics          metrics.MetricsCollector
	ttl              time.Duration
	defaultItem      string
	now              func() time.Time
}

// NewConfirmationService wires the receiver. webhookEventRepo may be nil when
// no database is configured; events are then only logged.
func NewConfirmationService(
	stripeClient client.StripeClient,
	entitlements store.Store,
	webhookEventRepo repository.WebhookEventRepository,
	collector metrics.MetricsCollector,
	ttl time.Duration,
	defaultItem string,
) ConfirmationService {
	return &confirmationServiceImpl{
		stripeClient:     stripeClient,
		store:            entitlements,
		webhookEventRepo: webhookEventRepo,
		metrics:          collector,
		ttl:              ttl,
		defaultItem:      defaultItem,
		now:              time.Now,
	}
}

func (s *confirmationServiceImpl) HandleEvent(ctx context.Context, rawBody []byte, signatureHeader string) (*dto.WebhookAck, error) {
	event, err := s.stripeClient.VerifyWebhookSignature(rawBody, signatureHeader)
	if err != nil {
		s.metrics.RecordWebhookEvent("unverified", OutcomeUnauthorized)
		log.Warn().Err(err).Msg("webhook rejected")
		return nil, err
	}

	eventType := string(event.Type)
	s.detectRedelivery(ctx, event.ID, eventType)

	record := &model.WebhookEvent{EventID: event.ID, EventType: eventType}

	switch eventType {
	case model.EventCheckoutCompleted, model.EventCheckoutAsyncPaymentSucceed:
		err = s.handleSessionPaid(ctx, event, record)
	default:
		record.Outcome = OutcomeIgnored
	}

	s.metrics.RecordWebhookEvent(eventType, record.Outcome)
	s.logEvent(ctx, record)

	if err != nil {
		return nil, err
	}
	return &dto.WebhookAck{Received: true, Outcome: record.Outcome}, nil
}

func (s *confirmationServiceImpl) handleSessionPaid(ctx context.Context, event *stripe.Event, record *model.WebhookEvent) error {
	const op = "webhook.checkout"

	session, err := client.DecodeCheckoutSession(event)
	if err != nil {
		record.Outcome = OutcomeInvalid
		return apperr.New(apperr.KindInvalidRequest, op, "invalid_payload", err)
	}

	token, itemKey := session.VisitToken(), resolveItem(session.ItemKey(), s.defaultItem)
	record.SessionID = session.ID
	record.Token = token
	record.ItemKey = itemKey

	logger := log.With().Str("event_id", event.ID).Str("session_id", session.ID).Str("item", itemKey).Logger()

	if !session.IsPaid() {
		record.Outcome = OutcomeUnpaid
		logger.Info().Str("payment_status", session.PaymentStatus).Msg("checkout completed without payment; waiting for async confirmation")
		return nil
	}

	if token == "" || !store.ValidKeyPart(token) || !store.ValidKeyPart(itemKey) {
		record.Outcome = OutcomeNoReference
		logger.Warn().Bool("has_token", token != "").Msg("paid session carries no usable visit reference; nothing recorded")
		return nil
	}

	rec := model.NewRecord(model.SourceWebhook, session.ID, s.now())
	if err := s.store.Set(ctx, store.Key(itemKey, token), rec, s.ttl); err != nil {
		record.Outcome = OutcomeFailed
		logger.Error().Err(err).Msg("entitlement write failed; provider will redeliver")
		if errors.Is(err, apperr.ErrStoreUnavailable) {
			return err
		}
		return apperr.StoreUnavailable(op, err)
	}

	record.Outcome = OutcomeGranted
	logger.Info().Msg("entitlement granted")
	return nil
}

func (s *confirmationServiceImpl) detectRedelivery(ctx context.Context, eventID, eventType string) {
	if s.webhookEventRepo == nil {
		return
	}
	previous, err := s.webhookEventRepo.Find(ctx, eventID)
	if err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("webhook event lookup failed")
		return
	}
	if previous != nil {
		log.Info().
			Str("event_id", eventID).
			Str("event_type", eventType).
			Str("previous_outcome", previous.Outcome).
			Int32("deliveries", previous.Deliveries).
			Msg("webhook redelivery")
	}
}

func (s *confirmationServiceImpl) logEvent(ctx context.Context, record *model.WebhookEvent) {
	if s.webhookEventRepo == nil {
		return
	}
	if err := s.webhookEventRepo.MarkProcessed(ctx, record); err != nil {
		log.Warn().Err(err).Str("event_id", record.EventID).Msg("record webhook event failed")
	}
}
