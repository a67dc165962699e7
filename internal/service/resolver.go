package service

import (
	"context"
	"strings"
	"time"

	"paywall-entitlement/internal/apperr"
	"paywall-entitlement/internal/client"
	"paywall-entitlement/internal/dto"
	"paywall-entitlement/internal/metrics"
	"paywall-entitlement/internal/model"
	"paywall-entitlement/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	SourceStore    = "store"
	SourceProvider = "provider"
)

type EntitlementResolver interface {
	// Resolve never fails: every error is folded into a not-entitled answer.
	Resolve(ctx context.Context, token, itemKey, sessionID string) *dto.StatusResponse
}

type entitlementResolverImpl struct {
	stripeClient    client.StripeClient
	store           store.Store
	metrics         metrics.MetricsCollector
	ttl             time.Duration
	providerTimeout time.Duration
	defaultItem     string
	now             func() time.Time
}

func NewEntitlementResolver(
	stripeClient client.StripeClient,
	entitlements store.Store,
	collector metrics.MetricsCollector,
	ttl, providerTimeout time.Duration,
	defaultItem string,
) EntitlementResolver {
	return &entitlementResolverImpl{
		stripeClient:    stripeClient,
		store:           entitlements,
		metrics:         collector,
		ttl:             ttl,
		providerTimeout: providerTimeout,
		defaultItem:     defaultItem,
		now:             time.Now,
	}
}

func (r *entitlementResolverImpl) Resolve(ctx context.Context, token, itemKey, sessionID string) *dto.StatusResponse {
	resp := r.resolve(ctx, strings.TrimSpace(token), resolveItem(itemKey, r.defaultItem), strings.TrimSpace(sessionID))

	source := resp.Source
	if source == "" {
		source = "none"
	}
	r.metrics.RecordResolve(source, resp.Entitled)
	return resp
}

func (r *entitlementResolverImpl) resolve(ctx context.Context, token, itemKey, sessionID string) *dto.StatusResponse {
	if token == "" {
		return &dto.StatusResponse{Entitled: false}
	}
	if !store.ValidKeyPart(token) || !store.ValidKeyPart(itemKey) {
		return &dto.StatusResponse{Entitled: false, Error: string(apperr.KindInvalidRequest)}
	}

	key := store.Key(itemKey, token)
	logger := log.With().Str("item", itemKey).Logger()

	rec, err := r.store.Get(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Msg("entitlement lookup failed; treating as absent")
	} else if rec != nil && rec.Paid {
		return &dto.StatusResponse{Entitled: true, Source: SourceStore}
	}

	if sessionID == "" {
		return &dto.StatusResponse{Entitled: false}
	}
	if !store.ValidKeyPart(sessionID) {
		return &dto.StatusResponse{Entitled: false, Error: "invalid_session"}
	}

	verifyCtx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	defer cancel()

	started := time.Now()
	session, err := r.stripeClient.GetCheckoutSession(verifyCtx, sessionID)
	r.metrics.RecordProviderLatency("get_session", time.Since(started))
	if err != nil {
		logger.Warn().Err(err).Str("session_id", sessionID).Msg("direct session verification failed")
		if apperr.KindOf(err) == apperr.KindInvalidRequest {
			return &dto.StatusResponse{Entitled: false, Error: apperr.CodeOf(err)}
		}
		return &dto.StatusResponse{Entitled: false, Error: string(apperr.KindProviderUnavailable)}
	}

	if !session.IsPaid() {
		return &dto.StatusResponse{Entitled: false}
	}
	if !sessionMatches(session, token, itemKey) {
		logger.Warn().Str("session_id", sessionID).Msg("session belongs to another visit or item")
		return &dto.StatusResponse{Entitled: false, Error: "session_mismatch"}
	}

	recordSessionID := session.ID
	if recordSessionID == "" {
		recordSessionID = sessionID
	}
	if err := r.store.Set(ctx, key, model.NewRecord(model.SourceDirectVerify, recordSessionID, r.now()), r.ttl); err != nil {
		logger.Error().Err(err).Str("session_id", sessionID).Msg("paid session verified but entitlement write failed")
		return &dto.StatusResponse{Entitled: false, Error: string(apperr.KindStoreUnavailable)}
	}

	logger.Info().Str("session_id", sessionID).Msg("entitlement granted by direct verification")
	return &dto.StatusResponse{Entitled: true, Source: SourceProvider}
}

// sessionMatches requires the session to carry the requesting visit token.
// The item is compared only when the session names one.
func sessionMatches(session *model.CheckoutSession, token, itemKey string) bool {
	if session.VisitToken() != token {
		return false
	}
	if i := session.ItemKey(); i != "" && i != itemKey {
		return false
	}
	return true
}
