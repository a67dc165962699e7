package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"paywall-entitlement/internal/apperr"
	"paywall-entitlement/internal/client"
	"paywall-entitlement/internal/config"
	"paywall-entitlement/internal/dto"
	"paywall-entitlement/internal/metrics"
	"paywall-entitlement/internal/model"
	"paywall-entitlement/internal/store"

	"github.com/rs/zerolog/log"
)

// checkoutSessionPlaceholder is substituted by Stripe with the session id on redirect.
const checkoutSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

type CheckoutService interface {
	CreateCheckout(ctx context.Context, token, itemKey, returnPath string) (*dto.CheckoutResponse, error)
}

type checkoutServiceImpl struct {
	stripeClient client.StripeClient
	metrics      metrics.MetricsCollector
	baseURL      string
	secretKey    string
	priceID      string
	defaultItem  string
}

func NewCheckoutService(cfg *config.Config, stripeClient client.StripeClient, collector metrics.MetricsCollector) CheckoutService {
	return &checkoutServiceImpl{
		stripeClient: stripeClient,
		metrics:      collector,
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		secretKey:    strings.TrimSpace(cfg.Stripe.SecretKey),
		priceID:      strings.TrimSpace(cfg.Stripe.PriceID),
		defaultItem:  cfg.DefaultItem,
	}
}

func (s *checkoutServiceImpl) CreateCheckout(ctx context.Context, token, itemKey, returnPath string) (*dto.CheckoutResponse, error) {
	const op = "checkout.create"

	token = strings.TrimSpace(token)
	if token == "" {
		s.metrics.RecordCheckout("invalid_request")
		return nil, apperr.InvalidRequest(op, "missing_token")
	}
	if !store.ValidKeyPart(token) {
		s.metrics.RecordCheckout("invalid_request")
		return nil, apperr.InvalidRequest(op, "invalid_token")
	}
	itemKey = resolveItem(itemKey, s.defaultItem)
	if !store.ValidKeyPart(itemKey) {
		s.metrics.RecordCheckout("invalid_request")
		return nil, apperr.InvalidRequest(op, "invalid_item")
	}

	if missing := s.missingSettings(); len(missing) > 0 {
		s.metrics.RecordCheckout("misconfigured")
		return nil, apperr.Configuration(op, missing...)
	}

	successURL, cancelURL := s.redirectURLs(SafeReturnPath(returnPath), itemKey, token)

	started := time.Now()
	session, err := s.stripeClient.CreateCheckoutSession(ctx, &client.CreateSessionRequest{
		Token:      token,
		ItemKey:    itemKey,
		PriceID:    s.priceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	s.metrics.RecordProviderLatency("create_session", time.Since(started))
	if err != nil {
		s.metrics.RecordCheckout(string(apperr.KindOf(err)))
		log.Error().Err(err).Str("item", itemKey).Msg("create checkout session failed")
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperr.ProviderUnavailable(op, err)
	}

	s.metrics.RecordCheckout("created")
	log.Info().Str("item", itemKey).Str("session_id", session.ID).Msg("checkout session created")

	return &dto.CheckoutResponse{RedirectURL: session.URL}, nil
}

func (s *checkoutServiceImpl) missingSettings() []string {
	var missing []string
	if s.secretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if s.priceID == "" {
		missing = append(missing, "STRIPE_PRICE_ID")
	}
	if !validBaseURL(s.baseURL) {
		missing = append(missing, "BASE_URL")
	}
	return missing
}

// redirectURLs builds the success and cancel URLs. The session placeholder is
// appended after encoding so its braces reach Stripe verbatim.
func (s *checkoutServiceImpl) redirectURLs(path, itemKey, token string) (string, string) {
	success := url.Values{}
	success.Set(model.QueryItem, itemKey)
	success.Set(model.QueryToken, token)

	cancel := url.Values{}
	cancel.Set(model.QueryCanceled, "1")
	cancel.Set(model.QueryItem, itemKey)
	cancel.Set(model.QueryToken, token)

	successURL := s.baseURL + path + "?" + success.Encode() + "&" + model.QuerySessionID + "=" + checkoutSessionPlaceholder
	cancelURL := s.baseURL + path + "?" + cancel.Encode()
	return successURL, cancelURL
}

// SafeReturnPath reduces a caller-supplied return path to a same-origin path.
// Anything that could leave the site, or is not a plain absolute path, becomes "/".
// Query strings and fragments are dropped.
func SafeReturnPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p[0] != '/' {
		return "/"
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	for _, r := range p {
		if r < 0x20 || r == 0x7f || r == '\\' {
			return "/"
		}
	}

	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil || u.Opaque != "" {
		return "/"
	}
	path := u.EscapedPath()
	if path == "" || path[0] != '/' || strings.HasPrefix(path, "//") {
		return "/"
	}
	return path
}

func validBaseURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func resolveItem(itemKey, defaultItem string) string {
	if itemKey = strings.TrimSpace(itemKey); itemKey != "" {
		return itemKey
	}
	return defaultItem
}
