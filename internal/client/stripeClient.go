package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"paywall-entitlement/internal/apperr"
	"paywall-entitlement/internal/config"
	"paywall-entitlement/internal/model"

	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

type StripeClient interface {
	CreateCheckoutSession(ctx context.Context, req *CreateSessionRequest) (*model.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*model.CheckoutSession, error)
	// VerifyWebhookSignature authenticates payload against the webhook secret
	// and returns the decoded event. Nothing is parsed before verification.
	VerifyWebhookSignature(payload []byte, signatureHeader string) (*stripe.Event, error)
}

type CreateSessionRequest struct {
	Token      string
	ItemKey    string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type stripeClientImpl struct {
	sessions      *stripesession.Client
	secretKey     string
	webhookSecret string
}

// NewStripeClient builds a client bound to its own key and backend; the stripe
// package globals are never touched.
func NewStripeClient(cfg *config.Stripe, timeout time.Duration) StripeClient {
	backendCfg := &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: timeout},
		// no internal retries; callers re-poll
		MaxNetworkRetries: stripe.Int64(0),
	}
	if apiURL := strings.TrimSpace(cfg.APIURL); apiURL != "" {
		backendCfg.URL = stripe.String(apiURL)
	}

	return &stripeClientImpl{
		sessions: &stripesession.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: strings.TrimSpace(cfg.SecretKey),
		},
		secretKey:     strings.TrimSpace(cfg.SecretKey),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
	}
}

func (c *stripeClientImpl) CreateCheckoutSession(ctx context.Context, req *CreateSessionRequest) (*model.CheckoutSession, error) {
	const op = "stripe.checkout.create"
	if c.secretKey == "" {
		return nil, apperr.Configuration(op, "STRIPE_SECRET_KEY")
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.Token),
		Metadata: map[string]string{
			model.MetadataToken: req.Token,
			model.MetadataItem:  req.ItemKey,
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				model.MetadataToken: req.Token,
				model.MetadataItem:  req.ItemKey,
			},
		},
	}
	params.Context = ctx

	session, err := c.sessions.New(params)
	if err != nil {
		return nil, apperr.ProviderUnavailable(op, redactStripeError(err))
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return nil, apperr.ProviderUnavailable(op, errors.New("checkout session has no url"))
	}

	return toCheckoutSession(session), nil
}

func (c *stripeClientImpl) GetCheckoutSession(ctx context.Context, sessionID string) (*model.CheckoutSession, error) {
	const op = "stripe.checkout.get"
	if c.secretKey == "" {
		return nil, apperr.Configuration(op, "STRIPE_SECRET_KEY")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := c.sessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, apperr.New(apperr.KindInvalidRequest, op, "invalid_session", redactStripeError(err))
		}
		return nil, apperr.ProviderUnavailable(op, redactStripeError(err))
	}

	return toCheckoutSession(session), nil
}

func (c *stripeClientImpl) VerifyWebhookSignature(payload []byte, signatureHeader string) (*stripe.Event, error) {
	const op = "stripe.webhook.verify"
	if c.webhookSecret == "" {
		return nil, apperr.Configuration(op, "STRIPE_WEBHOOK_SECRET")
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, apperr.SignatureInvalid(op, errors.New("missing Stripe-Signature header"))
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperr.SignatureInvalid(op, err)
	}
	return &event, nil
}

// DecodeCheckoutSession reads the checkout.session object carried by an event.
func DecodeCheckoutSession(event *stripe.Event) (*model.CheckoutSession, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, errors.New("event has no data object")
	}
	var session model.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("decode checkout.session: %w", err)
	}
	return &session, nil
}

func toCheckoutSession(s *stripe.CheckoutSession) *model.CheckoutSession {
	return &model.CheckoutSession{
		ID:                s.ID,
		URL:               s.URL,
		Status:            string(s.Status),
		PaymentStatus:     string(s.PaymentStatus),
		ClientReferenceID: s.ClientReferenceID,
		SuccessURL:        s.SuccessURL,
		Metadata:          s.Metadata,
	}
}

// redactStripeError keeps the Stripe error type and code but drops anything
// that could echo request parameters back into logs.
func redactStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return fmt.Errorf("stripe %s (status=%d code=%s request=%s)",
			stripeErr.Type, stripeErr.HTTPStatusCode, stripeErr.Code, stripeErr.RequestID)
	}
	return err
}
