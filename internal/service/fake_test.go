package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"paywall-entitlement/internal/client"
	"paywall-entitlement/internal/config"
	"paywall-entitlement/internal/metrics"
	"paywall-entitlement/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

// fakeStripeClient serves canned sessions and delegates signature checks to a
// real client configured with testWebhookSecret.
type fakeStripeClient struct {
	mu       sync.Mutex
	verifier client.StripeClient

	created   []*client.CreateSessionRequest
	createErr error
	sessions  map[string]*model.CheckoutSession
	getErr    error
	getCalls  int
}

func newFakeStripeClient() *fakeStripeClient {
	return &fakeStripeClient{
		verifier: client.NewStripeClient(&config.Stripe{
			SecretKey:     "sk_test_fake",
			WebhookSecret: testWebhookSecret,
		}, time.Second),
		sessions: make(map[string]*model.CheckoutSession),
	}
}

func (f *fakeStripeClient) CreateCheckoutSession(ctx context.Context, req *client.CreateSessionRequest) (*model.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &model.CheckoutSession{
		ID:  "cs_test_new",
		URL: "https://checkout.stripe.com/c/pay/cs_test_new",
	}, nil
}

func (f *fakeStripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*model.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return &model.CheckoutSession{ID: sessionID, PaymentStatus: "unpaid"}, nil
	}
	return s, nil
}

func (f *fakeStripeClient) VerifyWebhookSignature(payload []byte, signatureHeader string) (*stripe.Event, error) {
	return f.verifier.VerifyWebhookSignature(payload, signatureHeader)
}

func signPayload(t *testing.T, payload []byte) string {
	t.Helper()

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Header
}

func newTestCollector() *metrics.Collector {
	return metrics.NewCollector(prometheus.NewRegistry())
}
