package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"paywall-entitlement/internal/apperr"
	"paywall-entitlement/internal/model"
	"paywall-entitlement/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(fake *fakeStripeClient, entitlements store.Store) EntitlementResolver {
	return NewEntitlementResolver(fake, entitlements, newTestCollector(), testTTL, time.Second, "default")
}

func paidSession(id, token, item string) *model.CheckoutSession {
	return &model.CheckoutSession{
		ID:            id,
		Status:        "complete",
		PaymentStatus: "paid",
		Metadata:      map[string]string{"rid": token, "item": item},
	}
}

func TestResolve_EmptyToken(t *testing.T) {
	fake := newFakeStripeClient()
	r := newTestResolver(fake, store.NewMemoryStore())

	resp := r.Resolve(context.Background(), "", "item-a", "cs_1")
	assert.False(t, resp.Entitled)
	assert.Empty(t, resp.Error)
	assert.Zero(t, fake.getCalls)
}

func TestResolve_FromStore(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStripeClient()
	entitlements := store.NewMemoryStore()
	require.NoError(t, entitlements.Set(ctx, store.Key("item-a", "tok-1"),
		model.NewRecord(model.SourceWebhook, "cs_1", time.Now()), testTTL))

	r := newTestResolver(fake, entitlements)

	resp := r.Resolve(ctx, "tok-1", "item-a", "")
	assert.True(t, resp.Entitled)
	assert.Equal(t, SourceStore, resp.Source)
	assert.Zero(t, fake.getCalls)
}

func TestResolve_NoRecordNoSession(t *testing.T) {
	r := newTestResolver(newFakeStripeClient(), store.NewMemoryStore())

	resp := r.Resolve(context.Background(), "tok-1", "item-a", "")
	assert.False(t, resp.Entitled)
	assert.Empty(t, resp.Error)
}

func TestResolve_DirectVerifyWritesRecord(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStripeClient()
	fake.sessions["cs_1"] = paidSession("cs_1", "tok-1", "item-a")
	entitlements := store.NewMemoryStore()

	r := newTestResolver(fake, entitlements)

	resp := r.Resolve(ctx, "tok-1", "item-a", "cs_1")
	assert.True(t, resp.Entitled)
	assert.Equal(t, SourceProvider, resp.Source)

	rec, err := entitlements.Get(ctx, store.Key("item-a", "tok-1"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.SourceDirectVerify, rec.Source)
	assert.Equal(t, "cs_1", rec.SessionID)

	resp = r.Resolve(ctx, "tok-1", "item-a", "")
	assert.True(t, resp.Entitled)
	assert.Equal(t, SourceStore, resp.Source)
	assert.Equal(t, 1, fake.getCalls)
}

func TestResolve_UnpaidSession(t *testing.T) {
	fake := newFakeStripeClient()
	fake.sessions["cs_1"] = &model.CheckoutSession{ID: "cs_1", PaymentStatus: "unpaid"}
	entitlements := store.NewMemoryStore()

	resp := newTestResolver(fake, entitlements).Resolve(context.Background(), "tok-1", "item-a", "cs_1")
	assert.False(t, resp.Entitled)
	assert.Empty(t, resp.Error)
	assert.Zero(t, entitlements.Len())
}

func TestResolve_SessionForAnotherItem(t *testing.T) {
	fake := newFakeStripeClient()
	fake.sessions["cs_1"] = paidSession("cs_1", "tok-1", "item-a")
	entitlements := store.NewMemoryStore()

	resp := newTestResolver(fake, entitlements).Resolve(context.Background(), "tok-1", "item-b", "cs_1")
	assert.False(t, resp.Entitled)
	assert.Equal(t, "session_mismatch", resp.Error)
	assert.Zero(t, entitlements.Len())
}

func TestResolve_SessionForAnotherVisit(t *testing.T) {
	fake := newFakeStripeClient()
	fake.sessions["cs_1"] = paidSession("cs_1", "tok-1", "item-a")

	resp := newTestResolver(fake, store.NewMemoryStore()).Resolve(context.Background(), "tok-2", "item-a", "cs_1")
	assert.False(t, resp.Entitled)
	assert.Equal(t, "session_mismatch", resp.Error)
}

func TestResolve_ProviderUnavailable(t *testing.T) {
	fake := newFakeStripeClient()
	fake.getErr = apperr.ProviderUnavailable("stripe.checkout.get", errors.New("timeout"))

	resp := newTestResolver(fake, store.NewMemoryStore()).Resolve(context.Background(), "tok-1", "item-a", "cs_1")
	assert.False(t, resp.Entitled)
	assert.Equal(t, "provider_unavailable", resp.Error)
}

func TestResolve_UnknownSession(t *testing.T) {
	fake := newFakeStripeClient()
	fake.getErr = apperr.New(apperr.KindInvalidRequest, "stripe.checkout.get", "invalid_session", errors.New("404"))

	resp := newTestResolver(fake, store.NewMemoryStore()).Resolve(context.Background(), "tok-1", "item-a", "cs_missing")
	assert.False(t, resp.Entitled)
	assert.Equal(t, "invalid_session", resp.Error)
}

func TestResolve_StoreDownFailsClosed(t *testing.T) {
	fake := newFakeStripeClient()
	fake.sessions["cs_1"] = paidSession("cs_1", "tok-1", "item-a")

	resp := newTestResolver(fake, failingStore{}).Resolve(context.Background(), "tok-1", "item-a", "cs_1")
	assert.False(t, resp.Entitled)
	assert.Equal(t, "store_unavailable", resp.Error)
	assert.Equal(t, 1, fake.getCalls)
}

func TestResolve_NopStoreNeverEntitles(t *testing.T) {
	fake := newFakeStripeClient()
	fake.sessions["cs_1"] = paidSession("cs_1", "tok-1", "item-a")

	resp := newTestResolver(fake, store.NewNopStore()).Resolve(context.Background(), "tok-1", "item-a", "cs_1")
	assert.False(t, resp.Entitled)
	assert.Equal(t, "store_unavailable", resp.Error)
}

func TestResolve_DefaultItem(t *testing.T) {
	ctx := context.Background()
	entitlements := store.NewMemoryStore()
	require.NoError(t, entitlements.Set(ctx, store.Key("default", "tok-1"),
		model.NewRecord(model.SourceWebhook, "cs_1", time.Now()), testTTL))

	resp := newTestResolver(newFakeStripeClient(), entitlements).Resolve(ctx, "tok-1", "", "")
	assert.True(t, resp.Entitled)
}

func TestResolve_MalformedToken(t *testing.T) {
	resp := newTestResolver(newFakeStripeClient(), store.NewMemoryStore()).Resolve(context.Background(), "tok:1", "item-a", "")
	assert.False(t, resp.Entitled)
	assert.Equal(t, "invalid_request", resp.Error)
}

func TestResolve_WebhookAndVerifyInEitherOrder(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStripeClient()
	fake.sessions["cs_1"] = paidSession("cs_1", "tok-1", "item-a")
	entitlements := store.NewMemoryStore()

	confirm := NewConfirmationService(fake, entitlements, nil, newTestCollector(), testTTL, "default")
	r := newTestResolver(fake, entitlements)

	// direct verification lands first, webhook second
	resp := r.Resolve(ctx, "tok-1", "item-a", "cs_1")
	require.True(t, resp.Entitled)

	body := checkoutCompletedEvent("evt_1",
		`{"id":"cs_1","object":"checkout.session","payment_status":"paid","metadata":{"rid":"tok-1","item":"item-a"}}`)
	_, err := confirm.HandleEvent(ctx, body, signPayload(t, body))
	require.NoError(t, err)

	resp = r.Resolve(ctx, "tok-1", "item-a", "")
	assert.True(t, resp.Entitled)
	assert.Equal(t, 1, entitlements.Len())
}

func TestResolve_SessionWithoutVisitTokenRefused(t *testing.T) {
	fake := newFakeStripeClient()
	fake.sessions["cs_foreign"] = &model.CheckoutSession{ID: "cs_foreign", PaymentStatus: "paid"}
	entitlements := store.NewMemoryStore()
	r := newTestResolver(fake, entitlements)

	for _, tc := range []struct{ token, item string }{
		{"visitor-1", "item-x"},
		{"visitor-2", "item-y"},
	} {
		resp := r.Resolve(context.Background(), tc.token, tc.item, "cs_foreign")
		assert.False(t, resp.Entitled)
		assert.Equal(t, "session_mismatch", resp.Error)
	}
	assert.Zero(t, entitlements.Len())
}

func TestResolve_SessionWithTokenOnlyUsesDefaultItem(t *testing.T) {
	fake := newFakeStripeClient()
	fake.sessions["cs_1"] = &model.CheckoutSession{
		ID:            "cs_1",
		PaymentStatus: "paid",
		Metadata:      map[string]string{"rid": "tok-1"},
	}

	resp := newTestResolver(fake, store.NewMemoryStore()).Resolve(context.Background(), "tok-1", "", "cs_1")
	assert.True(t, resp.Entitled)
	assert.Equal(t, SourceProvider, resp.Source)
}
