package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, 720*time.Hour, cfg.Store.EntitlementTTL)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "default", cfg.DefaultItem)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.PaymentsEnabled)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
	t.Setenv("STRIPE_PRICE_ID", "price_123")
	t.Setenv("BASE_URL", "https://example.com")
	t.Setenv("STORE_BACKEND", "sql")
	t.Setenv("STORE_ENTITLEMENT_TTL", "48h")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk_test_123", cfg.Stripe.SecretKey)
	assert.Equal(t, "price_123", cfg.Stripe.PriceID)
	assert.Equal(t, "sql", cfg.Store.Backend)
	assert.Equal(t, 48*time.Hour, cfg.Store.EntitlementTTL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	assert.Empty(t, cfg.MissingPayments())
}

func TestLoad_RejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("STORE_ENTITLEMENT_TTL", "0s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_ENTITLEMENT_TTL")
}

func TestMissingPayments_NamesOnly(t *testing.T) {
	cfg := &Config{Stripe: Stripe{SecretKey: "sk_live_secret"}}

	missing := cfg.MissingPayments()
	assert.Equal(t, []string{"STRIPE_WEBHOOK_SECRET", "STRIPE_PRICE_ID", "BASE_URL"}, missing)
	for _, name := range missing {
		assert.NotContains(t, name, "sk_live_secret")
	}
}
