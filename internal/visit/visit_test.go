package visit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"paywall-entitlement/internal/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken_UniqueAndParsable(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := NewToken()
		_, err := uuid.Parse(token)
		require.NoError(t, err)
		assert.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
}

func TestEnsureToken_ReusesPerItem(t *testing.T) {
	storage := NewMemoryStorage()

	first, err := EnsureToken(storage, "item-a")
	require.NoError(t, err)
	second, err := EnsureToken(storage, "item-a")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := EnsureToken(storage, "item-b")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestEnsureToken_ReplacesMalformedToken(t *testing.T) {
	storage := NewMemoryStorage()
	storage.Set("item-a", "bad:token")

	token, err := EnsureToken(storage, "item-a")
	require.NoError(t, err)
	assert.NotEqual(t, "bad:token", token)

	stored, _ := storage.Get("item-a")
	assert.Equal(t, token, stored)
}

func TestEnsureToken_RejectsItem(t *testing.T) {
	_, err := EnsureToken(NewMemoryStorage(), " ")
	assert.Equal(t, "missing_item", apperr.CodeOf(err))

	_, err = EnsureToken(NewMemoryStorage(), "a/b")
	assert.Equal(t, "invalid_item", apperr.CodeOf(err))
}

func TestCookieStorage_RoundTrip(t *testing.T) {
	cs := NewCookieStore([]byte("0123456789abcdef0123456789abcdef"), false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/visit/item-a", nil)
	storage := NewCookieStorage(cs, req, rec)

	token, err := EnsureToken(storage, "item-a")
	require.NoError(t, err)
	require.NoError(t, storage.Save())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	next := httptest.NewRequest(http.MethodGet, "/api/visit/item-a", nil)
	next.AddCookie(cookies[0])
	again, err := EnsureToken(NewCookieStorage(cs, next, httptest.NewRecorder()), "item-a")
	require.NoError(t, err)
	assert.Equal(t, token, again)
}

func TestCookieStorage_TamperedCookieStartsFresh(t *testing.T) {
	cs := NewCookieStore([]byte("0123456789abcdef0123456789abcdef"), false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "forged"})
	storage := NewCookieStorage(cs, req, httptest.NewRecorder())

	_, ok := storage.Get("item-a")
	assert.False(t, ok)
}
