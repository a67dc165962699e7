// Package visit issues the per-visit tokens that entitlements are keyed by.
// A token is minted once per content item and kept in client storage, so
// repeated loads of the same item reuse it.
package visit

import (
	"net/http"
	"strings"
	"sync"

	"paywall-entitlement/internal/apperr"
	"paywall-entitlement/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const cookieName = "paywall_visit"

// Storage is the client-side place a visit token lives between page loads.
type Storage interface {
	Get(itemKey string) (string, bool)
	Set(itemKey, token string)
}

// NewToken returns a time-ordered random token.
func NewToken() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// EnsureToken returns the token cached for itemKey, minting and storing one if
// there is none.
func EnsureToken(storage Storage, itemKey string) (string, error) {
	itemKey = strings.TrimSpace(itemKey)
	if itemKey == "" {
		return "", apperr.InvalidRequest("visit.ensure", "missing_item")
	}
	if !store.ValidKeyPart(itemKey) {
		return "", apperr.InvalidRequest("visit.ensure", "invalid_item")
	}

	if token, ok := storage.Get(itemKey); ok && store.ValidKeyPart(token) {
		return token, nil
	}

	token := NewToken()
	storage.Set(itemKey, token)
	return token, nil
}

type MemoryStorage struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{tokens: make(map[string]string)}
}

func (m *MemoryStorage) Get(itemKey string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[itemKey]
	return token, ok
}

func (m *MemoryStorage) Set(itemKey, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[itemKey] = token
}

// CookieStorage keeps a visitor's tokens in a signed cookie. Call Save after
// EnsureToken so a newly minted token reaches the browser.
type CookieStorage struct {
	session *sessions.Session
	r       *http.Request
	w       http.ResponseWriter
}

// NewCookieStore builds the signing cookie store shared by all requests.
func NewCookieStore(secret []byte, secure bool) *sessions.CookieStore {
	cs := sessions.NewCookieStore(secret)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return cs
}

// NewCookieStorage loads the visitor's cookie. A cookie that fails
// verification is replaced by an empty one.
func NewCookieStorage(cs sessions.Store, r *http.Request, w http.ResponseWriter) *CookieStorage {
	session, err := cs.Get(r, cookieName)
	if err != nil {
		session, _ = cs.New(r, cookieName)
	}
	return &CookieStorage{session: session, r: r, w: w}
}

func (c *CookieStorage) Get(itemKey string) (string, bool) {
	token, ok := c.session.Values[itemKey].(string)
	return token, ok && token != ""
}

func (c *CookieStorage) Set(itemKey, token string) {
	c.session.Values[itemKey] = token
}

func (c *CookieStorage) Save() error {
	return c.session.Save(c.r, c.w)
}
