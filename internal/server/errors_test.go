package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"paywall-entitlement/internal/apperr"
	"paywall-entitlement/internal/dto"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func renderError(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", nil), rec)
	errorHandler(err, c)
	return rec
}

func TestErrorHandler_RetryableSetsRetryAfter(t *testing.T) {
	rec := renderError(t, apperr.StoreUnavailable("webhook.checkout", errors.New("down")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, retryAfterSeconds, rec.Header().Get("Retry-After"))
	assert.Equal(t, "store_unavailable", decode[dto.ErrorResponse](t, rec).Error)
}

func TestErrorHandler_PermanentFailureNoRetryAfter(t *testing.T) {
	rec := renderError(t, apperr.SignatureInvalid("stripe.webhook.verify", errors.New("bad")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "invalid_signature", decode[dto.ErrorResponse](t, rec).Error)
}

func TestErrorHandler_UntypedError(t *testing.T) {
	rec := renderError(t, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decode[dto.ErrorResponse](t, rec).Error)
}

func TestErrorHandler_EchoHTTPError(t *testing.T) {
	rec := renderError(t, echo.NewHTTPError(http.StatusNotFound))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decode[dto.ErrorResponse](t, rec).Error)
}
