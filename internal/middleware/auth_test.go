package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func serveAdmin(expected, given string) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/admin", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, AdminToken(expected))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if given != "" {
		req.Header.Set(AdminTokenHeader, given)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAdminToken(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		given    string
		want     int
	}{
		{"matching token", "s3cret", "s3cret", http.StatusOK},
		{"wrong token", "s3cret", "guess", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"unset token refuses everyone", "", "", http.StatusUnauthorized},
		{"unset token refuses any header", "", "anything", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveAdmin(tt.expected, tt.given)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
