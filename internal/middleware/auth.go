package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"paywall-entitlement/internal/dto"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminToken guards operator routes with a shared token. With no token
// configured every request is refused.
func AdminToken(expected string) echo.MiddlewareFunc {
	expected = strings.TrimSpace(expected)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			given := c.Request().Header.Get(AdminTokenHeader)
			if expected == "" || subtle.ConstantTimeCompare([]byte(given), []byte(expected)) != 1 {
				log.Warn().Str("path", c.Request().URL.Path).Str("remote_ip", c.RealIP()).Msg("admin request rejected")
				return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
			}
			return next(c)
		}
	}
}
