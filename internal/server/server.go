package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"paywall-entitlement/internal/apperr"
	"paywall-entitlement/internal/dto"
	"paywall-entitlement/internal/handler"
	"paywall-entitlement/internal/metrics"
	appmiddleware "paywall-entitlement/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const retryAfterSeconds = "5"

type Options struct {
	AdminToken        string
	CheckoutPerMinute float64
	CheckoutBurst     int
	Gatherer          prometheus.Gatherer
}

type Server struct {
	echo           *echo.Echo
	paywallHandler *handler.PaywallHandler
	visitHandler   *handler.VisitHandler
	adminHandler   *handler.AdminHandler
	opts           Options
}

func NewServer(
	paywallHandler *handler.PaywallHandler,
	visitHandler *handler.VisitHandler,
	adminHandler *handler.AdminHandler,
	opts Options,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}
	e.HTTPErrorHandler = errorHandler

	e.Use(appmiddleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		paywallHandler: paywallHandler,
		visitHandler:   visitHandler,
		adminHandler:   adminHandler,
		opts:           opts,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	if s.opts.Gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.opts.Gatherer)))
	}

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api.GET("/visit/:item", s.visitHandler.Visit)
	api.POST("/checkout", s.paywallHandler.Checkout, checkoutLimiter(s.opts))
	api.GET("/entitlement", s.paywallHandler.Status)

	// -------- stripe webhooks --------
	api.POST("/stripe/webhook", s.paywallHandler.StripeWebhook)

	// -------- operator --------
	admin := api.Group("/admin", appmiddleware.AdminToken(s.opts.AdminToken))
	admin.GET("/store/diag", s.adminHandler.StoreDiag)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func checkoutLimiter(opts Options) echo.MiddlewareFunc {
	if opts.CheckoutPerMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	burst := opts.CheckoutBurst
	if burst <= 0 {
		burst = 1
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(opts.CheckoutPerMinute / 60),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "forbidden"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: "rate_limited"})
		},
	})
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// errorHandler renders every failure as {"error": code}.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok && msg != "" {
			code = msg
		}
		_ = c.JSON(he.Code, dto.ErrorResponse{Error: code})
		return
	}

	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request().URL.Path).Bool("retryable", apperr.IsRetryable(err)).Msg("request failed")
	}
	if apperr.IsRetryable(err) {
		c.Response().Header().Set("Retry-After", retryAfterSeconds)
	}

	body := dto.ErrorResponse{Error: apperr.CodeOf(err)}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	if jsonErr := c.JSON(status, body); jsonErr != nil {
		log.Error().Err(fmt.Errorf("write error response: %w", jsonErr)).Msg("request failed")
	}
}
