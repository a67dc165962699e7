package handler

import (
	"errors"
	"io"
	"net/http"

	"paywall-entitlement/internal/dto"
	"paywall-entitlement/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// maxWebhookBody caps webhook payloads; Stripe events are far smaller.
const maxWebhookBody = 1 << 20

type PaywallHandler struct {
	checkoutService     service.CheckoutService
	confirmationService service.ConfirmationService
	resolver            service.EntitlementResolver
	paymentsEnabled     bool
}

func NewPaywallHandler(
	checkoutService service.CheckoutService,
	confirmationService service.ConfirmationService,
	resolver service.EntitlementResolver,
	paymentsEnabled bool,
) *PaywallHandler {
	return &PaywallHandler{
		checkoutService:     checkoutService,
		confirmationService: confirmationService,
		resolver:            resolver,
		paymentsEnabled:     paymentsEnabled,
	}
}

func (h *PaywallHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	if !h.paymentsEnabled {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "payments_disabled"})
	}

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: validationCode(err)})
	}

	result, err := h.checkoutService.CreateCheckout(ctx, req.Token, req.Item, req.ReturnPath)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *PaywallHandler) Status(c echo.Context) error {
	ctx := c.Request().Context()

	token := firstParam(c, "token", "rid")
	item := c.QueryParam("item")
	sessionID := firstParam(c, "sessionId", "session_id")

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, h.resolver.Resolve(ctx, token, item, sessionID))
}

func (h *PaywallHandler) StripeWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "payload_too_large"})
		}
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_body"})
	}

	ack, err := h.confirmationService.HandleEvent(ctx, body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ack)
}

func firstParam(c echo.Context, names ...string) string {
	for _, name := range names {
		if v := c.QueryParam(name); v != "" {
			return v
		}
	}
	return ""
}

// validationCode turns the first failed rule into a caller-facing code.
func validationCode(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "invalid_request"
	}
	fe := errs[0]
	switch {
	case fe.Field() == "Token" && fe.Tag() == "required":
		return "missing_token"
	case fe.Field() == "Token":
		return "invalid_token"
	case fe.Field() == "Item":
		return "invalid_item"
	case fe.Field() == "ReturnPath":
		return "invalid_return_path"
	}
	return "invalid_request"
}
