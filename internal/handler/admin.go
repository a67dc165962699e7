package handler

import (
	"net/http"

	"paywall-entitlement/internal/service"

	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	diagService service.DiagService
}

func NewAdminHandler(diagService service.DiagService) *AdminHandler {
	return &AdminHandler{diagService: diagService}
}

func (h *AdminHandler) StoreDiag(c echo.Context) error {
	resp := h.diagService.Run(c.Request().Context())

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}
