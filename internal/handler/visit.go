package handler

import (
	"net/http"

	"paywall-entitlement/internal/dto"
	"paywall-entitlement/internal/visit"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type VisitHandler struct {
	cookies sessions.Store
}

func NewVisitHandler(cookies sessions.Store) *VisitHandler {
	return &VisitHandler{cookies: cookies}
}

// Visit returns this browser's token for an item, minting it on first view.
func (h *VisitHandler) Visit(c echo.Context) error {
	item := c.Param("item")

	storage := visit.NewCookieStorage(h.cookies, c.Request(), c.Response())
	token, err := visit.EnsureToken(storage, item)
	if err != nil {
		return err
	}
	if err := storage.Save(); err != nil {
		log.Error().Err(err).Msg("save visit cookie failed")
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal_error"})
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, dto.VisitResponse{Token: token, Item: item})
}
