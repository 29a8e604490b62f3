package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/chefbot/internal/chef"
	"github.com/mohammad-safakhou/chefbot/internal/store"
)

// SessionsHandler serves the cooking-session and chat endpoints.
type SessionsHandler struct {
	Store *store.Store
	Orch  *chef.Orchestrator
}

func (h *SessionsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(optionalAuth(secret))
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.remove)
	g.GET("/:id/messages", h.messages)
	g.POST("/:id/messages", h.send)
}

func (h *SessionsHandler) create(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.Orch.CreateSession(c.Request().Context(), chef.CreateSessionParams{
		Name:      req.Name,
		Persona:   req.Persona,
		DietType:  req.DietType,
		Allergies: req.ExcludedIngredients,
		UserID:    callerID(c),
	})
	if errors.Is(err, chef.ErrValidation) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, toSessionResponse(sess))
}

func (h *SessionsHandler) list(c echo.Context) error {
	sessions, err := h.Store.ListSessions(c.Request().Context(), callerID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *SessionsHandler) get(c echo.Context) error {
	sess, err := h.Store.GetSession(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (h *SessionsHandler) remove(c echo.Context) error {
	err := h.Orch.DeleteSession(c.Request().Context(), c.Param("id"), callerID(c))
	if errors.Is(err, chef.ErrSessionNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionsHandler) messages(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.Store.GetSession(ctx, c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	msgs, err := h.Store.ListMessages(ctx, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *SessionsHandler) send(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message cannot be empty")
	}
	err := h.Orch.HandleTurn(c.Request().Context(), c.Param("id"), req.Message)
	if errors.Is(err, chef.ErrSessionNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
