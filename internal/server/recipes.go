package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/chefbot/internal/chef"
	"github.com/mohammad-safakhou/chefbot/internal/kb"
	"github.com/mohammad-safakhou/chefbot/internal/store"
)

// RecipesHandler serves the knowledge-base admin endpoints.
type RecipesHandler struct {
	Store    *store.Store
	Pipeline *kb.Pipeline
}

func (h *RecipesHandler) Register(g *echo.Group, secret []byte) {
	g.Use(optionalAuth(secret))
	g.GET("", h.list)
	g.DELETE("/:id", h.remove)
	g.POST("/scrape", h.scrape)
}

func (h *RecipesHandler) list(c echo.Context) error {
	recipes, err := h.Store.ListRecipes(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]RecipeResponse, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, toRecipeResponse(r))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RecipesHandler) remove(c echo.Context) error {
	err := h.Pipeline.DeleteRecipe(c.Request().Context(), c.Param("id"))
	if errors.Is(err, chef.ErrRecipeNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "recipe not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// scrape accepts a batch of URLs and runs the ingestion pipeline in the
// background. The response only acknowledges the batch; per-URL outcomes are
// visible in the logs and metrics.
func (h *RecipesHandler) scrape(c echo.Context) error {
	var req ScrapeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if v := strings.TrimSpace(u); v != "" {
			urls = append(urls, v)
		}
	}
	if len(urls) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "urls cannot be empty")
	}
	go h.Pipeline.Run(context.Background(), urls)
	return c.JSON(http.StatusAccepted, map[string]interface{}{"accepted": len(urls)})
}
