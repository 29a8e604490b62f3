package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/chefbot/internal/kb"
	"github.com/mohammad-safakhou/chefbot/internal/store"
	"github.com/mohammad-safakhou/chefbot/internal/vector"
)

func setupRecipesHandler(t *testing.T) (*RecipesHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	index, err := kb.NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	st := &store.Store{DB: db}
	h := &RecipesHandler{
		Store: st,
		Pipeline: &kb.Pipeline{
			Store:   st,
			Vectors: &vector.Store{DB: db},
			Index:   index,
		},
	}
	return h, mock, func() { db.Close() }
}

func TestListRecipesEndpoint(t *testing.T) {
	h, mock, cleanup := setupRecipesHandler(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM stored_recipes ORDER BY scanned_at DESC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "diet", "url", "scanned_at"}).
			AddRow("r1", "Cake", "Vegan", "https://x.example", time.Now()))

	e := echo.New()
	req, rec := jsonRequest(http.MethodGet, "/api/recipes", "")
	if err := h.list(e.NewContext(req, rec)); err != nil {
		t.Fatalf("list: %v", err)
	}

	var recipes []RecipeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &recipes); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(recipes) != 1 || recipes[0].Title != "Cake" {
		t.Fatalf("recipes = %+v", recipes)
	}
}

func TestDeleteRecipeEndpointNotFound(t *testing.T) {
	h, mock, cleanup := setupRecipesHandler(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM stored_recipes WHERE id=$1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "diet", "url", "scanned_at"}))

	e := echo.New()
	req, rec := jsonRequest(http.MethodDelete, "/api/recipes/missing", "")
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("missing")

	err := h.remove(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestScrapeRejectsEmptyBatch(t *testing.T) {
	h, _, cleanup := setupRecipesHandler(t)
	defer cleanup()

	e := echo.New()
	for _, body := range []string{`{"urls":[]}`, `{"urls":["  ",""]}`, `{}`} {
		req, rec := jsonRequest(http.MethodPost, "/api/recipes/scrape", body)
		err := h.scrape(e.NewContext(req, rec))
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %v", body, err)
		}
	}
}

func TestScrapeAcceptsBatch(t *testing.T) {
	h, mock, cleanup := setupRecipesHandler(t)
	defer cleanup()

	// The background batch will query the dedup check; give it a benign
	// failure so the goroutine finishes without touching other tables.
	mock.ExpectQuery(regexp.QuoteMeta(`FROM stored_recipes WHERE url=$1`)).
		WillReturnError(echo.ErrInternalServerError)

	e := echo.New()
	req, rec := jsonRequest(http.MethodPost, "/api/recipes/scrape", `{"urls":["https://x.example/cake"]}`)
	if err := h.scrape(e.NewContext(req, rec)); err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["accepted"] != 1 {
		t.Fatalf("accepted = %d, want 1", resp["accepted"])
	}
	time.Sleep(50 * time.Millisecond)
}
