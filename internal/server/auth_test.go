package server

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohammad-safakhou/chefbot/internal/store"
)

func setupAuth(t *testing.T) (*AuthHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := &AuthHandler{Store: &store.Store{DB: db}, Secret: []byte("test-secret")}
	return h, mock, func() { db.Close() }
}

func jsonRequest(method, path, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func TestSignupCreatesUser(t *testing.T) {
	h, mock, cleanup := setupAuth(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	e := echo.New()
	req, rec := jsonRequest(http.MethodPost, "/api/auth/signup", `{"email":"a@b.com","password":"longenough"}`)
	ctx := e.NewContext(req, rec)

	if err := h.signup(ctx); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	h, mock, cleanup := setupAuth(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pq.Error{Code: "23505"})

	e := echo.New()
	req, rec := jsonRequest(http.MethodPost, "/api/auth/signup", `{"email":"a@b.com","password":"longenough"}`)
	err := h.signup(e.NewContext(req, rec))

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestSignupShortPassword(t *testing.T) {
	h, _, cleanup := setupAuth(t)
	defer cleanup()

	e := echo.New()
	req, rec := jsonRequest(http.MethodPost, "/api/auth/signup", `{"email":"a@b.com","password":"short"}`)
	err := h.signup(e.NewContext(req, rec))

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestLoginSetsCookieAndToken(t *testing.T) {
	h, mock, cleanup := setupAuth(t)
	defer cleanup()

	hash, err := bcrypt.GenerateFromPassword([]byte("longenough"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash FROM users WHERE email=$1`)).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("u1", string(hash)))

	e := echo.New()
	req, rec := jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"a@b.com","password":"longenough"}`)
	if err := h.login(e.NewContext(req, rec)); err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), "auth=") {
		t.Fatal("auth cookie not set")
	}
	if !strings.HasPrefix(rec.Header().Get("Authorization"), "Bearer ") {
		t.Fatal("bearer token not returned")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, mock, cleanup := setupAuth(t)
	defer cleanup()

	hash, _ := bcrypt.GenerateFromPassword([]byte("rightpassword"), bcrypt.MinCost)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash FROM users WHERE email=$1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("u1", string(hash)))

	e := echo.New()
	req, rec := jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"a@b.com","password":"wrongpassword"}`)
	err := h.login(e.NewContext(req, rec))

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestOptionalAuth(t *testing.T) {
	secret := []byte("test-secret")
	e := echo.New()
	handler := func(c echo.Context) error {
		if id := callerID(c); id != nil {
			return c.String(http.StatusOK, *id)
		}
		return c.String(http.StatusOK, "anonymous")
	}
	mw := optionalAuth(secret)

	// Anonymous requests pass through.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := mw(handler)(e.NewContext(req, rec)); err != nil {
		t.Fatalf("anonymous: %v", err)
	}
	if rec.Body.String() != "anonymous" {
		t.Fatalf("anonymous body = %q", rec.Body.String())
	}

	// A valid token resolves the caller.
	tok, err := signJWT("u1", secret, time.Hour)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	if err := mw(handler)(e.NewContext(req, rec)); err != nil {
		t.Fatalf("authenticated: %v", err)
	}
	if rec.Body.String() != "u1" {
		t.Fatalf("authenticated body = %q", rec.Body.String())
	}

	// A present but invalid token is rejected.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	err = mw(handler)(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an invalid token, got %v", err)
	}
}
