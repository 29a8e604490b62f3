package server

import (
	"time"

	"github.com/mohammad-safakhou/chefbot/internal/store"
)

// AuthSignupRequest is the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest is the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateSessionRequest starts a new cooking session.
type CreateSessionRequest struct {
	Name                string `json:"name"`
	Persona             string `json:"persona"`
	DietType            string `json:"diet_type"`
	ExcludedIngredients string `json:"excluded_ingredients"`
}

// SendMessageRequest carries one user turn.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// ScrapeRequest asks the ingestion pipeline to process a batch of URLs.
type ScrapeRequest struct {
	URLs []string `json:"urls"`
}

// SessionResponse is the wire shape of a cooking session.
type SessionResponse struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Persona             string    `json:"persona"`
	DietType            string    `json:"diet_type"`
	ExcludedIngredients string    `json:"excluded_ingredients"`
	CreatedAt           time.Time `json:"created_at"`
}

// MessageResponse is the wire shape of one chat message.
type MessageResponse struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RecipeResponse is the wire shape of a stored recipe.
type RecipeResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Diet      string    `json:"diet"`
	ScannedAt time.Time `json:"scanned_at"`
}

func toSessionResponse(s store.Session) SessionResponse {
	return SessionResponse{
		ID:                  s.ID,
		Name:                s.Name,
		Persona:             s.Persona,
		DietType:            s.DietType,
		ExcludedIngredients: s.ExcludedIngredients,
		CreatedAt:           s.CreatedAt,
	}
}

func toMessageResponse(m store.Message) MessageResponse {
	return MessageResponse{ID: m.ID, Sender: m.Sender, Content: m.Content, CreatedAt: m.CreatedAt}
}

func toRecipeResponse(r store.Recipe) RecipeResponse {
	return RecipeResponse{ID: r.ID, Title: r.Title, URL: r.URL, Diet: r.Diet, ScannedAt: r.ScannedAt}
}
