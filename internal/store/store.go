package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Default sentinels applied when a session is created with blank fields.
const (
	DefaultDietType  = "Omnivore"
	DefaultAllergies = "No restrictions"
)

// Message sender roles.
const (
	SenderUser = "USER"
	SenderAI   = "AI"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the relational database.
type Store struct {
	DB *sql.DB
}

// Session is one cooking conversation with its constraints.
type Session struct {
	ID                  string
	Name                string
	DietType            string
	ExcludedIngredients string
	Persona             string
	UserID              *string
	CreatedAt           time.Time
}

// Message is one chat turn half. Immutable once created.
type Message struct {
	ID        string
	SessionID string
	Sender    string
	Content   string
	CreatedAt time.Time
}

// Recipe is a knowledge-base entry keyed by its source URL.
type Recipe struct {
	ID        string
	Title     string
	Diet      string
	URL       string
	ScannedAt time.Time
}

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// CreateUser inserts a user with a bcrypt password hash.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1,$2,$3,NOW())`,
		uuid.NewString(), email, passwordHash)
	return err
}

// GetUserByEmail returns the user id and password hash for login checks.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return id, hash, err
}

// CreateSession persists a new session and returns it with id and timestamp
// filled in. Blank diet and allergy fields must already be defaulted by the
// caller.
func (s *Store) CreateSession(ctx context.Context, sess Session) (Session, error) {
	sess.ID = uuid.NewString()
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO cooking_sessions (id, name, diet_type, excluded_ingredients, persona, user_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING created_at`,
		sess.ID, sess.Name, sess.DietType, sess.ExcludedIngredients, sess.Persona, sess.UserID).Scan(&sess.CreatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// GetSession loads one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, diet_type, excluded_ingredients, persona, user_id, created_at
FROM cooking_sessions WHERE id=$1`, id).
		Scan(&sess.ID, &sess.Name, &sess.DietType, &sess.ExcludedIngredients, &sess.Persona, &sess.UserID, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns sessions owned by the given user, newest first. A nil
// user lists unowned sessions only, never another user's.
func (s *Store) ListSessions(ctx context.Context, userID *string) ([]Session, error) {
	query := `SELECT id, name, diet_type, excluded_ingredients, persona, user_id, created_at
FROM cooking_sessions WHERE user_id IS NULL ORDER BY created_at DESC`
	args := []interface{}{}
	if userID != nil {
		query = `SELECT id, name, diet_type, excluded_ingredients, persona, user_id, created_at
FROM cooking_sessions WHERE user_id=$1 ORDER BY created_at DESC`
		args = append(args, *userID)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.DietType, &sess.ExcludedIngredients, &sess.Persona, &sess.UserID, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session; messages cascade at the schema level.
// Callers are responsible for purging derived memory vectors first.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM cooking_sessions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage adds one message to a session's transcript.
func (s *Store) AppendMessage(ctx context.Context, sessionID, sender, content string) (Message, error) {
	msg := Message{ID: uuid.NewString(), SessionID: sessionID, Sender: sender, Content: content}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO chat_messages (id, session_id, sender, content, created_at)
VALUES ($1,$2,$3,$4,NOW()) RETURNING created_at`,
		msg.ID, msg.SessionID, msg.Sender, msg.Content).Scan(&msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a session's transcript in timestamp order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, session_id, sender, content, created_at
FROM chat_messages WHERE session_id=$1 ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Sender, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// GetRecipeByURL is the ingestion dedup check: exact URL string equality.
func (s *Store) GetRecipeByURL(ctx context.Context, url string) (Recipe, error) {
	var r Recipe
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, title, diet, url, scanned_at FROM stored_recipes WHERE url=$1`, url).
		Scan(&r.ID, &r.Title, &r.Diet, &r.URL, &r.ScannedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Recipe{}, ErrNotFound
	}
	if err != nil {
		return Recipe{}, fmt.Errorf("get recipe by url: %w", err)
	}
	return r, nil
}

// CreateRecipe persists one ingested recipe record.
func (s *Store) CreateRecipe(ctx context.Context, r Recipe) (Recipe, error) {
	r.ID = uuid.NewString()
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO stored_recipes (id, title, diet, url, scanned_at)
VALUES ($1,$2,$3,$4,NOW()) RETURNING scanned_at`,
		r.ID, r.Title, r.Diet, r.URL).Scan(&r.ScannedAt)
	if err != nil {
		return Recipe{}, fmt.Errorf("create recipe: %w", err)
	}
	return r, nil
}

// GetRecipe loads one recipe by id.
func (s *Store) GetRecipe(ctx context.Context, id string) (Recipe, error) {
	var r Recipe
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, title, diet, url, scanned_at FROM stored_recipes WHERE id=$1`, id).
		Scan(&r.ID, &r.Title, &r.Diet, &r.URL, &r.ScannedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Recipe{}, ErrNotFound
	}
	if err != nil {
		return Recipe{}, fmt.Errorf("get recipe: %w", err)
	}
	return r, nil
}

// ListRecipes returns all stored recipes, newest first.
func (s *Store) ListRecipes(ctx context.Context) ([]Recipe, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, diet, url, scanned_at FROM stored_recipes ORDER BY scanned_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	var out []Recipe
	for rows.Next() {
		var r Recipe
		if err := rows.Scan(&r.ID, &r.Title, &r.Diet, &r.URL, &r.ScannedAt); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRecipe removes one recipe row. Chunk cleanup in the vector store is
// the caller's job and happens before this call.
func (s *Store) DeleteRecipe(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM stored_recipes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
