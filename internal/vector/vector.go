package vector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Similarity floors below which hits are discarded. Cosine distance from the
// <=> operator is converted to similarity as 1 - distance.
const (
	conversationThreshold = 0.5
	recipeThreshold       = 0.45
)

// Store wraps the pgvector-backed chunk tables. Chunks are derived data: the
// relational store stays authoritative and chunks are regenerated or purged
// as it changes.
type Store struct {
	DB *sql.DB
}

// ConversationChunk is one slice of a session transcript snapshot.
type ConversationChunk struct {
	ID        string
	SessionID string
	UserID    *string
	Persona   string
	Diet      string
	Content   string
	Embedding []float32
}

// RecipeChunk is one slice of an ingested recipe document, tagged with its
// source URL for cascade deletes.
type RecipeChunk struct {
	ID        string
	URL       string
	Title     string
	Diet      string
	Content   string
	Embedding []float32
}

// DeleteConversationChunks purges every chunk tagged with the session id.
func (s *Store) DeleteConversationChunks(ctx context.Context, sessionID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM conversation_chunks WHERE session_id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete conversation chunks: %w", err)
	}
	return nil
}

// InsertConversationChunks inserts a fresh transcript snapshot. Deliberately
// not wrapped in a transaction with the preceding delete: a failure here
// leaves the session temporarily memory-less, which is an accepted
// degradation rather than a fatal error.
func (s *Store) InsertConversationChunks(ctx context.Context, chunks []ConversationChunk) error {
	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := s.DB.ExecContext(ctx,
			`INSERT INTO conversation_chunks (id, session_id, user_id, persona, diet, content, embedding, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
			id, c.SessionID, c.UserID, c.Persona, c.Diet, c.Content, pgvector.NewVector(c.Embedding))
		if err != nil {
			return fmt.Errorf("insert conversation chunk: %w", err)
		}
	}
	return nil
}

// SearchConversations returns the contents of the topK most similar
// conversation chunks. When userID is set the search is scoped to that
// user's chunks only.
func (s *Store) SearchConversations(ctx context.Context, embedding []float32, topK int, userID *string) ([]string, error) {
	query := `SELECT content FROM conversation_chunks
WHERE 1 - (embedding <=> $1) >= $2
ORDER BY embedding <=> $1 LIMIT $3`
	args := []interface{}{pgvector.NewVector(embedding), conversationThreshold, topK}
	if userID != nil {
		query = `SELECT content FROM conversation_chunks
WHERE user_id=$4 AND 1 - (embedding <=> $1) >= $2
ORDER BY embedding <=> $1 LIMIT $3`
		args = append(args, *userID)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan conversation chunk: %w", err)
		}
		out = append(out, content)
	}
	return out, rows.Err()
}

// InsertRecipeChunks persists the embedded slices of one recipe document.
func (s *Store) InsertRecipeChunks(ctx context.Context, chunks []RecipeChunk) error {
	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := s.DB.ExecContext(ctx,
			`INSERT INTO recipe_chunks (id, url, title, diet, content, embedding, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())`,
			id, c.URL, c.Title, c.Diet, c.Content, pgvector.NewVector(c.Embedding))
		if err != nil {
			return fmt.Errorf("insert recipe chunk: %w", err)
		}
	}
	return nil
}

// DeleteRecipeChunksByURL removes every chunk whose url metadata equals the
// given url and reports how many were removed.
func (s *Store) DeleteRecipeChunksByURL(ctx context.Context, url string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM recipe_chunks WHERE url=$1`, url)
	if err != nil {
		return 0, fmt.Errorf("delete recipe chunks: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SearchRecipes returns the topK most similar recipe chunks. urlFilter, when
// non-empty, scopes the search to chunks from a single source page.
func (s *Store) SearchRecipes(ctx context.Context, embedding []float32, topK int, urlFilter string) ([]RecipeChunk, error) {
	query := `SELECT id, url, title, diet, content FROM recipe_chunks
WHERE 1 - (embedding <=> $1) >= $2
ORDER BY embedding <=> $1 LIMIT $3`
	args := []interface{}{pgvector.NewVector(embedding), recipeThreshold, topK}
	if urlFilter != "" {
		query = `SELECT id, url, title, diet, content FROM recipe_chunks
WHERE url=$4 AND 1 - (embedding <=> $1) >= $2
ORDER BY embedding <=> $1 LIMIT $3`
		args = append(args, urlFilter)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search recipes: %w", err)
	}
	defer rows.Close()

	var out []RecipeChunk
	for rows.Next() {
		var c RecipeChunk
		if err := rows.Scan(&c.ID, &c.URL, &c.Title, &c.Diet, &c.Content); err != nil {
			return nil, fmt.Errorf("scan recipe chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListRecipeChunks streams every recipe chunk without embeddings, used to
// rebuild the in-memory keyword index at boot.
func (s *Store) ListRecipeChunks(ctx context.Context) ([]RecipeChunk, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, url, title, diet, content FROM recipe_chunks`)
	if err != nil {
		return nil, fmt.Errorf("list recipe chunks: %w", err)
	}
	defer rows.Close()

	var out []RecipeChunk
	for rows.Next() {
		var c RecipeChunk
		if err := rows.Scan(&c.ID, &c.URL, &c.Title, &c.Diet, &c.Content); err != nil {
			return nil, fmt.Errorf("scan recipe chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
