package chef

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/chefbot/internal/store"
	"github.com/mohammad-safakhou/chefbot/internal/vector"
)

// Embedder turns texts into semantic vectors. The LLM provider satisfies it.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Memory retrieves and refreshes a session's long-term memory: the
// vector-searchable snapshot of its own past turns, scoped per user.
type Memory struct {
	Vectors      *vector.Store
	Embedder     Embedder
	TopK         int
	ChunkSize    int
	ChunkOverlap int
	Logger       *log.Logger
}

// Search returns the memory excerpt for a query, joined the way the context
// assembler expects. It degrades to "" on any failure: memory is an
// enrichment, never a reason to abort a turn.
func (m *Memory) Search(ctx context.Context, query string, userID *string) string {
	if m.Vectors == nil {
		return ""
	}
	vecs, err := m.Embedder.CreateEmbedding(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		m.logf("memory embed failed: %v", err)
		return ""
	}
	hits, err := m.Vectors.SearchConversations(ctx, vecs[0], m.TopK, userID)
	if err != nil {
		m.logf("memory search failed: %v", err)
		return ""
	}
	if len(hits) == 0 {
		return ""
	}
	return strings.Join(hits, "\n---\n")
}

// Replace regenerates the session's vector representation from the full
// transcript: delete every chunk tagged with the session id, then insert
// fresh overlapping chunks. The two steps are deliberately not atomic.
func (m *Memory) Replace(ctx context.Context, sess store.Session, transcript []store.Message) error {
	if m.Vectors == nil {
		return nil
	}
	if err := m.Vectors.DeleteConversationChunks(ctx, sess.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrVectorUnavailable, err)
	}

	var sb strings.Builder
	for _, msg := range transcript {
		sb.WriteString(msg.Sender)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	parts := SplitChunks(sb.String(), m.ChunkSize, m.ChunkOverlap)
	if len(parts) == 0 {
		return nil
	}

	embeddings, err := m.Embedder.CreateEmbedding(ctx, parts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(embeddings) != len(parts) {
		return fmt.Errorf("embed transcript: expected %d vectors, got %d", len(parts), len(embeddings))
	}

	chunks := make([]vector.ConversationChunk, len(parts))
	for i, content := range parts {
		chunks[i] = vector.ConversationChunk{
			SessionID: sess.ID,
			UserID:    sess.UserID,
			Persona:   sess.Persona,
			Diet:      sess.DietType,
			Content:   content,
			Embedding: embeddings[i],
		}
	}
	if err := m.Vectors.InsertConversationChunks(ctx, chunks); err != nil {
		return fmt.Errorf("%w: %v", ErrVectorUnavailable, err)
	}
	return nil
}

// Forget purges the session's memory entirely, used on session deletion.
func (m *Memory) Forget(ctx context.Context, sessionID string) error {
	if m.Vectors == nil {
		return nil
	}
	return m.Vectors.DeleteConversationChunks(ctx, sessionID)
}

func (m *Memory) logf(format string, args ...interface{}) {
	if m.Logger != nil {
		m.Logger.Printf(format, args...)
	}
}

// SplitChunks slices text into rune-bounded chunks of the given size where
// consecutive chunks share overlap runes. Overlap must be smaller than size;
// anything else falls back to non-overlapping chunks.
func SplitChunks(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	step := size - overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
