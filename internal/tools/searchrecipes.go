package tools

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/chefbot/internal/chef"
	"github.com/mohammad-safakhou/chefbot/internal/kb"
	"github.com/mohammad-safakhou/chefbot/internal/vector"
	"github.com/mohammad-safakhou/chefbot/provider"
)

// SearchRecipes answers recipe queries from the local knowledge base. It runs
// a semantic search over the recipe chunk vectors and a BM25 keyword search
// over the in-memory index, then fuses the two rankings with reciprocal rank
// fusion so exact ingredient names and paraphrased queries both land.
type SearchRecipes struct {
	Embedder chef.Embedder
	Vectors  *vector.Store
	Index    *kb.Index
	TopK     int
	Logger   *log.Logger
}

func (t *SearchRecipes) Def() provider.ToolDef {
	return provider.ToolDef{
		Name:        "search_recipes",
		Description: "Searches the local recipe database for cooking recipes. ALWAYS use this tool first for any recipe or dish request before searching the web.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The dish, ingredient or cooking technique to look up",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *SearchRecipes) Call(ctx context.Context, args map[string]interface{}) (string, error) {
	q, _ := args["query"].(string)
	q = strings.TrimSpace(q)
	if q == "" {
		return "Error: search query cannot be empty.", nil
	}

	fused := kb.FuseRRF(t.semantic(ctx, q), t.keyword(q), t.topK())
	if len(fused) == 0 {
		return fmt.Sprintf("No recipes found in local database for: %s. Try searching the web instead.", q), nil
	}

	parts := make([]string, 0, len(fused))
	for _, h := range fused {
		parts = append(parts, h.Content)
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

// semantic runs the vector leg. Embedding or database failures degrade to an
// empty leg so the keyword leg can still answer.
func (t *SearchRecipes) semantic(ctx context.Context, q string) []kb.Hit {
	embs, err := t.Embedder.CreateEmbedding(ctx, []string{q})
	if err != nil || len(embs) == 0 {
		t.logf("recipe search embedding failed: %v", err)
		return nil
	}
	chunks, err := t.Vectors.SearchRecipes(ctx, embs[0], t.topK(), "")
	if err != nil {
		t.logf("recipe vector search failed: %v", err)
		return nil
	}
	hits := make([]kb.Hit, 0, len(chunks))
	for i, c := range chunks {
		hits = append(hits, kb.Hit{
			DocID:   c.ID,
			URL:     c.URL,
			Title:   c.Title,
			Content: c.Content,
			Rank:    i + 1,
		})
	}
	return hits
}

func (t *SearchRecipes) keyword(q string) []kb.Hit {
	hits, err := t.Index.Bm25Search(q, t.topK())
	if err != nil {
		t.logf("recipe keyword search failed: %v", err)
		return nil
	}
	return hits
}

func (t *SearchRecipes) topK() int {
	if t.TopK <= 0 {
		return 5
	}
	return t.TopK
}

func (t *SearchRecipes) logf(format string, args ...interface{}) {
	if t.Logger != nil {
		t.Logger.Printf(format, args...)
	}
}
