package kb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/chefbot/internal/chef"
	"github.com/mohammad-safakhou/chefbot/internal/store"
	"github.com/mohammad-safakhou/chefbot/internal/vector"
)

const ingestLockKey = "chefbot:ingest:lock"

var (
	recipesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chefbot_recipes_ingested_total",
		Help: "Recipes persisted by the ingestion pipeline.",
	})
	ingestFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chefbot_ingest_failures_total",
		Help: "URLs that failed a pipeline stage and were skipped.",
	})
)

// Pipeline is the knowledge-base ETL state machine. Each URL moves through
// dedup check, extraction, chunk-and-embed, and the dual write into the
// structured and vector stores. Batches run strictly sequentially so a single
// embedding writer is active at a time and the inter-item delay bounds the
// request rate against source sites.
type Pipeline struct {
	Store     *store.Store
	Vectors   *vector.Store
	Extractor *Extractor
	Embedder  chef.Embedder
	Index     *Index

	// Locker, when set, serializes batches across replicas. The dedup check
	// and insert are still not one atomic unit: two concurrent batches with
	// the same URL can both pass dedup. Accepted, bounded inconsistency.
	Locker  *redis.Client
	LockTTL time.Duration

	URLDelay     time.Duration
	ChunkSize    int
	ChunkOverlap int
	EmbedBatch   int
	EmbedDims    int // expected embedding width; 0 disables the check
	Logger       *log.Logger
}

// Run processes a URL batch. One bad URL never aborts the batch: failures are
// logged and the pipeline continues with the next URL.
func (p *Pipeline) Run(ctx context.Context, urls []string) {
	unlock := p.acquireLock(ctx)
	defer unlock()

	for _, url := range urls {
		persisted, err := p.ingest(ctx, url)
		if err != nil {
			ingestFailures.Inc()
			p.logf("error processing %s: %v", url, err)
			continue
		}
		if persisted {
			recipesIngested.Inc()
			// Pause between persisted URLs to bound request rate.
			select {
			case <-time.After(p.URLDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

// ingest runs one URL through the stages. Returns (false, nil) for the
// accepted skip outcomes: already stored, or no recipe on the page.
func (p *Pipeline) ingest(ctx context.Context, url string) (bool, error) {
	if _, err := p.Store.GetRecipeByURL(ctx, url); err == nil {
		p.logf("skipping already scanned URL: %s", url)
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	rec, err := p.Extractor.Extract(ctx, url)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	doc := renderDocument(rec)
	parts := chef.SplitChunks(doc, p.ChunkSize, p.ChunkOverlap)
	embeddings, err := p.embedAll(ctx, parts)
	if err != nil {
		return false, fmt.Errorf("%w: %v", chef.ErrModelUnavailable, err)
	}

	// IDs are assigned here so the same chunk identity reaches both the
	// vector table and the keyword index.
	chunks := make([]vector.RecipeChunk, len(parts))
	for i, content := range parts {
		chunks[i] = vector.RecipeChunk{
			ID:        uuid.NewString(),
			URL:       url,
			Title:     rec.Title,
			Diet:      rec.Diet,
			Content:   content,
			Embedding: embeddings[i],
		}
	}
	if err := p.Vectors.InsertRecipeChunks(ctx, chunks); err != nil {
		return false, fmt.Errorf("%w: %v", chef.ErrVectorUnavailable, err)
	}

	stored, err := p.Store.CreateRecipe(ctx, store.Recipe{Title: rec.Title, Diet: rec.Diet, URL: url})
	if err != nil {
		return false, err
	}

	if p.Index != nil {
		for _, c := range chunks {
			if err := p.Index.Add(c); err != nil {
				p.logf("index chunk for %s: %v", url, err)
			}
		}
	}
	p.logf("saved recipe %q (%s) from %s", stored.Title, stored.Diet, url)
	return true, nil
}

// DeleteRecipe removes a stored recipe and every vector chunk tagged with its
// url, keeping the two stores in sync. A crash between the deletions leaves
// an orphaned chunk; that window is accepted.
func (p *Pipeline) DeleteRecipe(ctx context.Context, id string) error {
	rec, err := p.Store.GetRecipe(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return chef.ErrRecipeNotFound
	}
	if err != nil {
		return err
	}

	n, err := p.Vectors.DeleteRecipeChunksByURL(ctx, rec.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", chef.ErrVectorUnavailable, err)
	}
	p.logf("deleted %d vector chunks for %s", n, rec.URL)

	if p.Index != nil {
		p.Index.RemoveByURL(rec.URL)
	}
	return p.Store.DeleteRecipe(ctx, id)
}

// LoadIndex rebuilds the in-memory keyword index from the persisted chunks.
func (p *Pipeline) LoadIndex(ctx context.Context) error {
	if p.Index == nil {
		return nil
	}
	chunks, err := p.Vectors.ListRecipeChunks(ctx)
	if err != nil {
		return err
	}
	return p.Index.Rebuild(chunks)
}

func (p *Pipeline) embedAll(ctx context.Context, parts []string) ([][]float32, error) {
	batch := p.EmbedBatch
	if batch <= 0 {
		batch = 16
	}
	out := make([][]float32, 0, len(parts))
	for start := 0; start < len(parts); start += batch {
		end := start + batch
		if end > len(parts) {
			end = len(parts)
		}
		vecs, err := p.Embedder.CreateEmbedding(ctx, parts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embed chunks: expected %d vectors, got %d", end-start, len(vecs))
		}
		for _, v := range vecs {
			if p.EmbedDims > 0 && len(v) != p.EmbedDims {
				return nil, fmt.Errorf("embed chunks: expected %d dimensions, got %d", p.EmbedDims, len(v))
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// acquireLock blocks until the batch lock is held, then returns the release
// func. Without redis configured it is a no-op: in-process callers already
// submit batches to a single pipeline instance.
func (p *Pipeline) acquireLock(ctx context.Context) func() {
	if p.Locker == nil {
		return func() {}
	}
	ttl := p.LockTTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	for {
		ok, err := p.Locker.SetNX(ctx, ingestLockKey, "1", ttl).Result()
		if err != nil {
			p.logf("ingest lock unavailable, proceeding without: %v", err)
			return func() {}
		}
		if ok {
			return func() { p.Locker.Del(context.Background(), ingestLockKey) }
		}
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return func() {}
		}
	}
}

// renderDocument flattens an extracted recipe into the embeddable content
// document.
func renderDocument(rec *ExtractedRecipe) string {
	return fmt.Sprintf("TITLE: %s\nDIET: %s\nINGREDIENTS:\n%s\nINSTRUCTIONS:\n%s\n",
		rec.Title, rec.Diet, rec.Ingredients, rec.Instructions)
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}
