package kb

import (
	"sort"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/mohammad-safakhou/chefbot/internal/vector"
)

const rrfK = 60 // reciprocal-rank-fusion constant

// Hit is one scored recipe chunk from either search leg.
type Hit struct {
	DocID   string
	URL     string
	Title   string
	Content string
	Score   float64
	Rank    int
}

// indexDoc is the shape handed to bleve for keyword matching.
type indexDoc struct {
	Title   string `json:"title"`
	Diet    string `json:"diet"`
	Content string `json:"content"`
}

// Index is an in-memory BM25 view over the recipe chunks persisted in the
// vector store. It is rebuilt from the authoritative tables at boot and kept
// in step by the ingestion pipeline.
type Index struct {
	mu    sync.RWMutex
	bleve bleve.Index
	meta  map[string]vector.RecipeChunk
}

// NewIndex creates an empty memory-only index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{bleve: idx, meta: make(map[string]vector.RecipeChunk)}, nil
}

// Add indexes one recipe chunk.
func (ix *Index) Add(c vector.RecipeChunk) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.meta[c.ID] = c
	return ix.bleve.Index(c.ID, indexDoc{Title: c.Title, Diet: c.Diet, Content: c.Content})
}

// Rebuild replaces the index contents with the given chunks.
func (ix *Index) Rebuild(chunks []vector.RecipeChunk) error {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return err
	}
	meta := make(map[string]vector.RecipeChunk, len(chunks))
	for _, c := range chunks {
		meta[c.ID] = c
		if err := idx.Index(c.ID, indexDoc{Title: c.Title, Diet: c.Diet, Content: c.Content}); err != nil {
			return err
		}
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.bleve = idx
	ix.meta = meta
	return nil
}

// RemoveByURL drops every chunk originating from one source page, mirroring a
// recipe deletion in the backing stores.
func (ix *Index) RemoveByURL(url string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for id, c := range ix.meta {
		if c.URL == url {
			delete(ix.meta, id)
			_ = ix.bleve.Delete(id)
		}
	}
}

// Bm25Search runs the keyword leg and returns up to k ranked hits.
func (ix *Index) Bm25Search(q string, k int) ([]Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	res, err := ix.bleve.Search(searchReq)
	if err != nil {
		return nil, err
	}
	var out []Hit
	for i, hit := range res.Hits {
		doc, ok := ix.meta[hit.ID]
		if !ok {
			continue
		}
		out = append(out, Hit{
			DocID: hit.ID, URL: doc.URL, Title: doc.Title,
			Content: doc.Content, Score: hit.Score, Rank: i + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// FuseRRF merges two ranked hit lists with reciprocal-rank fusion and returns
// the top k.
func FuseRRF(a, b []Hit, k int) []Hit {
	type agg struct {
		item  Hit
		score float64
	}
	m := map[string]*agg{}
	add := func(list []Hit) {
		for _, h := range list {
			x, ok := m[h.DocID]
			if !ok {
				m[h.DocID] = &agg{item: h}
				x = m[h.DocID]
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)

	items := make([]*agg, 0, len(m))
	for _, v := range m {
		items = append(items, v)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].score > items[j].score })

	if k > len(items) {
		k = len(items)
	}
	out := make([]Hit, 0, k)
	for i := 0; i < k; i++ {
		h := items[i].item
		h.Score = items[i].score
		h.Rank = i + 1
		out = append(out, h)
	}
	return out
}
