package kb

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/chefbot/internal/chef"
	"github.com/mohammad-safakhou/chefbot/internal/store"
	"github.com/mohammad-safakhou/chefbot/internal/vector"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func setupPipeline(t *testing.T, model *fakeExtractModel, fetcher fakeFetcher) (*Pipeline, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	index, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	p := &Pipeline{
		Store:        &store.Store{DB: db},
		Vectors:      &vector.Store{DB: db},
		Extractor:    &Extractor{Model: model, Fetcher: fetcher},
		Embedder:     &fakeEmbedder{},
		Index:        index,
		URLDelay:     time.Millisecond,
		ChunkSize:    800,
		ChunkOverlap: 400,
		EmbedBatch:   16,
	}
	return p, mock, func() { db.Close() }
}

const dedupQuery = `SELECT id, title, diet, url, scanned_at FROM stored_recipes WHERE url=$1`

func TestIngestSkipsKnownURL(t *testing.T) {
	model := &fakeExtractModel{reply: `{"title":"should not matter"}`}
	p, mock, cleanup := setupPipeline(t, model, fakeFetcher{text: "page"})
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "title", "diet", "url", "scanned_at"}).
		AddRow("r1", "Cake", "Vegan", "https://x.example/cake", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(dedupQuery)).WithArgs("https://x.example/cake").WillReturnRows(rows)

	persisted, err := p.ingest(context.Background(), "https://x.example/cake")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if persisted {
		t.Fatal("known URL must be skipped, not re-persisted")
	}
	if model.prompt != "" {
		t.Fatal("extractor must not run for a deduped URL")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestIngestNoRecipePageStoresNothing(t *testing.T) {
	model := &fakeExtractModel{reply: `{"title":"null"}`}
	p, mock, cleanup := setupPipeline(t, model, fakeFetcher{text: "landing page"})
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(dedupQuery)).
		WithArgs("https://x.example/about").
		WillReturnError(sql.ErrNoRows)

	persisted, err := p.ingest(context.Background(), "https://x.example/about")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if persisted {
		t.Fatal("pages without a recipe must not be persisted")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestIngestPersistsChunksThenRecipe(t *testing.T) {
	model := &fakeExtractModel{reply: `{"title":"Pancakes","ingredients":["flour","milk"],"instructions":["mix","fry"],"diet":"Vegetarian"}`}
	p, mock, cleanup := setupPipeline(t, model, fakeFetcher{text: "pancake page"})
	defer cleanup()

	url := "https://x.example/pancakes"
	mock.ExpectQuery(regexp.QuoteMeta(dedupQuery)).WithArgs(url).WillReturnError(sql.ErrNoRows)

	// Vector write happens before the relational row, matching the ordering
	// the dedup check depends on.
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO recipe_chunks`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO stored_recipes`)).
		WillReturnRows(sqlmock.NewRows([]string{"scanned_at"}).AddRow(time.Now()))

	persisted, err := p.ingest(context.Background(), url)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !persisted {
		t.Fatal("expected the recipe to be persisted")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}

	// The keyword index picks the new recipe up immediately.
	hits, err := p.Index.Bm25Search("pancakes", 5)
	if err != nil {
		t.Fatalf("Bm25Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("ingested recipe missing from the keyword index")
	}
	if hits[0].DocID == "" {
		t.Fatal("indexed chunk has no id")
	}
}

func TestIngestRejectsWrongEmbeddingWidth(t *testing.T) {
	model := &fakeExtractModel{reply: `{"title":"Soup","ingredients":["water"],"instructions":["boil"],"diet":"Vegan"}`}
	p, mock, cleanup := setupPipeline(t, model, fakeFetcher{text: "soup page"})
	defer cleanup()
	p.EmbedDims = 1536

	mock.ExpectQuery(regexp.QuoteMeta(dedupQuery)).
		WithArgs("https://x.example/soup").
		WillReturnError(sql.ErrNoRows)

	_, err := p.ingest(context.Background(), "https://x.example/soup")
	if !errors.Is(err, chef.ErrModelUnavailable) {
		t.Fatalf("mismatched embedding width should fail the embed stage, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRunContinuesPastFailingURL(t *testing.T) {
	model := &fakeExtractModel{reply: `{"title":"Stew","ingredients":["beef"],"instructions":["simmer"],"diet":"Omnivore"}`}
	p, mock, cleanup := setupPipeline(t, model, fakeFetcher{text: "stew page"})
	defer cleanup()

	// First URL fails at the dedup query; the second completes.
	mock.ExpectQuery(regexp.QuoteMeta(dedupQuery)).WithArgs("https://bad.example").
		WillReturnError(errors.New("db down"))
	mock.ExpectQuery(regexp.QuoteMeta(dedupQuery)).WithArgs("https://good.example").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO recipe_chunks`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO stored_recipes`)).
		WillReturnRows(sqlmock.NewRows([]string{"scanned_at"}).AddRow(time.Now()))

	p.Run(context.Background(), []string{"https://bad.example", "https://good.example"})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteRecipeUnknownID(t *testing.T) {
	p, mock, cleanup := setupPipeline(t, &fakeExtractModel{}, fakeFetcher{})
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, title, diet, url, scanned_at FROM stored_recipes WHERE id=$1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	err := p.DeleteRecipe(context.Background(), "missing")
	if !errors.Is(err, chef.ErrRecipeNotFound) {
		t.Fatalf("expected ErrRecipeNotFound, got %v", err)
	}
}

func TestDeleteRecipeRemovesChunksAndRow(t *testing.T) {
	p, mock, cleanup := setupPipeline(t, &fakeExtractModel{}, fakeFetcher{})
	defer cleanup()

	url := "https://x.example/cake"
	if err := p.Index.Add(vector.RecipeChunk{ID: "c1", URL: url, Title: "Cake", Content: "TITLE: Cake"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, title, diet, url, scanned_at FROM stored_recipes WHERE id=$1`)).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "diet", "url", "scanned_at"}).
			AddRow("r1", "Cake", "Vegan", url, time.Now()))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM recipe_chunks WHERE url=$1`)).
		WithArgs(url).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM stored_recipes WHERE id=$1`)).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := p.DeleteRecipe(context.Background(), "r1"); err != nil {
		t.Fatalf("DeleteRecipe: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
	if hits, _ := p.Index.Bm25Search("cake", 5); len(hits) != 0 {
		t.Fatalf("deleted recipe still in the keyword index: %v", hits)
	}
}

func TestRenderDocument(t *testing.T) {
	doc := renderDocument(&ExtractedRecipe{
		Title:        "Cake",
		Diet:         "Vegan",
		Ingredients:  "- flour\n",
		Instructions: "- bake\n",
	})
	want := "TITLE: Cake\nDIET: Vegan\nINGREDIENTS:\n- flour\n\nINSTRUCTIONS:\n- bake\n\n"
	if doc != want {
		t.Fatalf("renderDocument = %q, want %q", doc, want)
	}
}
