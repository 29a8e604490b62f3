package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/chefbot/config"
	"github.com/mohammad-safakhou/chefbot/internal/chef"
	"github.com/mohammad-safakhou/chefbot/internal/kb"
	"github.com/mohammad-safakhou/chefbot/internal/store"
	"github.com/mohammad-safakhou/chefbot/internal/tools"
	"github.com/mohammad-safakhou/chefbot/internal/vector"
	"github.com/mohammad-safakhou/chefbot/provider"
)

// Run wires every dependency and serves the API until the listener fails.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return err
	}
	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		log.Printf("[MIGRATE] %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}
	vectors := &vector.Store{DB: st.DB}

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	// Redis is optional; without it ingestion batches are only serialized
	// within this process.
	var rdb *redis.Client
	if cfg.Storage.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
	}

	index, err := kb.NewIndex()
	if err != nil {
		return err
	}
	pipeline := &kb.Pipeline{
		Store:   st,
		Vectors: vectors,
		Extractor: &kb.Extractor{
			Model: llm,
			Fetcher: kb.ChromeFetcher{
				NavTimeout:  cfg.Scraper.NavTimeout,
				SettleDelay: cfg.Scraper.SettleDelay,
				MaxChars:    cfg.Scraper.MaxPageChars,
			},
			Logger: log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags),
		},
		Embedder:     llm,
		Index:        index,
		Locker:       rdb,
		LockTTL:      cfg.Scraper.LockTTL,
		URLDelay:     cfg.Scraper.URLDelay,
		ChunkSize:    cfg.Chef.ChunkSize,
		ChunkOverlap: cfg.Chef.ChunkOverlap,
		EmbedBatch:   cfg.Scraper.EmbedBatch,
		EmbedDims:    cfg.Scraper.EmbeddingDims,
		Logger:       log.New(log.Writer(), "[SCRAPE] ", log.LstdFlags),
	}
	if err := pipeline.LoadIndex(ctx); err != nil {
		log.Printf("[SCRAPE] rebuild keyword index: %v", err)
	}

	searcher, err := tools.NewSearcher(cfg.Tools.WebSearch)
	if err != nil {
		return err
	}
	toolLogger := log.New(log.Writer(), "[TOOLS] ", log.LstdFlags)
	registered := []tools.Tool{
		&tools.SearchRecipes{
			Embedder: llm,
			Vectors:  vectors,
			Index:    index,
			TopK:     cfg.Scraper.SearchTopK,
			Logger:   toolLogger,
		},
		&tools.WebSearch{Backend: searcher, MaxHits: cfg.Tools.WebSearch.MaxHits, Logger: toolLogger},
		&tools.FetchContent{Timeout: cfg.Tools.Fetch.Timeout, MaxChars: cfg.Tools.Fetch.MaxChars, Logger: toolLogger},
	}
	if cfg.Tools.Email.APIKey != "" {
		registered = append(registered, &tools.SendEmail{
			APIKey:  cfg.Tools.Email.APIKey,
			Sender:  cfg.Tools.Email.SenderEmail,
			ReplyTo: cfg.Tools.Email.ReplyTo,
			Logger:  toolLogger,
		})
	}

	orch := &chef.Orchestrator{
		Sessions: st,
		Memory: &chef.Memory{
			Vectors:      vectors,
			Embedder:     llm,
			TopK:         cfg.Chef.MemoryTopK,
			ChunkSize:    cfg.Chef.ChunkSize,
			ChunkOverlap: cfg.Chef.ChunkOverlap,
			Logger:       log.New(log.Writer(), "[MEMORY] ", log.LstdFlags),
		},
		Model: llm,
		Tools: tools.NewRegistry(registered...),
		Assembler: chef.Assembler{
			Window:          cfg.Chef.HistoryWindow,
			StrictGrounding: cfg.Chef.StrictGrounding,
		},
		FallbackReply: cfg.Chef.FallbackReply,
		Logger:        log.New(log.Writer(), "[CHEF] ", log.LstdFlags),
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	sh := &SessionsHandler{Store: st, Orch: orch}
	sh.Register(api.Group("/sessions"), auth.Secret)

	rh := &RecipesHandler{Store: st, Pipeline: pipeline}
	rh.Register(api.Group("/recipes"), auth.Secret)

	if addr == "" {
		addr = cfg.Server.Address
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
