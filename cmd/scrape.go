package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/chefbot/config"
	"github.com/mohammad-safakhou/chefbot/internal/kb"
	"github.com/mohammad-safakhou/chefbot/internal/store"
	"github.com/mohammad-safakhou/chefbot/internal/vector"
	"github.com/mohammad-safakhou/chefbot/provider"
)

// scrapeCMD ingests recipe URLs from the command line without going through
// the HTTP API. Useful for seeding the knowledge base.
func scrapeCMD() *cobra.Command {
	var cfgPath string
	var scrape = &cobra.Command{
		Use:   "scrape [urls...]",
		Short: "Ingest recipe pages into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if err := cfg.Storage.Postgres.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return err
			}
			defer st.DB.Close()

			llm, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			index, err := kb.NewIndex()
			if err != nil {
				return err
			}

			pipeline := &kb.Pipeline{
				Store:   st,
				Vectors: &vector.Store{DB: st.DB},
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
				URLDelay:     cfg.Scraper.URLDelay,
				ChunkSize:    cfg.Chef.ChunkSize,
				ChunkOverlap: cfg.Chef.ChunkOverlap,
				EmbedBatch:   cfg.Scraper.EmbedBatch,
				EmbedDims:    cfg.Scraper.EmbeddingDims,
				Logger:       log.New(log.Writer(), "[SCRAPE] ", log.LstdFlags),
			}
			pipeline.Run(ctx, args)
			fmt.Printf("processed %d urls\n", len(args))
			return nil
		},
	}
	scrape.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return scrape
}
