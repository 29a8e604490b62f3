package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/chefbot/config"
	"github.com/mohammad-safakhou/chefbot/provider"
)

// SearchResult is one hit from a web search backend.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher is a pluggable web search backend.
type Searcher interface {
	Discover(ctx context.Context, q string, k int) ([]SearchResult, error)
}

// NewSearcher selects a backend by provider name.
func NewSearcher(cfg config.WebSearchConfig) (Searcher, error) {
	switch cfg.Provider {
	case "serper":
		return serperSearch{apiKey: cfg.APIKey}, nil
	case "brave", "":
		return braveSearch{apiKey: cfg.APIKey}, nil
	default:
		return nil, fmt.Errorf("unsupported web search provider: %s", cfg.Provider)
	}
}

type braveSearch struct {
	apiKey string
}

func (s braveSearch) Discover(ctx context.Context, q string, k int) ([]SearchResult, error) {
	// https://api.search.brave.com/app/documentation/web-search
	url := fmt.Sprintf("https://api.search.brave.com/res/v1/web/search?q=%s&count=%d", strings.ReplaceAll(q, " ", "+"), k)
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.apiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var out []SearchResult
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}

type serperSearch struct {
	apiKey string
}

func (s serperSearch) Discover(ctx context.Context, q string, k int) ([]SearchResult, error) {
	// https://serper.dev/ docs
	body, _ := json.Marshal(map[string]interface{}{"q": q, "num": k})
	req, _ := http.NewRequestWithContext(ctx, "POST", "https://google.serper.dev/search", strings.NewReader(string(body)))
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var out []SearchResult
	for i, r := range raw.Organic {
		if i >= k {
			break
		}
		out = append(out, SearchResult{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}

// WebSearch exposes a search backend as a model tool. Results come back as a
// titled list with URLs so the model can follow up with fetch_content.
type WebSearch struct {
	Backend Searcher
	MaxHits int
	Logger  *log.Logger
}

func (t *WebSearch) Def() provider.ToolDef {
	return provider.ToolDef{
		Name:        "web_search",
		Description: "Searches the web for recipes and cooking information. Use only when the local recipe database has no match.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *WebSearch) Call(ctx context.Context, args map[string]interface{}) (string, error) {
	q, _ := args["query"].(string)
	q = strings.TrimSpace(q)
	if q == "" {
		return "Error: search query cannot be empty.", nil
	}
	k := t.MaxHits
	if k <= 0 {
		k = 5
	}
	results, err := t.Backend.Discover(ctx, q, k)
	if err != nil {
		if t.Logger != nil {
			t.Logger.Printf("web search failed: %v", err)
		}
		return fmt.Sprintf("Error: web search failed: %v", err), nil
	}
	if len(results) == 0 {
		return "No web results found.", nil
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n%s\n%s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.TrimSpace(b.String()), nil
}
