package tools

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/chefbot/provider"
)

const truncationMark = "... [content truncated]"

// FetchContent renders a page in headless Chrome and extracts the readable
// article text. The result is truncated to MaxChars so a single long page
// cannot crowd the model context out.
type FetchContent struct {
	Timeout  time.Duration
	MaxChars int
	Logger   *log.Logger
}

func (t *FetchContent) Def() provider.ToolDef {
	return provider.ToolDef{
		Name:        "fetch_content",
		Description: "Fetches the readable text of a web page, for example a recipe page found with web_search.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "The absolute URL of the page to fetch",
				},
			},
			"required": []string{"url"},
		},
	}
}

func (t *FetchContent) Call(ctx context.Context, args map[string]interface{}) (string, error) {
	raw, _ := args["url"].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Error: url cannot be empty.", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Sprintf("Error: invalid url: %s", raw), nil
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	html, err := fetchHTML(fctx, raw)
	if err != nil {
		if t.Logger != nil {
			t.Logger.Printf("fetch %s failed: %v", raw, err)
		}
		return fmt.Sprintf("Error: could not fetch %s: %v", raw, err), nil
	}

	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		if t.Logger != nil {
			t.Logger.Printf("readability on %s failed: %v", raw, err)
		}
		return fmt.Sprintf("Error: could not extract content from %s", raw), nil
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return fmt.Sprintf("Error: no readable content at %s", raw), nil
	}
	return Truncate(text, t.maxChars()), nil
}

// Truncate cuts text at the rune limit and appends a visible marker so the
// model knows the page continued.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + truncationMark
}

func (t *FetchContent) maxChars() int {
	if t.MaxChars <= 0 {
		return 5000
	}
	return t.MaxChars
}

func fetchHTML(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
