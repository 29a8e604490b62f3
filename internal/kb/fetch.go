package kb

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeFetcher renders pages in headless Chrome and returns the body's
// visible text. Recipe sites are script-heavy, so plain HTTP fetches miss
// most of the content.
type ChromeFetcher struct {
	NavTimeout  time.Duration // full navigate-and-settle budget
	SettleDelay time.Duration // wait after load for late-rendering content
	MaxChars    int           // cap on returned text
}

func (f ChromeFetcher) FetchText(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", errors.New("invalid url")
	}
	timeout := f.NavTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	settle := f.SettleDelay
	if settle == 0 {
		settle = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var text string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settle),
		chromedp.Text("body", &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}

	return clampRunes(strings.TrimSpace(text), f.MaxChars), nil
}

// clampRunes caps text at max runes. Byte slicing would split multibyte
// characters and hand invalid UTF-8 to the extraction prompt.
func clampRunes(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
