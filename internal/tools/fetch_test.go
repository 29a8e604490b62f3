package tools

import (
	"context"
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 6000)
	out := Truncate(long, 5000)
	if len([]rune(out)) != 5000+len([]rune(truncationMark)) {
		t.Fatalf("truncated length = %d", len(out))
	}
	if !strings.HasSuffix(out, truncationMark) {
		t.Fatalf("missing truncation marker: %q", out[len(out)-40:])
	}
	if got := Truncate("short", 5000); got != "short" {
		t.Fatalf("short text must pass through, got %q", got)
	}
}

func TestTruncateUnicodeBoundary(t *testing.T) {
	text := strings.Repeat("é", 10)
	out := Truncate(text, 5)
	if !strings.HasPrefix(out, strings.Repeat("é", 5)) {
		t.Fatalf("rune-boundary truncation broken: %q", out)
	}
}

func TestFetchContentRejectsBadURL(t *testing.T) {
	tool := &FetchContent{}
	for _, u := range []string{"", "   ", "ftp://x.example", "not a url at all://"} {
		out, err := tool.Call(context.Background(), map[string]interface{}{"url": u})
		if err != nil {
			t.Fatalf("bad urls must fold into text, got %v", err)
		}
		if !strings.HasPrefix(out, "Error:") {
			t.Fatalf("url %q: result = %q", u, out)
		}
	}
}
