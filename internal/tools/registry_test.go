package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/chefbot/provider"
)

type staticTool struct {
	name  string
	reply string
}

func (s staticTool) Def() provider.ToolDef { return provider.ToolDef{Name: s.name} }

func (s staticTool) Call(ctx context.Context, args map[string]interface{}) (string, error) {
	return s.reply, nil
}

func TestRegistryDefsOrder(t *testing.T) {
	r := NewRegistry(staticTool{name: "a"}, staticTool{name: "b"}, staticTool{name: "a"})
	defs := r.Defs()
	if len(defs) != 2 {
		t.Fatalf("duplicate names must be dropped, got %d defs", len(defs))
	}
	if defs[0].Name != "a" || defs[1].Name != "b" {
		t.Fatalf("defs order = %v", defs)
	}
}

func TestRegistryCall(t *testing.T) {
	r := NewRegistry(staticTool{name: "greet", reply: "hello"})
	out, err := r.Call(context.Background(), "greet", nil)
	if err != nil || out != "hello" {
		t.Fatalf("Call = %q, %v", out, err)
	}
	if _, err := r.Call(context.Background(), "nope", nil); err == nil || !strings.Contains(err.Error(), "unknown tool") {
		t.Fatalf("unknown tool should error, got %v", err)
	}
}
