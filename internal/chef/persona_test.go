package chef

import (
	"strings"
	"testing"
)

func TestStyleForKnownPersonas(t *testing.T) {
	for _, p := range KnownPersonas() {
		style := StyleFor(string(p))
		if style == defaultStyle {
			t.Fatalf("persona %q resolved to the default style", p)
		}
	}
}

func TestStyleForDecoratedName(t *testing.T) {
	style := StyleFor("Chef Gordon Ramsay (angry)")
	if !strings.Contains(style, "GORDON RAMSAY") {
		t.Fatalf("decorated name should match Gordon Ramsay, got %q", style)
	}
}

func TestStyleForUnknown(t *testing.T) {
	if StyleFor("Julia Child") != defaultStyle {
		t.Fatalf("unknown persona should fall back to the default style")
	}
}
