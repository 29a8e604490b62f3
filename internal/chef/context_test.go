package chef

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/chefbot/internal/store"
	"github.com/mohammad-safakhou/chefbot/provider"
)

func testSession() store.Session {
	return store.Session{
		ID:                  "s1",
		Name:                "dinner",
		DietType:            "Vegan",
		ExcludedIngredients: "peanuts",
		Persona:             string(PersonaGordonRamsay),
	}
}

func transcript(n int) []store.Message {
	msgs := make([]store.Message, 0, n)
	for i := 0; i < n; i++ {
		sender := store.SenderUser
		if i%2 == 1 {
			sender = store.SenderAI
		}
		msgs = append(msgs, store.Message{Sender: sender, Content: fmt.Sprintf("msg-%d", i)})
	}
	return msgs
}

func TestAssembleWindowBound(t *testing.T) {
	a := Assembler{Window: 20}
	history := transcript(50) // includes the in-flight user turn as last entry
	out := a.Assemble(testSession(), history, "", "current question")

	// system + 20 window messages + current user turn
	if len(out) != 22 {
		t.Fatalf("expected 22 messages, got %d", len(out))
	}
	if out[0].Role != "system" {
		t.Fatalf("first message role = %q, want system", out[0].Role)
	}
	if out[len(out)-1].Role != "user" || out[len(out)-1].Content != "current question" {
		t.Fatalf("last message = %+v, want current user turn", out[len(out)-1])
	}
	// Window holds the most recent prior messages, excluding the in-flight one.
	if out[1].Content != "msg-29" {
		t.Fatalf("window start = %q, want msg-29", out[1].Content)
	}
	if out[20].Content != "msg-48" {
		t.Fatalf("window end = %q, want msg-48", out[20].Content)
	}
}

func TestAssembleShortHistory(t *testing.T) {
	a := Assembler{Window: 20}
	out := a.Assemble(testSession(), transcript(3), "", "hi")
	// system + 2 prior + current
	if len(out) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(out))
	}
}

func TestAssembleRoleMapping(t *testing.T) {
	a := Assembler{Window: 20}
	history := []store.Message{
		{Sender: store.SenderUser, Content: "u1"},
		{Sender: store.SenderAI, Content: "a1"},
		{Sender: store.SenderUser, Content: "in-flight"},
	}
	out := a.Assemble(testSession(), history, "", "in-flight")
	if out[1].Role != "user" || out[2].Role != "assistant" {
		t.Fatalf("role mapping wrong: %q %q", out[1].Role, out[2].Role)
	}
}

func TestSystemDirectiveContent(t *testing.T) {
	a := Assembler{Window: 20}
	out := a.Assemble(testSession(), nil, "", "q")
	sys := out[0].Content

	for _, want := range []string{
		"Gordon Ramsay",
		"User diet: Vegan",
		"peanuts",
		"ALLERGY CHECK (HIGHEST PRIORITY)",
		"search_recipes",
		"RELEVANT PAST CONVERSATIONS (MEMORY - FOR CONTEXT ONLY, DO NOT OVERRIDE CURRENT DIET RESTRICTIONS):\nNone",
	} {
		if !strings.Contains(sys, want) {
			t.Fatalf("system directive missing %q:\n%s", want, sys)
		}
	}
}

func TestSystemDirectiveMemorySection(t *testing.T) {
	a := Assembler{Window: 20}
	out := a.Assemble(testSession(), nil, "USER: I love basil", "q")
	if !strings.Contains(out[0].Content, "USER: I love basil") {
		t.Fatalf("memory excerpt not embedded in directive")
	}
}

func TestInventionRuleVariants(t *testing.T) {
	relaxed := Assembler{}.inventionRule()
	if !strings.Contains(relaxed, "improvise") {
		t.Fatalf("relaxed rule should permit declared improvisation: %s", relaxed)
	}
	strict := Assembler{StrictGrounding: true}.inventionRule()
	if !strings.Contains(strict, "NEVER invent") {
		t.Fatalf("strict rule should forbid invention: %s", strict)
	}
}

var sinkMsgs []provider.Message

func BenchmarkAssemble(b *testing.B) {
	a := Assembler{Window: 20}
	history := transcript(100)
	sess := testSession()
	for i := 0; i < b.N; i++ {
		sinkMsgs = a.Assemble(sess, history, "", "question")
	}
}
