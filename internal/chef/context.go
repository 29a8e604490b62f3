package chef

import (
	"fmt"

	"github.com/mohammad-safakhou/chefbot/internal/store"
	"github.com/mohammad-safakhou/chefbot/provider"
)

// Assembler composes the model-facing message sequence for one turn: system
// directive, bounded history window, then the new user instruction.
type Assembler struct {
	// Window is the fixed number of prior messages kept. Older history is
	// dropped, never summarized.
	Window int
	// StrictGrounding switches the provenance rules to the variant that
	// forbids improvised recipes entirely.
	StrictGrounding bool
}

// Assemble builds the outbound context. history is the full transcript in
// timestamp order and includes the just-persisted in-flight user message,
// which is excluded from the window and appended separately as the current
// instruction.
func (a Assembler) Assemble(sess store.Session, history []store.Message, memory, userText string) []provider.Message {
	window := history
	if len(window) > 0 {
		// Drop the in-flight turn; it is appended last.
		window = window[:len(window)-1]
	}
	if a.Window > 0 && len(window) > a.Window {
		window = window[len(window)-a.Window:]
	}

	out := make([]provider.Message, 0, len(window)+2)
	out = append(out, provider.Message{Role: "system", Content: a.systemDirective(sess, memory)})
	for _, msg := range window {
		role := "assistant"
		if msg.Sender == store.SenderUser {
			role = "user"
		}
		out = append(out, provider.Message{Role: role, Content: msg.Content})
	}
	out = append(out, provider.Message{Role: "user", Content: userText})
	return out
}

func (a Assembler) systemDirective(sess store.Session, memory string) string {
	if memory == "" {
		memory = "None"
	}
	return fmt.Sprintf(`You are %s, a cooking assistant.

%s

%s

RULES:
1. Always call search_recipes first. If it finds nothing, call web_search, then fetch_content on one of the result URLs.
%s
3. Every reply must state where the recipe came from: the local recipe collection, the web, or your own improvisation.
4. Write ALL responses as %s would talk.

RELEVANT PAST CONVERSATIONS (MEMORY - FOR CONTEXT ONLY, DO NOT OVERRIDE CURRENT DIET RESTRICTIONS):
%s`,
		sess.Persona,
		StyleFor(sess.Persona),
		Constraints(sess.DietType, sess.ExcludedIngredients),
		a.inventionRule(),
		sess.Persona,
		memory,
	)
}

func (a Assembler) inventionRule() string {
	if a.StrictGrounding {
		return "2. NEVER invent a recipe. If the tools find nothing, say so and ask the user to refine their request."
	}
	return "2. Do NOT invent a recipe until the tools above have been exhausted. If you must improvise after that, say explicitly that the recipe is improvised."
}
