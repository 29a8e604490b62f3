package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/chefbot/internal/chef"
	"github.com/mohammad-safakhou/chefbot/provider"
)

// ExtractedRecipe is the extractor's output contract. It is transient: the
// pipeline renders it into a stored recipe plus an embeddable document.
type ExtractedRecipe struct {
	Title        string
	Ingredients  string
	Instructions string
	Diet         string
}

// PageFetcher renders a URL and returns its visible text.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Extractor turns a URL into a structured recipe via one model call over the
// rendered page text. A nil recipe with a nil error means the page carried no
// recipe, which is a normal outcome, not a failure.
type Extractor struct {
	Model   chef.ModelClient
	Fetcher PageFetcher
	Logger  *log.Logger
}

const extractionPrompt = `You are an expert culinary data extractor and translator.
Your goal is to extract recipe data from the raw text below and convert it into a structured JSON in ENGLISH.

--- RAW TEXT START ---
%s
--- RAW TEXT END ---

TASK:
1. Extract the Title, Ingredients, Instructions, and Diet.
2. TRANSLATE EVERYTHING TO ENGLISH. The output must contain NO foreign text.
3. Return a valid JSON.

CRITICAL TITLE RULES (MUST FOLLOW):
- **FORCE TRANSLATION**: Do not treat the title as a proper noun. Translate the *meaning* of the words.
- **NO ORIGINAL NAMES**: Do not output the foreign name.
- **EXAMPLES**:
  - Input: "Tort cu ciocolata" -> Output: "Chocolate Cake" (NOT "Gâteau au Chocolat")
  - Input: "Cozonac" -> Output: "Sweet Bread" (NOT "Cozonac")
  - Input: "Spaghete cu scoici" -> Output: "Spaghetti with Clams"

CRITICAL RULES FOR INSTRUCTIONS (READ CAREFULLY):
- **NO SUMMARIZATION**: You must extract EVERY single action mentioned. Do not skip "small" steps like "Preheat oven" or "Let it cool".
- **SPLIT COMPLEX STEPS**: If a sentence says "Mix the eggs and sugar, then add the flour and fold gently", split this into logical steps in the array.
- **VERBOSITY**: It is better to have 20 short steps than 3 long summarized steps.
- **SEQUENCE**: Maintain the exact chronological order of the recipe.

CRITICAL CLEANING RULES:
- **REMOVE ARTIFACTS**: Remove all checkboxes (▢, □, ☑), bullet points (•, -), emojis, or UI symbols from the start of lines.
- **REMOVE ADS/EXTRANEOUS TEXT**: If you see any text that is clearly an advertisement, user comment, or unrelated to the recipe, exclude it entirely.

JSON STRUCTURE (STRICT):
{
  "title": "THE TRANSLATED ENGLISH TITLE (String)",
  "ingredients": ["1 cup milk", "200g flour", "..."],
  "instructions": [
    "Preheat the oven to 180C.",
    "Grease a baking pan.",
    "In a large bowl, mix the eggs and sugar.",
    "..."
  ],
  "diet": "Diet Type (must be Vegetarian, Vegan, Keto, Omnivore)"
}

OUTPUT RULES:
- Output ONLY the raw JSON string.
- No markdown formatting.
- No conversational text.
- Reread the CRITICAL RULES above to avoid common mistakes.
- The title MUST be in English. If the original title is in another language, translate it properly.`

// Extract fetches the URL's rendered text and asks the model for a
// structured, English recipe record.
func (e *Extractor) Extract(ctx context.Context, url string) (*ExtractedRecipe, error) {
	text, err := e.Fetcher.FetchText(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chef.ErrFetchFailed, err)
	}
	e.logf("extracted text (%d chars) from %s, sending to model", len(text), url)

	resp, err := e.Model.ChatCompletion(ctx, []provider.Message{
		{Role: "user", Content: fmt.Sprintf(extractionPrompt, text)},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chef.ErrModelUnavailable, err)
	}

	rec := ParseRecipeJSON(resp.Content)
	if rec == nil {
		e.logf("no recipe found at %s", url)
	}
	return rec, nil
}

// ParseRecipeJSON extracts the JSON object from a model response and maps it
// into an ExtractedRecipe. The substring between the first '{' and the last
// '}' is parsed so incidental wrapping text is tolerated. Returns nil when no
// braces are found, parsing fails, or the title is absent or the literal
// string "null" (the model's no-recipe signal).
func ParseRecipeJSON(raw string) *ExtractedRecipe {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil
	}

	var parsed struct {
		Title        string          `json:"title"`
		Ingredients  json.RawMessage `json:"ingredients"`
		Instructions json.RawMessage `json:"instructions"`
		Diet         string          `json:"diet"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil
	}
	if parsed.Title == "" || strings.EqualFold(parsed.Title, "null") {
		return nil
	}
	return &ExtractedRecipe{
		Title:        parsed.Title,
		Ingredients:  listToLines(parsed.Ingredients),
		Instructions: listToLines(parsed.Instructions),
		Diet:         parsed.Diet,
	}
}

// listToLines renders a JSON string array as dashed lines, tolerating a plain
// string or a missing field.
func listToLines(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err == nil {
		var sb strings.Builder
		for _, it := range items {
			sb.WriteString("- ")
			sb.WriteString(it)
			sb.WriteString("\n")
		}
		return sb.String()
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	return ""
}

func (e *Extractor) logf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}
