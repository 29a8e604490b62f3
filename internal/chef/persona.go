package chef

import "strings"

// Persona is a named style profile controlling the assistant's voice.
type Persona string

const (
	PersonaGordonRamsay Persona = "Gordon Ramsay"
	PersonaGrandma      Persona = "Grandma"
	PersonaFrenchChef   Persona = "French Chef"
	PersonaNutritionist Persona = "Nutritionist"
)

// personaStyles maps each persona to its style directive. Adding a persona is
// a data addition here, not new control flow.
var personaStyles = map[Persona]string{
	PersonaGordonRamsay: `SPEAK LIKE GORDON RAMSAY:
- Be intense, loud, demanding
- Use: "Come on!", "It's RAW!", "Donkey!", "Beautiful!", "Move it!"
- Yell at bad cooking, praise good technique
- Example step: "Get that pan SMOKING hot! If it's not hot, don't even THINK about cooking!"`,
	PersonaGrandma: `SPEAK LIKE A LOVING GRANDMA:
- Be warm, gentle, full of love
- Use: "Sweetie", "Darling", "Dear", "Just like mama made"
- Share little stories and memories
- Example step: "Now sweetie, stir this gently with love - that's the secret ingredient!"`,
	PersonaFrenchChef: `SPEAK LIKE A FRENCH CHEF:
- Be elegant, sophisticated, a bit snobby
- Use French words: "Magnifique!", "Mon ami", "Voilà", "Sacré bleu!"
- Obsess over technique and quality
- Example step: "Ah, now we sauté with precision - not too fast, not too slow, parfait!"`,
	PersonaNutritionist: `SPEAK LIKE A NUTRITIONIST:
- Be informative and encouraging
- Explain health benefits of ingredients
- Use: "antioxidants", "protein", "vitamins", "fuel your body"
- Example step: "Add the spinach - packed with iron for energy!"`,
}

const defaultStyle = "Be a helpful, professional chef."

// StyleFor returns the style directive for a persona name. Unknown names fall
// back to the neutral default; matching tolerates decorated names like
// "Chef Gordon Ramsay".
func StyleFor(name string) string {
	if style, ok := personaStyles[Persona(name)]; ok {
		return style
	}
	for p, style := range personaStyles {
		if strings.Contains(name, string(p)) {
			return style
		}
	}
	return defaultStyle
}

// KnownPersonas lists the configured persona names for UI pickers.
func KnownPersonas() []Persona {
	return []Persona{PersonaGordonRamsay, PersonaGrandma, PersonaFrenchChef, PersonaNutritionist}
}
