package chef

import "fmt"

// Constraints renders the diet/allergy section of the system directive. Pure
// function of the session's diet type and excluded-ingredients text.
//
// The allergy check is phrased to outrank diet substitutions: a vegan
// substitution that introduces an excluded ingredient is still a violation.
func Constraints(dietType, excludedIngredients string) string {
	return fmt.Sprintf(`User diet: %s
Allergies: %s

ALLERGY CHECK (HIGHEST PRIORITY):
- Before presenting any recipe, verify that none of the excluded ingredients appear in it.
- Allergy restrictions take priority over diet substitutions: never resolve a diet conflict by introducing an excluded ingredient.
- If a found recipe contains an excluded ingredient, say so and propose a safe substitution.`,
		dietType, excludedIngredients)
}
