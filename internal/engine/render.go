package engine

import (
	"regexp"
	"strings"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/units"
)

// Step descriptions carry placeholder tokens instead of literal
// ingredient text, so substitutions, pax scaling, and unit switches
// show up everywhere without rewriting prose:
//
//	{{ing:lemongrass}}        -> "lemongrass"
//	{{ing:lemongrass:amount}} -> "2"
//	{{ing:lemongrass:unit}}   -> "stalks"
//	{{eq:pot}}                -> "large pot"
//
// Unknown keys render verbatim so a typo in a recipe is visible, not
// silently swallowed.
var placeholderRe = regexp.MustCompile(`\{\{(ing|eq):([a-zA-Z0-9_-]+)(?::(amount|unit))?\}\}`)

// RenderDescription expands every placeholder in text against the
// step's ingredient and equipment sets, presenting amounts in the
// given unit system.
func RenderDescription(text string, step *domain.SessionStep, sys domain.UnitSystem) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(token string) string {
		m := placeholderRe.FindStringSubmatch(token)
		kind, key, field := m[1], m[2], m[3]

		switch kind {
		case "ing":
			ing := step.Ingredient(key)
			if ing == nil {
				return token
			}
			return renderIngredient(ing, field, sys)
		case "eq":
			for _, eq := range step.Equipment {
				if eq.PlaceholderKey == key {
					return eq.Name
				}
			}
		}
		return token
	})
}

func renderIngredient(ing *domain.StepIngredient, field string, sys domain.UnitSystem) string {
	amount, unit := units.Convert(ing.Amount, ing.Unit, sys)

	switch field {
	case "amount":
		return units.Format(amount)
	case "unit":
		return unit
	default:
		return ing.Name
	}
}

// RenderStep expands the step's visible detailed description.
func RenderStep(step *domain.SessionStep, sys domain.UnitSystem) string {
	return RenderDescription(step.DetailedDescription, step, sys)
}

// SubstitutionNotes collects the human-readable substitution notes for
// a step ("used butter instead of ghee"), one per substituted
// ingredient.
func SubstitutionNotes(step *domain.SessionStep) []string {
	var notes []string
	for i := range step.Ingredients {
		ing := &step.Ingredients[i]
		if !ing.IsSubstitution {
			continue
		}
		note := strings.TrimSpace(ing.SubstitutionNote)
		if note == "" {
			note = "substituted " + ing.Name
		}
		notes = append(notes, note)
	}
	return notes
}
