package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mirepoix/souschef/internal/domain"
)

func renderFixtureStep() *domain.SessionStep {
	return &domain.SessionStep{
		ID:                  "st-1",
		ShortText:           "Brown the butter",
		DetailedDescription: "Melt {{ing:butter:amount}} {{ing:butter:unit}} of {{ing:butter}} in the {{eq:pan}}; the {{ing:butter}} should smell nutty.",
		Ingredients: []domain.StepIngredient{
			{Name: "butter", PlaceholderKey: "butter", Amount: 100, OriginalAmount: 100, Unit: "g"},
		},
		Equipment: []domain.StepEquipment{
			{Name: "stainless pan", PlaceholderKey: "pan"},
		},
	}
}

func TestRenderStepExpandsAllTokenForms(t *testing.T) {
	got := RenderStep(renderFixtureStep(), domain.UnitsMetric)
	assert.Equal(t,
		"Melt 100 g of butter in the stainless pan; the butter should smell nutty.",
		got)
}

func TestRenderStepConvertsUnits(t *testing.T) {
	got := RenderStep(renderFixtureStep(), domain.UnitsImperial)
	assert.Contains(t, got, "3.53 oz of butter")
	assert.NotContains(t, got, "100 g")
}

func TestRenderLeavesUnknownKeysVerbatim(t *testing.T) {
	step := renderFixtureStep()
	step.DetailedDescription = "Add {{ing:cream}} and whisk in the {{eq:bowl}}."
	got := RenderStep(step, domain.UnitsMetric)
	assert.Equal(t, "Add {{ing:cream}} and whisk in the {{eq:bowl}}.", got)
}

func TestRenderSubstitutedIngredient(t *testing.T) {
	step := renderFixtureStep()
	ing := step.Ingredient("butter")
	ing.Name = "ghee"
	ing.IsSubstitution = true
	ing.SubstitutionNote = "used ghee instead of butter"

	got := RenderStep(step, domain.UnitsMetric)
	assert.Contains(t, got, "100 g of ghee")
	assert.Equal(t, []string{"used ghee instead of butter"}, SubstitutionNotes(step))
}

func TestSubstitutionNoteFallback(t *testing.T) {
	step := renderFixtureStep()
	step.Ingredients[0].IsSubstitution = true
	assert.Equal(t, []string{"substituted butter"}, SubstitutionNotes(step))
}

func TestRenderCountStyleUnits(t *testing.T) {
	step := &domain.SessionStep{
		DetailedDescription: "Crush {{ing:garlic:amount}} {{ing:garlic:unit}} of {{ing:garlic}}.",
		Ingredients: []domain.StepIngredient{
			{Name: "garlic", PlaceholderKey: "garlic", Amount: 3, Unit: "cloves"},
		},
	}
	assert.Equal(t, "Crush 3 cloves of garlic.", RenderStep(step, domain.UnitsImperial))
}
