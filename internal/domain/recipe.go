// Package domain defines the core types and interfaces for the cooking
// session engine. All other packages depend on domain; domain depends
// on nothing.
package domain

// Recipe is an immutable template a session is materialized from.
type Recipe struct {
	ID              string
	Title           string
	Description     string
	MainImageURL    string
	PrepTimeMinutes int
	CookTimeMinutes int
	BasePax         int
	Cuisine         string
	Steps           []RecipeStep
}

// RecipeSummary is a lightweight view of a recipe for listing.
type RecipeSummary struct {
	ID          string
	Title       string
	Description string
	Cuisine     string
}

// RecipeStep is a single instruction in a recipe template. The detailed
// description may contain placeholder tokens such as {{ing:lemongrass}}
// or {{eq:pot}} that reference the step's ingredient and equipment sets.
type RecipeStep struct {
	ID                   string
	OrderIndex           int
	ShortText            string
	DetailedDescription  string
	MediaURL             string
	EstimatedDurationSec int
	Ingredients          []StepIngredient
	Equipment            []StepEquipment
}

// StepIngredient binds an ingredient to a step's placeholder key.
// OriginalAmount is the recipe amount (after pax scaling); Amount is
// what the step currently calls for, which diverges after an agent
// substitution or adjustment.
type StepIngredient struct {
	IngredientID     string
	Name             string
	PlaceholderKey   string
	Amount           float64
	OriginalAmount   float64
	Unit             string
	IsSubstitution   bool
	SubstitutionNote string
}

// StepEquipment binds a piece of equipment to a step's placeholder key.
type StepEquipment struct {
	EquipmentID    string
	Name           string
	PlaceholderKey string
}

// StepView is the common read-only projection over recipe template
// steps and live session steps, so callers that only display a step
// don't care which variant they hold.
type StepView interface {
	Title() string
	Description() string
	Done() bool
}

// Title returns the step's short text.
func (s *RecipeStep) Title() string { return s.ShortText }

// Description returns the step's detailed template text.
func (s *RecipeStep) Description() string { return s.DetailedDescription }

// Done is always false for a template step; completion is a session concept.
func (s *RecipeStep) Done() bool { return false }
