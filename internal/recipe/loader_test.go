package recipe

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

const tomKhaYAML = `id: tom-kha
title: Tom Kha Gai
cuisine: thai
base_pax: 4
prep_time_minutes: 15
cook_time_minutes: 25
steps:
  - order_index: 0
    short_text: Simmer the broth
    detailed_description: "Bring {{ing:coconut_milk}} to a simmer in the {{eq:pot}}."
    estimated_duration_sec: 300
    ingredients:
      - name: coconut milk
        placeholder_key: coconut_milk
        amount: 400
        unit: ml
    equipment:
      - name: medium pot
        placeholder_key: pot
  - order_index: 1
    short_text: Add the chicken
    detailed_description: "Add {{ing:chicken}} and poach gently."
    ingredients:
      - name: chicken thigh
        placeholder_key: chicken
        amount: 300
        unit: g
`

func TestParseRecipe(t *testing.T) {
	r, err := Parse([]byte(tomKhaYAML))
	require.NoError(t, err)

	assert.Equal(t, "tom-kha", r.ID)
	assert.Equal(t, "Tom Kha Gai", r.Title)
	assert.Equal(t, 4, r.BasePax)
	assert.Equal(t, "thai", r.Cuisine)

	require.Len(t, r.Steps, 2)
	step := r.Steps[0]
	assert.Equal(t, "Simmer the broth", step.ShortText)
	assert.Equal(t, 300, step.EstimatedDurationSec)
	require.Len(t, step.Ingredients, 1)
	assert.Equal(t, "coconut_milk", step.Ingredients[0].PlaceholderKey)
	assert.InDelta(t, 400, step.Ingredients[0].Amount, 0.001)
	assert.InDelta(t, 400, step.Ingredients[0].OriginalAmount, 0.001,
		"original amount tracks the parsed amount")
	require.Len(t, step.Equipment, 1)
	assert.Equal(t, "pot", step.Equipment[0].PlaceholderKey)
}

func TestParseDefaults(t *testing.T) {
	r, err := Parse([]byte("title: Weeknight Fried Rice\nsteps:\n  - short_text: Fry\n"))
	require.NoError(t, err)

	assert.Equal(t, "weeknight-fried-rice", r.ID, "id is slugified from the title")
	assert.Equal(t, 4, r.BasePax, "base pax defaults to 4")
	require.Len(t, r.Steps, 1)
	assert.Equal(t, "weeknight-fried-rice-step-0", r.Steps[0].ID)
}

func TestParseRejectsUntitled(t *testing.T) {
	_, err := Parse([]byte("cuisine: thai\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("title: [broken"))
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "tom-kha-gai", slugify("Tom Kha Gai"))
	assert.Equal(t, "creme-brulee", slugify("  Creme Brulee!  "))
	assert.Equal(t, "5-spice-duck", slugify("5-Spice Duck"))
}

func TestLoadDirSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tom-kha.yaml"), []byte(tomKhaYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("title: ["), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a recipe"), 0o644))

	log := logger.New(logger.LevelOff, io.Discard)
	src := NewMemorySource(log)
	require.NoError(t, LoadDir(dir, src, log))

	summaries, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "tom-kha", summaries[0].ID)

	_, err = src.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoadDirMissingDir(t *testing.T) {
	log := logger.New(logger.LevelOff, io.Discard)
	err := LoadDir(filepath.Join(t.TempDir(), "nope"), NewMemorySource(log), log)
	assert.Error(t, err)
}
