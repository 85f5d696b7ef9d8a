package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		oldText string
		newText string
		want    Result
	}{
		{
			name:    "mid-sentence quantity replacement",
			oldText: "Heat 2 tbsp oil in the pan",
			newText: "Heat 3 tbsp oil in the wok",
			want: Result{
				CommonPrefix: "Heat ",
				Removed:      "2 tbsp oil in the pan",
				Added:        "3 tbsp oil in the wok",
				CommonSuffix: "",
			},
		},
		{
			name:    "shared suffix",
			oldText: "Dice the onion finely",
			newText: "Dice the shallot finely",
			want: Result{
				CommonPrefix: "Dice the ",
				Removed:      "onion",
				Added:        "shallot",
				CommonSuffix: " finely",
			},
		},
		{
			name:    "pure append",
			oldText: "Simmer gently",
			newText: "Simmer gently for 10 minutes",
			want: Result{
				CommonPrefix: "Simmer gently",
				Removed:      "",
				Added:        " for 10 minutes",
				CommonSuffix: "",
			},
		},
		{
			name:    "pure removal",
			oldText: "Season with salt and pepper",
			newText: "Season with salt",
			want: Result{
				CommonPrefix: "Season with salt",
				Removed:      " and pepper",
				Added:        "",
				CommonSuffix: "",
			},
		},
		{
			name:    "full replacement",
			oldText: "abc",
			newText: "xyz",
			want: Result{
				CommonPrefix: "",
				Removed:      "abc",
				Added:        "xyz",
				CommonSuffix: "",
			},
		},
		{
			name:    "empty old",
			oldText: "",
			newText: "Preheat the oven",
			want: Result{
				CommonPrefix: "",
				Removed:      "",
				Added:        "Preheat the oven",
				CommonSuffix: "",
			},
		},
		{
			name:    "multibyte runes stay intact",
			oldText: "Add 250 g crème fraîche",
			newText: "Add 200 g crème fraîche",
			want: Result{
				CommonPrefix: "Add 2",
				Removed:      "5",
				Added:        "0",
				CommonSuffix: "0 g crème fraîche",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.oldText, tt.newText)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.oldText, got.CommonPrefix+got.Removed+got.CommonSuffix, "old partition")
			assert.Equal(t, tt.newText, got.CommonPrefix+got.Added+got.CommonSuffix, "new partition")
		})
	}
}

// Identical inputs must collapse to a full prefix and an empty suffix;
// the suffix scan is bounded by the consumed prefix by construction.
func TestComputeIdentical(t *testing.T) {
	text := "Bring the broth to a rolling boil"
	got := Compute(text, text)

	assert.False(t, got.HasChanges())
	assert.Equal(t, text, got.CommonPrefix)
	assert.Empty(t, got.Removed)
	assert.Empty(t, got.Added)
	assert.Empty(t, got.CommonSuffix)
}

func TestHasChanges(t *testing.T) {
	assert.False(t, Compute("", "").HasChanges())
	assert.True(t, Compute("a", "").HasChanges())
	assert.True(t, Compute("", "a").HasChanges())
}
