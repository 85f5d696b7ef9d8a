package storage

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	log := logger.New(logger.LevelOff, io.Discard)
	store, err := NewSQLite(filepath.Join(t.TempDir(), "souschef.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedSession(t *testing.T, store *SQLiteStore) (*domain.Session, []*domain.SessionStep) {
	t.Helper()
	sess := &domain.Session{
		ID:            uuid.NewString(),
		RecipeIDs:     []string{"tom-yum"},
		Status:        domain.SessionInProgress,
		PaxMultiplier: 1.5,
		Units:         domain.UnitsMetric,
	}
	steps := []*domain.SessionStep{
		{
			ID:                  uuid.NewString(),
			SessionID:           sess.ID,
			OrderIndex:          0,
			ShortText:           "Prep aromatics",
			DetailedDescription: "Bruise the {{ing:lemongrass}} and slice the galangal.",
			Ingredients: []domain.StepIngredient{
				{PlaceholderKey: "lemongrass", Name: "lemongrass", Amount: 2, OriginalAmount: 2, Unit: "stalks"},
			},
			Equipment: []domain.StepEquipment{
				{PlaceholderKey: "pot", Name: "large pot"},
			},
		},
		{
			ID:                  uuid.NewString(),
			SessionID:           sess.ID,
			OrderIndex:          1,
			ShortText:           "Simmer broth",
			DetailedDescription: "Bring the stock to a boil in the {{eq:pot}}.",
		},
	}
	require.NoError(t, store.CreateSession(context.Background(), sess, steps))
	return sess, steps
}

func TestSQLiteCreateAndLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	sess, steps := seedSession(t, store)

	got, gotSteps, err := store.LoadSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, []string{"tom-yum"}, got.RecipeIDs)
	assert.Equal(t, domain.SessionInProgress, got.Status)
	assert.InDelta(t, 1.5, got.PaxMultiplier, 0.001)

	require.Len(t, gotSteps, 2)
	assert.Equal(t, steps[0].ID, gotSteps[0].ID)
	assert.Equal(t, "Prep aromatics", gotSteps[0].ShortText)
	require.Len(t, gotSteps[0].Ingredients, 1)
	assert.Equal(t, "lemongrass", gotSteps[0].Ingredients[0].PlaceholderKey)
	require.Len(t, gotSteps[0].Equipment, 1)
	assert.Equal(t, "pot", gotSteps[0].Equipment[0].PlaceholderKey)
}

func TestSQLiteLoadMissingSession(t *testing.T) {
	store := newTestStore(t)
	_, _, err := store.LoadSession(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStepMutations(t *testing.T) {
	store := newTestStore(t)
	sess, steps := seedSession(t, store)
	ctx := context.Background()

	require.NoError(t, store.MarkStepCompleted(ctx, steps[0].ID))
	require.NoError(t, store.MarkStepSkipped(ctx, steps[1].ID))
	require.NoError(t, store.UpdateStepText(ctx, steps[0].ID, "", "Bruise the {{ing:lemongrass}} and slice the ginger."))
	require.NoError(t, store.UpdateCurrentStep(ctx, sess.ID, 1))

	got, gotSteps, err := store.LoadSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentStepIndex)
	assert.True(t, gotSteps[0].IsCompleted)
	assert.False(t, gotSteps[0].CompletedAt.IsZero())
	assert.True(t, gotSteps[1].IsSkipped)
	assert.Contains(t, gotSteps[0].DetailedDescription, "ginger")
	assert.Equal(t, "Prep aromatics", gotSteps[0].ShortText, "empty short text leaves it untouched")
}

func TestSQLiteIngredientMutations(t *testing.T) {
	store := newTestStore(t)
	sess, steps := seedSession(t, store)
	ctx := context.Background()

	require.NoError(t, store.SubstituteIngredient(ctx, steps[0].ID, "lemongrass", "lemon zest", 1, "no lemongrass in the pantry"))
	_, gotSteps, err := store.LoadSession(ctx, sess.ID)
	require.NoError(t, err)

	ing := gotSteps[0].Ingredient("lemongrass")
	require.NotNil(t, ing)
	assert.Equal(t, "lemon zest", ing.Name)
	assert.True(t, ing.IsSubstitution)
	assert.Equal(t, "no lemongrass in the pantry", ing.SubstitutionNote)
	assert.InDelta(t, 1, ing.Amount, 0.001)
	assert.InDelta(t, 2, ing.OriginalAmount, 0.001, "original amount is preserved")

	require.NoError(t, store.AdjustIngredientAmount(ctx, steps[0].ID, "lemongrass", 3))
	_, gotSteps, err = store.LoadSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3, gotSteps[0].Ingredient("lemongrass").Amount, 0.001)
}

func TestSQLiteInsertStepAndReorder(t *testing.T) {
	store := newTestStore(t)
	sess, steps := seedSession(t, store)
	ctx := context.Background()

	inserted := &domain.SessionStep{
		ID:                  uuid.NewString(),
		SessionID:           sess.ID,
		OrderIndex:          1,
		ShortText:           "Fix the broth",
		DetailedDescription: "Add a splash of water, the broth reduced too far.",
		AgentNotes:          "recovery step",
	}
	// Shift the old step 1 down, then insert, mirroring what the
	// reconciler does in memory.
	steps[1].OrderIndex = 2
	require.NoError(t, store.InsertStep(ctx, steps[1]))
	require.NoError(t, store.InsertStep(ctx, inserted))

	_, gotSteps, err := store.LoadSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, gotSteps, 3)
	assert.Equal(t, "Fix the broth", gotSteps[1].ShortText)
	assert.Equal(t, "recovery step", gotSteps[1].AgentNotes)
	assert.Equal(t, steps[1].ID, gotSteps[2].ID)
}

func TestSQLiteModificationLog(t *testing.T) {
	store := newTestStore(t)
	sess, _ := seedSession(t, store)
	ctx := context.Background()

	require.NoError(t, store.RecordModification(ctx, &domain.Modification{
		SessionID: sess.ID,
		StepIndex: 0,
		Type:      domain.ModSubstitute,
		Details:   map[string]any{"placeholder_key": "lemongrass", "new_name": "lemon zest"},
	}))
	require.NoError(t, store.RecordModification(ctx, &domain.Modification{
		SessionID: sess.ID,
		StepIndex: -1,
		Type:      domain.ModSwitchUnits,
		Details:   map[string]any{"units": "imperial"},
	}))

	mods, err := store.Modifications(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, domain.ModSubstitute, mods[0].Type)
	assert.Equal(t, "lemon zest", mods[0].Details["new_name"])
	assert.Equal(t, -1, mods[1].StepIndex)
}

func TestSQLiteStatusTransition(t *testing.T) {
	store := newTestStore(t)
	sess, _ := seedSession(t, store)
	ctx := context.Background()

	require.NoError(t, store.UpdateSessionStatus(ctx, sess.ID, domain.SessionCompleted))
	got, _, err := store.LoadSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, got.Status)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestMemoryStoreImplementsSameContract(t *testing.T) {
	log := logger.New(logger.LevelOff, io.Discard)
	store := NewMemoryStore(log)
	ctx := context.Background()

	sess := &domain.Session{ID: "s1", Status: domain.SessionInProgress, PaxMultiplier: 1}
	steps := []*domain.SessionStep{
		{ID: "st1", SessionID: "s1", OrderIndex: 0, ShortText: "a"},
		{ID: "st2", SessionID: "s1", OrderIndex: 1, ShortText: "b"},
	}
	require.NoError(t, store.CreateSession(ctx, sess, steps))
	require.NoError(t, store.MarkStepSkipped(ctx, "st2"))

	got, gotSteps, err := store.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	require.Len(t, gotSteps, 2)
	assert.True(t, gotSteps[1].IsSkipped)

	assert.ErrorIs(t, store.MarkStepCompleted(ctx, "missing"), domain.ErrNotFound)
}
