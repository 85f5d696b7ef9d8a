package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// recordingListener collects timer events for assertions.
type recordingListener struct {
	mu         sync.Mutex
	milestones []int // thresholds fired, in order
	done       []string
	changed    int
}

func (l *recordingListener) OnMilestone(t domain.Timer, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.milestones = append(l.milestones, remaining)
}

func (l *recordingListener) OnTimerDone(t domain.Timer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done = append(l.done, t.ID)
}

func (l *recordingListener) OnTimersChanged() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changed++
}

func (l *recordingListener) doneCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.done)
}

func setupRegistry(t *testing.T) (*Registry, *recordingListener) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	lis := &recordingListener{}
	return New(lis, log, WithoutLoop()), lis
}

func TestAddValidation(t *testing.T) {
	reg, _ := setupRegistry(t)

	_, err := reg.Add(0, "bad", "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = reg.Add(-5, "bad", "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = reg.Add(DefaultMaxDuration+1, "too long", "", nil)
	assert.ErrorIs(t, err, domain.ErrDurationTooLong)
}

func TestDefaultMilestoneSynthesis(t *testing.T) {
	reg, _ := setupRegistry(t)

	boil, err := reg.Add(30, "Boil", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, boil.NotifyAt)

	egg, err := reg.Add(5, "Crack egg", "", nil)
	require.NoError(t, err)
	assert.Empty(t, egg.NotifyAt)
}

func TestExplicitMilestonesSortedAndFiltered(t *testing.T) {
	reg, _ := setupRegistry(t)

	tm, err := reg.Add(60, "Rest", "", []int{30, 90, 10, 45})
	require.NoError(t, err)
	// 90 >= duration is dropped; the rest sorted descending.
	assert.Equal(t, []int{45, 30, 10}, tm.NotifyAt)
}

func TestTickMonotonicity(t *testing.T) {
	reg, _ := setupRegistry(t)

	tm, err := reg.Add(15, "Simmer", "", nil)
	require.NoError(t, err)

	prev := tm.TotalSeconds
	for i := 0; i < 20; i++ {
		reg.Tick()
		got, err := reg.Get(tm.ID)
		require.NoError(t, err)
		if prev > 0 {
			assert.Equal(t, prev-1, got.Remaining(), "tick %d", i+1)
		} else {
			assert.Equal(t, 0, got.Remaining(), "tick %d", i+1)
		}
		prev = got.Remaining()
	}
}

func TestMilestoneFiresExactlyOnce(t *testing.T) {
	reg, lis := setupRegistry(t)

	tm, err := reg.Add(15, "Pasta", "", []int{10})
	require.NoError(t, err)

	// Ticks 1-4: remaining 14..11, nothing fires.
	for i := 0; i < 4; i++ {
		reg.Tick()
	}
	assert.Empty(t, lis.milestones)

	// Tick 5: remaining transitions 11 -> 10, milestone fires.
	reg.Tick()
	assert.Equal(t, []int{10}, lis.milestones)

	got, err := reg.Get(tm.ID)
	require.NoError(t, err)
	assert.Empty(t, got.NotifyAt, "threshold consumed once fired")

	// Never refires.
	for i := 0; i < 5; i++ {
		reg.Tick()
	}
	assert.Equal(t, []int{10}, lis.milestones)
}

func TestCompletionFiresOnce(t *testing.T) {
	reg, lis := setupRegistry(t)

	tm, err := reg.Add(3, "Flip", "", nil)
	require.NoError(t, err)

	reg.Tick()
	reg.Tick()
	assert.Equal(t, 0, lis.doneCount())

	reg.Tick() // remaining hits 0
	assert.Equal(t, 1, lis.doneCount())

	got, err := reg.Get(tm.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerCompleted, got.State)
	assert.Equal(t, 0, got.Remaining())

	// Remaining stays pinned at 0, no second completion event.
	reg.Tick()
	reg.Tick()
	got, err = reg.Get(tm.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Remaining())
	assert.Equal(t, 1, lis.doneCount())
}

func TestAutoDismissAfterCompletion(t *testing.T) {
	reg, _ := setupRegistry(t)

	tm, err := reg.Add(2, "Toast", "", nil)
	require.NoError(t, err)

	reg.Tick()
	reg.Tick() // completes here; dismiss counter starts next tick

	for i := 0; i < DefaultAutoDismissAfter-1; i++ {
		reg.Tick()
	}
	_, err = reg.Get(tm.ID)
	require.NoError(t, err, "still tracked one tick before the window closes")

	reg.Tick() // 60th tick after completion
	_, err = reg.Get(tm.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDismissBeforeAutoWindow(t *testing.T) {
	reg, _ := setupRegistry(t)

	tm, err := reg.Add(1, "Sear", "", nil)
	require.NoError(t, err)

	reg.Tick() // completes
	require.NoError(t, reg.Dismiss(tm.ID))

	_, err = reg.Get(tm.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestToggleFreezesCountdown(t *testing.T) {
	reg, _ := setupRegistry(t)

	tm, err := reg.Add(10, "Steep", "", nil)
	require.NoError(t, err)

	reg.Tick()
	reg.Tick()

	paused, err := reg.Toggle(tm.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerPaused, paused.State)

	for i := 0; i < 5; i++ {
		reg.Tick()
	}
	got, _ := reg.Get(tm.ID)
	assert.Equal(t, 8, got.Remaining(), "paused timer is frozen")

	resumed, err := reg.Toggle(tm.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerRunning, resumed.State)

	reg.Tick()
	got, _ = reg.Get(tm.ID)
	assert.Equal(t, 7, got.Remaining())
}

func TestToggleCompletedIsNoop(t *testing.T) {
	reg, _ := setupRegistry(t)

	tm, err := reg.Add(1, "Blanch", "", nil)
	require.NoError(t, err)
	reg.Tick()

	got, err := reg.Toggle(tm.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerCompleted, got.State)
}

func TestUpdateAdjustsTotalWithoutResettingElapsed(t *testing.T) {
	reg, _ := setupRegistry(t)

	tm, err := reg.Add(60, "Braise", "", nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		reg.Tick()
	}

	got, err := reg.Update(tm.ID, UpdateRequest{AddSeconds: 30})
	require.NoError(t, err)
	assert.Equal(t, 90, got.TotalSeconds)
	assert.Equal(t, 10, got.ElapsedSeconds)
	assert.Equal(t, 80, got.Remaining())

	// Subtracting below elapsed clamps: remaining cannot go negative.
	got, err = reg.Update(tm.ID, UpdateRequest{SubtractSeconds: 200})
	require.NoError(t, err)
	assert.Equal(t, got.ElapsedSeconds, got.TotalSeconds)
	assert.Equal(t, 0, got.Remaining())
}

func TestUpdateLabelAndEmoji(t *testing.T) {
	reg, _ := setupRegistry(t)

	tm, err := reg.Add(20, "Old", "", nil)
	require.NoError(t, err)

	label, emoji := "Reduce sauce", "🍷"
	got, err := reg.Update(tm.ID, UpdateRequest{Label: &label, Emoji: &emoji})
	require.NoError(t, err)
	assert.Equal(t, "Reduce sauce", got.Label)
	assert.Equal(t, "🍷", got.Emoji)
}

func TestUnknownIDReported(t *testing.T) {
	reg, _ := setupRegistry(t)

	_, err := reg.Update("nope", UpdateRequest{AddSeconds: 5})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = reg.Toggle("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, reg.Cancel("nope"), domain.ErrNotFound)
	assert.ErrorIs(t, reg.Dismiss("nope"), domain.ErrNotFound)
}

func TestListOrderedByStart(t *testing.T) {
	reg, _ := setupRegistry(t)

	a, _ := reg.Add(30, "A", "", nil)
	b, _ := reg.Add(40, "B", "", nil)

	list := reg.List()
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.Contains(t, ids, a.ID)
	assert.Contains(t, ids, b.ID)
}

// The background loop starts with the first timer and stops itself once
// the set empties out.
func TestSharedLoopSelfStops(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	lis := &recordingListener{}
	reg := New(lis, log, WithTickInterval(5*time.Millisecond), WithAutoDismissAfter(1))
	defer reg.Close()

	_, err := reg.Add(1, "Quick", "", nil)
	require.NoError(t, err)

	// Completion after ~1 tick, auto-dismiss one tick later.
	require.Eventually(t, func() bool {
		return len(reg.List()) == 0
	}, time.Second, 5*time.Millisecond, "timer should complete and auto-dismiss")

	require.Eventually(t, func() bool {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		return !reg.loopRunning
	}, time.Second, 5*time.Millisecond, "loop should stop once empty")

	// Adding again restarts the loop.
	_, err = reg.Add(60, "Again", "", nil)
	require.NoError(t, err)
	reg.mu.Lock()
	running := reg.loopRunning
	reg.mu.Unlock()
	assert.True(t, running)
}
