package domain

import "time"

// Timer is a countdown timer owned by the timer registry. All time
// accounting is in whole seconds, advanced by the registry's shared
// tick, so a timer's history is fully determined by the number of ticks
// it has seen while running.
type Timer struct {
	ID             string
	Label          string
	Emoji          string
	TotalSeconds   int
	ElapsedSeconds int
	State          TimerState

	// NotifyAt holds remaining-seconds thresholds, sorted descending.
	// Each threshold fires a one-shot milestone and is removed; it
	// never refires.
	NotifyAt []int

	// Wall-clock bookkeeping for display ("started 5 minutes ago").
	// Pause spans are accumulated so elapsed wall time can be derived
	// across pause/resume.
	StartedAt   time.Time
	PausedAt    time.Time
	PausedTotal time.Duration

	// SecondsSinceDone counts ticks since completion; the registry
	// auto-dismisses the timer once it reaches the configured window.
	SecondsSinceDone int
}

// Remaining returns the seconds left, floored at zero.
func (t *Timer) Remaining() int {
	r := t.TotalSeconds - t.ElapsedSeconds
	if r < 0 {
		return 0
	}
	return r
}

// TimerState represents the lifecycle state of a timer.
type TimerState int

const (
	TimerRunning TimerState = iota
	TimerPaused
	TimerCompleted
)

// String returns a human-readable timer state.
func (s TimerState) String() string {
	switch s {
	case TimerRunning:
		return "running"
	case TimerPaused:
		return "paused"
	case TimerCompleted:
		return "completed"
	default:
		return "unknown"
	}
}
