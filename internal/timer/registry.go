// Package timer implements the registry of countdown timers: a shared
// one-second tick advances every running timer, fires one-shot
// milestone and completion events, and auto-dismisses finished timers
// after a grace window.
package timer

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// Policy constants observed in the product. Overridable via options,
// but the defaults are deliberate UX choices, not accidents.
const (
	// DefaultMilestoneAt is the remaining-seconds threshold synthesized
	// for timers longer than itself when the caller supplies none.
	DefaultMilestoneAt = 10

	// DefaultAutoDismissAfter is how many seconds a completed timer
	// stays visible before the registry removes it on its own.
	DefaultAutoDismissAfter = 60

	// DefaultMaxDuration is the policy ceiling on timer length.
	DefaultMaxDuration = 24 * 60 * 60
)

// Listener receives timer events. Callbacks are invoked outside the
// registry lock, on the tick goroutine; implementations must not block.
type Listener interface {
	// OnMilestone fires once per configured threshold, at the tick
	// where remaining first drops to or below it.
	OnMilestone(t domain.Timer, remainingSeconds int)
	// OnTimerDone fires exactly once, at the tick where remaining
	// first reaches zero.
	OnTimerDone(t domain.Timer)
	// OnTimersChanged fires whenever the set of timers or any timer's
	// visible state changes.
	OnTimersChanged()
}

// NopListener ignores all events.
type NopListener struct{}

func (NopListener) OnMilestone(domain.Timer, int) {}
func (NopListener) OnTimerDone(domain.Timer)      {}
func (NopListener) OnTimersChanged()              {}

// Option configures the registry.
type Option func(*Registry)

// WithTickInterval sets the shared tick period. Tests use a short one.
func WithTickInterval(d time.Duration) Option {
	return func(r *Registry) { r.tickInterval = d }
}

// WithAutoDismissAfter sets the post-completion grace window in seconds.
func WithAutoDismissAfter(seconds int) Option {
	return func(r *Registry) { r.autoDismissAfter = seconds }
}

// WithMaxDuration sets the policy ceiling on timer length in seconds.
func WithMaxDuration(seconds int) Option {
	return func(r *Registry) { r.maxDuration = seconds }
}

// WithoutLoop disables the background tick goroutine; the caller
// drives time by calling Tick directly. Used by tests.
func WithoutLoop() Option {
	return func(r *Registry) { r.manual = true }
}

// Registry owns the set of active timers. A single shared ticker
// starts when the first timer is added and stops itself once the set
// becomes empty, so no background loop dangles per timer.
type Registry struct {
	listener Listener
	log      *logger.Logger

	tickInterval     time.Duration
	autoDismissAfter int
	maxDuration      int
	manual           bool

	mu          sync.Mutex
	timers      map[string]*domain.Timer
	loopRunning bool
	done        chan struct{}
	closed      bool
}

// New creates a timer registry with the given listener and options.
func New(listener Listener, log *logger.Logger, opts ...Option) *Registry {
	if listener == nil {
		listener = NopListener{}
	}
	r := &Registry{
		listener:         listener,
		log:              log,
		tickInterval:     1 * time.Second,
		autoDismissAfter: DefaultAutoDismissAfter,
		maxDuration:      DefaultMaxDuration,
		timers:           make(map[string]*domain.Timer),
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add creates and starts a new timer. Durations outside (0, max] are
// rejected, not clamped. If no milestones are supplied and the duration
// exceeds DefaultMilestoneAt, a single milestone at DefaultMilestoneAt
// seconds remaining is synthesized. Thresholds at or above the duration
// are dropped, since they would fire on the first tick and carry nothing.
func (r *Registry) Add(durationSeconds int, label, emoji string, notifyAt []int) (domain.Timer, error) {
	if durationSeconds <= 0 {
		return domain.Timer{}, domain.ErrInvalidDuration
	}
	if durationSeconds > r.maxDuration {
		return domain.Timer{}, domain.ErrDurationTooLong
	}

	if len(notifyAt) == 0 && durationSeconds > DefaultMilestoneAt {
		notifyAt = []int{DefaultMilestoneAt}
	}
	pending := make([]int, 0, len(notifyAt))
	for _, n := range notifyAt {
		if n > 0 && n < durationSeconds {
			pending = append(pending, n)
		} else if n >= durationSeconds {
			r.log.Debug("dropping milestone %ds >= duration %ds", n, durationSeconds)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(pending)))

	t := &domain.Timer{
		ID:           uuid.NewString(),
		Label:        label,
		Emoji:        emoji,
		TotalSeconds: durationSeconds,
		State:        domain.TimerRunning,
		NotifyAt:     pending,
		StartedAt:    time.Now(),
	}

	r.mu.Lock()
	r.timers[t.ID] = t
	r.ensureLoopLocked()
	snapshot := *t
	r.mu.Unlock()

	r.log.Info("timer %s added: %q %ds (milestones %v)", t.ID[:8], label, durationSeconds, pending)
	r.listener.OnTimersChanged()
	return snapshot, nil
}

// UpdateRequest describes a partial timer edit. Nil pointers leave the
// field alone.
type UpdateRequest struct {
	Label           *string
	Emoji           *string
	AddSeconds      int
	SubtractSeconds int
}

// Update edits a live timer. Adding or subtracting seconds mutates the
// total directly without resetting elapsed-time bookkeeping;
// subtracting below the elapsed time is clamped so remaining never goes
// negative outside the completion transition.
func (r *Registry) Update(id string, req UpdateRequest) (domain.Timer, error) {
	r.mu.Lock()
	t, ok := r.timers[id]
	if !ok {
		r.mu.Unlock()
		return domain.Timer{}, domain.ErrNotFound
	}

	if req.Label != nil {
		t.Label = *req.Label
	}
	if req.Emoji != nil {
		t.Emoji = *req.Emoji
	}
	if req.AddSeconds != 0 || req.SubtractSeconds != 0 {
		t.TotalSeconds += req.AddSeconds - req.SubtractSeconds
		if t.TotalSeconds > r.maxDuration {
			t.TotalSeconds = r.maxDuration
		}
		if t.TotalSeconds < t.ElapsedSeconds {
			t.TotalSeconds = t.ElapsedSeconds
		}
	}
	snapshot := *t
	r.mu.Unlock()

	r.log.Debug("timer %s updated: total=%ds elapsed=%ds", id[:8], snapshot.TotalSeconds, snapshot.ElapsedSeconds)
	r.listener.OnTimersChanged()
	return snapshot, nil
}

// Toggle flips a timer between running and paused. Completed timers
// are left alone.
func (r *Registry) Toggle(id string) (domain.Timer, error) {
	r.mu.Lock()
	t, ok := r.timers[id]
	if !ok {
		r.mu.Unlock()
		return domain.Timer{}, domain.ErrNotFound
	}

	now := time.Now()
	switch t.State {
	case domain.TimerRunning:
		t.State = domain.TimerPaused
		t.PausedAt = now
	case domain.TimerPaused:
		t.State = domain.TimerRunning
		if !t.PausedAt.IsZero() {
			t.PausedTotal += now.Sub(t.PausedAt)
			t.PausedAt = time.Time{}
		}
	case domain.TimerCompleted:
		// No-op.
	}
	snapshot := *t
	r.mu.Unlock()

	r.listener.OnTimersChanged()
	return snapshot, nil
}

// Cancel removes a timer unconditionally, clearing any milestone and
// auto-dismiss bookkeeping. Effective immediately even mid-tick.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	t, ok := r.timers[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrNotFound
	}
	t.NotifyAt = nil
	delete(r.timers, id)
	r.mu.Unlock()

	r.log.Info("timer %s cancelled (%q)", id[:8], t.Label)
	r.listener.OnTimersChanged()
	return nil
}

// Dismiss acknowledges a finished timer. Identical contract to Cancel;
// the two names exist because callers reach for different verbs
// depending on whether the timer already fired, and either must work
// regardless of state.
func (r *Registry) Dismiss(id string) error {
	return r.Cancel(id)
}

// Get returns a copy of a timer.
func (r *Registry) Get(id string) (domain.Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[id]
	if !ok {
		return domain.Timer{}, domain.ErrNotFound
	}
	return *t, nil
}

// List returns copies of all timers, oldest first.
func (r *Registry) List() []domain.Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Timer, 0, len(r.timers))
	for _, t := range r.timers {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Close stops the background loop if it is running. Timers are left in
// place; a subsequent Add will not restart a closed registry's loop.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.done)
}

// ensureLoopLocked starts the shared ticker if it isn't running.
// Idempotent; caller holds the lock.
func (r *Registry) ensureLoopLocked() {
	if r.loopRunning || r.manual || r.closed {
		return
	}
	r.loopRunning = true
	go r.loop()
}

func (r *Registry) loop() {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()
	r.log.Debug("timer loop started (tick=%s)", r.tickInterval)

	for {
		select {
		case <-r.done:
			r.mu.Lock()
			r.loopRunning = false
			r.mu.Unlock()
			return
		case <-ticker.C:
			if !r.Tick() {
				r.log.Debug("timer loop stopped: no timers left")
				return
			}
		}
	}
}

// tickEvent is an emission deferred until the lock is released.
type tickEvent struct {
	milestone *domain.Timer
	remaining int
	done      *domain.Timer
	changed   bool
}

// Tick advances every running timer by one second, firing crossed
// milestones and the one-shot completion transition, then advances the
// auto-dismiss counter of timers that completed on an earlier tick.
// Returns false once the registry is empty (the loop uses this to stop
// itself). Unknown or stale timers are skipped defensively.
func (r *Registry) Tick() bool {
	r.mu.Lock()

	var events []tickEvent
	completedNow := make(map[string]bool)

	for _, t := range r.timers {
		if t.State != domain.TimerRunning {
			continue
		}
		t.ElapsedSeconds++
		remaining := t.Remaining()

		for len(t.NotifyAt) > 0 && remaining <= t.NotifyAt[0] {
			threshold := t.NotifyAt[0]
			t.NotifyAt = t.NotifyAt[1:]
			snap := *t
			events = append(events, tickEvent{milestone: &snap, remaining: threshold})
		}

		if remaining == 0 {
			t.State = domain.TimerCompleted
			t.NotifyAt = nil
			completedNow[t.ID] = true
			snap := *t
			events = append(events, tickEvent{done: &snap})
		}
	}

	// Completed timers age toward auto-dismissal in a separate pass, so
	// a timer finishing on this tick starts counting on the next one.
	for id, t := range r.timers {
		if t.State != domain.TimerCompleted || completedNow[id] {
			continue
		}
		t.SecondsSinceDone++
		if t.SecondsSinceDone >= r.autoDismissAfter {
			delete(r.timers, id)
			r.log.Info("timer %s auto-dismissed (%q)", id[:8], t.Label)
			events = append(events, tickEvent{changed: true})
		}
	}

	remaining := len(r.timers)
	if remaining == 0 {
		r.loopRunning = false
	}
	r.mu.Unlock()

	for _, ev := range events {
		switch {
		case ev.milestone != nil:
			r.listener.OnMilestone(*ev.milestone, ev.remaining)
		case ev.done != nil:
			r.listener.OnTimerDone(*ev.done)
		}
	}
	if len(events) > 0 {
		r.listener.OnTimersChanged()
	}

	return remaining > 0
}
