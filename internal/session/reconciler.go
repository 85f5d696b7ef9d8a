// Package session implements the step reconciler: the single
// authoritative, order-stable list of session steps, kept consistent
// under local edits (navigation, completion) and remote change events.
package session

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// InsertEmphasisWindow is how long a newly inserted step is flagged for
// visual emphasis. The caller clears the flag after the window elapses;
// this is deliberately not a registry timer; it has no pause/resume or
// milestone semantics.
const InsertEmphasisWindow = 3 * time.Second

// PendingText is a staged old/new description pair awaiting the
// diff-driven incremental presentation, keyed by step id. Staging is
// overwrite-not-queue: a second update arriving before the first is
// consumed replaces the staged pair, so a fast burst of edits shows one
// diff from the last visible baseline to the final text.
type PendingText struct {
	Old      string
	New      string
	StagedAt time.Time
}

// Reconciler owns a session's step list. All mutation funnels through
// its methods; persistence is a fire-and-forget side effect that never
// rolls back in-memory state.
type Reconciler struct {
	store domain.SessionStore
	log   *logger.Logger

	session *domain.Session
	steps   []*domain.SessionStep // sorted by OrderIndex
	current int                   // index into the active projection

	pending map[string]*PendingText
	recent  map[string]time.Time // recently inserted step ids
}

// New creates a reconciler over the given session and steps. Steps are
// sorted by OrderIndex; the current pointer starts at the session's
// persisted raw index, clamped into the active projection.
func New(sess *domain.Session, steps []*domain.SessionStep, store domain.SessionStore, log *logger.Logger) *Reconciler {
	r := &Reconciler{
		store:   store,
		log:     log,
		session: sess,
		steps:   steps,
		pending: make(map[string]*PendingText),
		recent:  make(map[string]time.Time),
	}
	r.sortSteps()
	r.current = r.activeIndexForRaw(sess.CurrentStepIndex)
	return r
}

// Session returns the session record.
func (r *Reconciler) Session() *domain.Session { return r.session }

// Steps returns the raw list, skipped steps included, in order.
func (r *Reconciler) Steps() []*domain.SessionStep {
	out := make([]*domain.SessionStep, len(r.steps))
	copy(out, r.steps)
	return out
}

// ActiveSteps returns the non-skipped subsequence in OrderIndex order.
// All index-based navigation operates on this projection.
func (r *Reconciler) ActiveSteps() []*domain.SessionStep {
	var out []*domain.SessionStep
	for _, s := range r.steps {
		if !s.IsSkipped {
			out = append(out, s)
		}
	}
	return out
}

// CurrentActiveIndex returns the current pointer into the active
// projection. Defined as 0 when the projection is empty.
func (r *Reconciler) CurrentActiveIndex() int { return r.current }

// CurrentStep returns the currently displayed step, or nil if the
// active projection is empty.
func (r *Reconciler) CurrentStep() *domain.SessionStep {
	active := r.ActiveSteps()
	if len(active) == 0 {
		return nil
	}
	return active[r.current]
}

// ApplyChange applies one remote change event. Events referencing
// unknown steps or missing snapshots are skipped with a diagnostic;
// they never abort processing of later events.
func (r *Reconciler) ApplyChange(ev domain.ChangeEvent) {
	switch ev.Type {
	case domain.ChangeInsert:
		r.applyInsert(ev)
	case domain.ChangeUpdate:
		r.applyUpdate(ev)
	case domain.ChangeDelete:
		r.applyDelete(ev)
	default:
		r.log.Warn("reconciler: dropping event with unknown type %d (step=%s)", ev.Type, ev.StepID)
	}
}

func (r *Reconciler) applyInsert(ev domain.ChangeEvent) {
	if ev.New == nil {
		r.log.Warn("reconciler: insert event without a record (step=%s), skipping", ev.StepID)
		return
	}
	if r.findStep(ev.New.ID) != nil {
		r.log.Debug("reconciler: insert for known step %s, ignoring", ev.New.ID)
		return
	}

	currentID := r.currentStepID()
	step := *ev.New
	r.steps = append(r.steps, &step)
	r.sortSteps()
	r.resolveCurrent(currentID)
	r.recent[step.ID] = time.Now()

	r.log.Info("reconciler: inserted step %s at order %d", step.ID, step.OrderIndex)
}

func (r *Reconciler) applyUpdate(ev domain.ChangeEvent) {
	if ev.New == nil {
		r.log.Warn("reconciler: update event without a record (step=%s), skipping", ev.StepID)
		return
	}
	step := r.findStep(ev.StepID)
	if step == nil {
		r.log.Warn("reconciler: update for unknown step %s, skipping", ev.StepID)
		return
	}

	// Description changes are staged for the diff path, never applied
	// directly to the visible text. The staged baseline is the text
	// currently on screen, so a consumed pair is always internally
	// consistent even when updates overwrite each other.
	if ev.New.DetailedDescription != step.DetailedDescription {
		r.pending[step.ID] = &PendingText{
			Old:      step.DetailedDescription,
			New:      ev.New.DetailedDescription,
			StagedAt: time.Now(),
		}
		r.log.Debug("reconciler: staged text change for step %s", step.ID)
	}

	currentID := r.currentStepID()
	step.ShortText = ev.New.ShortText
	step.MediaURL = ev.New.MediaURL
	step.OrderIndex = ev.New.OrderIndex
	step.IsCompleted = ev.New.IsCompleted
	step.CompletedAt = ev.New.CompletedAt
	step.IsSkipped = ev.New.IsSkipped
	step.AgentNotes = ev.New.AgentNotes
	if ev.New.Ingredients != nil {
		step.Ingredients = ev.New.Ingredients
	}
	r.sortSteps()
	r.resolveCurrent(currentID)
}

// applyDelete marks the step skipped. Steps are never physically
// removed from the raw list on this path.
func (r *Reconciler) applyDelete(ev domain.ChangeEvent) {
	step := r.findStep(ev.StepID)
	if step == nil {
		r.log.Warn("reconciler: delete for unknown step %s, skipping", ev.StepID)
		return
	}
	currentID := r.currentStepID()
	step.IsSkipped = true
	r.resolveCurrent(currentID)
	r.log.Info("reconciler: step %s skipped via remote delete", ev.StepID)
}

// NavigateTo moves the current pointer to the given active index and
// persists the corresponding raw index.
func (r *Reconciler) NavigateTo(activeIndex int) error {
	active := r.ActiveSteps()
	if activeIndex < 0 || activeIndex >= len(active) {
		return domain.ErrIndexOutOfRange
	}
	r.current = activeIndex
	r.persistCurrentStep()
	return nil
}

// MarkComplete completes the step at the given active index. If that
// step is the currently displayed one and not the last, the current
// pointer advances by one. Both effects are persisted.
func (r *Reconciler) MarkComplete(activeIndex int) error {
	active := r.ActiveSteps()
	if len(active) == 0 {
		return domain.ErrNoActiveSteps
	}
	if activeIndex < 0 || activeIndex >= len(active) {
		return domain.ErrIndexOutOfRange
	}

	step := active[activeIndex]
	step.IsCompleted = true
	step.CompletedAt = time.Now()

	if activeIndex == r.current && r.current < len(active)-1 {
		r.current++
	}

	stepID := step.ID
	r.persist(func(ctx context.Context) error {
		return r.store.MarkStepCompleted(ctx, stepID)
	})
	r.persistCurrentStep()
	r.log.Info("reconciler: step %s completed (active index %d)", stepID, activeIndex)
	return nil
}

// Skip soft-deletes the step at the given active index and re-clamps
// the current pointer.
func (r *Reconciler) Skip(activeIndex int) error {
	active := r.ActiveSteps()
	if activeIndex < 0 || activeIndex >= len(active) {
		return domain.ErrIndexOutOfRange
	}

	step := active[activeIndex]
	currentID := r.currentStepID()
	step.IsSkipped = true
	r.resolveCurrent(currentID)

	stepID := step.ID
	r.persist(func(ctx context.Context) error {
		return r.store.MarkStepSkipped(ctx, stepID)
	})
	r.persistCurrentStep()
	return nil
}

// InsertLocal injects a brand-new client-side step (the agent's
// recovery-step path) directly into the raw list. Existing steps at or
// after the order index shift down by one, then indices are normalized,
// mirroring what the backend does on its own insert trigger.
func (r *Reconciler) InsertLocal(orderIndex int, shortText, detailedDescription, mediaURL string) *domain.SessionStep {
	if orderIndex < 0 || orderIndex > len(r.steps) {
		orderIndex = len(r.steps)
	}

	currentID := r.currentStepID()
	for _, s := range r.steps {
		if s.OrderIndex >= orderIndex {
			s.OrderIndex++
		}
	}
	step := &domain.SessionStep{
		ID:                  uuid.NewString(),
		SessionID:           r.session.ID,
		OrderIndex:          orderIndex,
		ShortText:           shortText,
		DetailedDescription: detailedDescription,
		MediaURL:            mediaURL,
	}
	r.steps = append(r.steps, step)
	r.sortSteps()
	r.normalizeOrder()
	r.resolveCurrent(currentID)
	r.recent[step.ID] = time.Now()

	persisted := *step
	r.persist(func(ctx context.Context) error {
		return r.store.InsertStep(ctx, &persisted)
	})
	r.log.Info("reconciler: inserted local step %s at order %d", step.ID, orderIndex)
	return step
}

// ConsumePendingText pops the staged text change for a step, commits
// the new text to the visible step, and returns the pair. The second
// return is false when nothing is staged.
func (r *Reconciler) ConsumePendingText(stepID string) (PendingText, bool) {
	p, ok := r.pending[stepID]
	if !ok {
		return PendingText{}, false
	}
	delete(r.pending, stepID)

	if step := r.findStep(stepID); step != nil {
		step.DetailedDescription = p.New
		stepCopy := *step
		r.persist(func(ctx context.Context) error {
			return r.store.UpdateStepText(ctx, stepCopy.ID, stepCopy.ShortText, stepCopy.DetailedDescription)
		})
	}
	return *p, true
}

// HasPendingText reports whether a staged change exists for a step.
func (r *Reconciler) HasPendingText(stepID string) bool {
	_, ok := r.pending[stepID]
	return ok
}

// RecentlyInserted returns the ids currently flagged for insert
// emphasis.
func (r *Reconciler) RecentlyInserted() []string {
	out := make([]string, 0, len(r.recent))
	for id := range r.recent {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ClearInserted drops a step from the insert-emphasis set. Called by
// the owner once the emphasis window elapses.
func (r *Reconciler) ClearInserted(stepID string) {
	delete(r.recent, stepID)
}

// CompletedCount returns how many active steps are done, and the
// active total.
func (r *Reconciler) CompletedCount() (done, total int) {
	for _, s := range r.ActiveSteps() {
		total++
		if s.IsCompleted {
			done++
		}
	}
	return done, total
}

// ── internals ────────────────────────────────────────────────────

func (r *Reconciler) sortSteps() {
	sort.SliceStable(r.steps, func(i, j int) bool {
		if r.steps[i].OrderIndex == r.steps[j].OrderIndex {
			return r.steps[i].ID < r.steps[j].ID
		}
		return r.steps[i].OrderIndex < r.steps[j].OrderIndex
	})
}

// normalizeOrder rewrites order indices to 0..n-1, removing gaps and
// duplicates after a shift.
func (r *Reconciler) normalizeOrder() {
	for i, s := range r.steps {
		s.OrderIndex = i
	}
}

func (r *Reconciler) findStep(id string) *domain.SessionStep {
	for _, s := range r.steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// currentStepID returns the id of the step the current pointer refers
// to, or empty when the projection is empty.
func (r *Reconciler) currentStepID() string {
	active := r.ActiveSteps()
	if len(active) == 0 || r.current >= len(active) {
		return ""
	}
	return active[r.current].ID
}

// resolveCurrent re-resolves the current pointer after a mutation: by
// the step id it referred to before the change when that step is still
// active, otherwise by clamping the numeric index into the shrunk or
// grown projection. The displayed step must never silently change
// identity because something was inserted elsewhere.
func (r *Reconciler) resolveCurrent(previousID string) {
	active := r.ActiveSteps()
	if len(active) == 0 {
		r.current = 0
		return
	}
	if previousID != "" {
		for i, s := range active {
			if s.ID == previousID {
				r.current = i
				return
			}
		}
	}
	if r.current >= len(active) {
		r.current = len(active) - 1
	}
	if r.current < 0 {
		r.current = 0
	}
}

// activeIndexForRaw maps a raw list index to the active projection,
// clamped into range.
func (r *Reconciler) activeIndexForRaw(rawIndex int) int {
	idx := 0
	for i, s := range r.steps {
		if i == rawIndex {
			break
		}
		if !s.IsSkipped {
			idx++
		}
	}
	active := r.ActiveSteps()
	if len(active) == 0 {
		return 0
	}
	if idx >= len(active) {
		idx = len(active) - 1
	}
	return idx
}

// rawIndexOf returns the step's position in the raw list, or -1.
func (r *Reconciler) rawIndexOf(stepID string) int {
	for i, s := range r.steps {
		if s.ID == stepID {
			return i
		}
	}
	return -1
}

// persistCurrentStep saves the raw index of the current step.
func (r *Reconciler) persistCurrentStep() {
	step := r.CurrentStep()
	if step == nil {
		return
	}
	raw := r.rawIndexOf(step.ID)
	r.session.CurrentStepIndex = raw
	sessionID := r.session.ID
	r.persist(func(ctx context.Context) error {
		return r.store.UpdateCurrentStep(ctx, sessionID, raw)
	})
}

// persist runs a store write in the background. In-memory state is
// authoritative: a failed write is logged and never rolled back, so a
// slow backend cannot freeze or revert the cooking experience.
func (r *Reconciler) persist(fn func(ctx context.Context) error) {
	go func() {
		if err := fn(context.Background()); err != nil {
			r.log.Error("reconciler: persistence write failed: %v", err)
		}
	}()
}
