// Package engine implements the session controller: the single
// component that owns a live cooking session, composing the step
// reconciler, the timer registry, and the text diff pipeline behind
// one concurrency-safe surface.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mirepoix/souschef/internal/diff"
	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
	"github.com/mirepoix/souschef/internal/session"
	"github.com/mirepoix/souschef/internal/timer"
	"github.com/mirepoix/souschef/internal/units"
)

// Listener receives controller events. Callbacks may arrive from the
// realtime goroutine or the timer tick goroutine; implementations must
// not block and must not call back into the controller synchronously.
type Listener interface {
	// OnStepsChanged fires whenever the step list, the current pointer,
	// or any step's visible state changes.
	OnStepsChanged()
	// OnPendingTextChange fires when a description change has been
	// staged for a step and is ready to be consumed as a diff.
	OnPendingTextChange(stepID string)
	// OnTimerMilestone mirrors the registry's milestone event.
	OnTimerMilestone(t domain.Timer, remainingSeconds int)
	// OnTimerDone mirrors the registry's completion event.
	OnTimerDone(t domain.Timer)
	// OnTimersChanged mirrors the registry's set-changed event.
	OnTimersChanged()
}

// NopListener ignores all events.
type NopListener struct{}

func (NopListener) OnStepsChanged()                    {}
func (NopListener) OnPendingTextChange(string)         {}
func (NopListener) OnTimerMilestone(domain.Timer, int) {}
func (NopListener) OnTimerDone(domain.Timer)           {}
func (NopListener) OnTimersChanged()                   {}

// Option configures the controller.
type Option func(*Controller)

// WithListener sets the event listener.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listener = l }
}

// WithTimerOptions passes options through to the timer registry.
func WithTimerOptions(opts ...timer.Option) Option {
	return func(c *Controller) { c.timerOpts = opts }
}

// WithDefaultPax sets the pax used when StartSession is given zero.
func WithDefaultPax(n int) Option {
	return func(c *Controller) { c.defaultPax = n }
}

// Controller owns one cooking session end to end. It depends only on
// the domain ports and is fully testable with in-memory fakes.
type Controller struct {
	recipes  domain.RecipeSource
	store    domain.SessionStore
	changes  domain.ChangeSource
	notifier domain.Notifier
	log      *logger.Logger

	listener   Listener
	timerOpts  []timer.Option
	defaultPax int

	timers *timer.Registry

	mu  sync.Mutex
	rec *session.Reconciler
}

// New creates a session controller. The timer registry is live
// immediately; the step state appears once StartSession or
// ResumeSession succeeds.
func New(recipes domain.RecipeSource, store domain.SessionStore, changes domain.ChangeSource, notifier domain.Notifier, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		recipes:    recipes,
		store:      store,
		changes:    changes,
		notifier:   notifier,
		log:        log,
		listener:   NopListener{},
		defaultPax: 2,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.timers = timer.New(timerEvents{c}, log, c.timerOpts...)
	return c
}

// ListRecipes returns all available recipe templates.
func (c *Controller) ListRecipes(ctx context.Context) ([]domain.RecipeSummary, error) {
	return c.recipes.List(ctx)
}

// StartSession materializes a new session from one or more recipes.
// Step order follows recipe order; ingredient amounts are scaled from
// each recipe's base pax to the requested pax. The session is live as
// soon as this returns; persistence happens in the background.
func (c *Controller) StartSession(ctx context.Context, recipeIDs []string, pax int, userID string) (*domain.Session, error) {
	if len(recipeIDs) == 0 {
		return nil, fmt.Errorf("no recipes selected")
	}
	if pax <= 0 {
		pax = c.defaultPax
	}

	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		RecipeIDs: recipeIDs,
		Status:    domain.SessionInProgress,
		Units:     domain.UnitsMetric,
		StartedAt: time.Now(),
		CreatedAt: time.Now(),
	}

	var steps []*domain.SessionStep
	order := 0
	for _, recipeID := range recipeIDs {
		recipe, err := c.recipes.Get(ctx, recipeID)
		if err != nil {
			return nil, fmt.Errorf("getting recipe %s: %w", recipeID, err)
		}
		multiplier := 1.0
		if recipe.BasePax > 0 {
			multiplier = float64(pax) / float64(recipe.BasePax)
		}
		sess.PaxMultiplier = multiplier

		for i := range recipe.Steps {
			steps = append(steps, materializeStep(sess.ID, &recipe.Steps[i], order, multiplier))
			order++
		}
	}
	if len(steps) == 0 {
		return nil, domain.ErrNoActiveSteps
	}

	c.mu.Lock()
	c.rec = session.New(sess, steps, c.store, c.log)
	c.mu.Unlock()

	persisted := make([]*domain.SessionStep, len(steps))
	for i, st := range steps {
		stepCopy := *st
		persisted[i] = &stepCopy
	}
	sessCopy := *sess
	c.persist(func(ctx context.Context) error {
		return c.store.CreateSession(ctx, &sessCopy, persisted)
	})

	c.log.Info("session %s started: %d steps for %d pax", sess.ID, len(steps), pax)
	c.listener.OnStepsChanged()
	return sess, nil
}

// ResumeSession rebuilds controller state from the store. The load is
// synchronous: resuming with no state is not a session.
func (c *Controller) ResumeSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, steps, err := c.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sess.Status != domain.SessionInProgress && sess.Status != domain.SessionPaused {
		return nil, domain.ErrSessionNotActive
	}

	c.mu.Lock()
	c.rec = session.New(sess, steps, c.store, c.log)
	c.mu.Unlock()

	c.log.Info("session %s resumed with %d steps", sessionID, len(steps))
	c.listener.OnStepsChanged()
	return sess, nil
}

// Run consumes the remote change feed until ctx is cancelled. Events
// are applied strictly in arrival order; no reordering, no batching.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.rec == nil {
		c.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	sessionID := c.rec.Session().ID
	c.mu.Unlock()

	events, err := c.changes.Subscribe(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("subscribing to changes: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.applyRemote(ev)
		}
	}
}

// applyRemote applies one change event and schedules the follow-up
// work it implies (emphasis expiry, pending-text notification).
func (c *Controller) applyRemote(ev domain.ChangeEvent) {
	c.mu.Lock()
	rec := c.rec
	if rec == nil {
		c.mu.Unlock()
		return
	}
	rec.ApplyChange(ev)

	pendingStaged := ev.Type == domain.ChangeUpdate && rec.HasPendingText(ev.StepID)
	inserted := ev.Type == domain.ChangeInsert && ev.New != nil
	var insertedID string
	if inserted {
		insertedID = ev.New.ID
	}
	c.mu.Unlock()

	if inserted {
		c.scheduleEmphasisExpiry(insertedID)
	}
	if pendingStaged {
		c.listener.OnPendingTextChange(ev.StepID)
	}
	c.listener.OnStepsChanged()
}

// scheduleEmphasisExpiry clears the recently-inserted flag once the
// emphasis window elapses.
func (c *Controller) scheduleEmphasisExpiry(stepID string) {
	time.AfterFunc(session.InsertEmphasisWindow, func() {
		c.mu.Lock()
		if c.rec != nil {
			c.rec.ClearInserted(stepID)
		}
		c.mu.Unlock()
		c.listener.OnStepsChanged()
	})
}

// ConsumeTextChange pops the staged description change for a step and
// returns its diff. The new text is committed to the visible step as
// part of consumption. The second return is false when nothing is
// staged.
func (c *Controller) ConsumeTextChange(stepID string) (diff.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec == nil {
		return diff.Result{}, false
	}
	p, ok := c.rec.ConsumePendingText(stepID)
	if !ok {
		return diff.Result{}, false
	}
	return diff.Compute(p.Old, p.New), true
}

// NavigateToStep moves the current pointer to the given active index,
// clamped into range. Returns the step now displayed.
func (c *Controller) NavigateToStep(target int) (*domain.SessionStep, error) {
	c.mu.Lock()
	if c.rec == nil {
		c.mu.Unlock()
		return nil, domain.ErrSessionNotActive
	}

	active := c.rec.ActiveSteps()
	if len(active) == 0 {
		c.mu.Unlock()
		return nil, domain.ErrNoActiveSteps
	}
	if target < 0 {
		target = 0
	}
	if target >= len(active) {
		target = len(active) - 1
	}
	if err := c.rec.NavigateTo(target); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	step := c.rec.CurrentStep()
	c.mu.Unlock()

	c.listener.OnStepsChanged()
	return step, nil
}

// NextStep advances the current pointer by one, clamped at the end.
func (c *Controller) NextStep() (*domain.SessionStep, error) {
	c.mu.Lock()
	target := c.currentIndexLocked() + 1
	c.mu.Unlock()
	return c.NavigateToStep(target)
}

// PreviousStep moves the current pointer back by one, clamped at zero.
func (c *Controller) PreviousStep() (*domain.SessionStep, error) {
	c.mu.Lock()
	target := c.currentIndexLocked() - 1
	c.mu.Unlock()
	return c.NavigateToStep(target)
}

func (c *Controller) currentIndexLocked() int {
	if c.rec == nil {
		return 0
	}
	return c.rec.CurrentActiveIndex()
}

// MarkStepComplete completes the step at the given active index, or
// the current step when index is nil. Completing the final active step
// completes the session.
func (c *Controller) MarkStepComplete(index *int) error {
	c.mu.Lock()
	if c.rec == nil {
		c.mu.Unlock()
		return domain.ErrSessionNotActive
	}

	target := c.rec.CurrentActiveIndex()
	if index != nil {
		target = *index
	}
	if err := c.rec.MarkComplete(target); err != nil {
		c.mu.Unlock()
		return err
	}

	done, total := c.rec.CompletedCount()
	sessionDone := total > 0 && done == total
	sess := c.rec.Session()
	if sessionDone {
		sess.Status = domain.SessionCompleted
		sess.CompletedAt = time.Now()
		sessionID := sess.ID
		c.persist(func(ctx context.Context) error {
			return c.store.UpdateSessionStatus(ctx, sessionID, domain.SessionCompleted)
		})
	}
	c.mu.Unlock()

	if sessionDone {
		c.log.Info("session %s: all steps complete", sess.ID)
	}
	c.listener.OnStepsChanged()
	return nil
}

// SkipStep soft-deletes the step at the given active index, or the
// current step when index is nil.
func (c *Controller) SkipStep(index *int) error {
	c.mu.Lock()
	if c.rec == nil {
		c.mu.Unlock()
		return domain.ErrSessionNotActive
	}

	target := c.rec.CurrentActiveIndex()
	if index != nil {
		target = *index
	}
	step := c.stepAtLocked(target)
	err := c.rec.Skip(target)
	if err == nil && step != nil {
		c.recordModificationLocked(target, domain.ModSkip, map[string]any{
			"step_id": step.ID,
			"title":   step.ShortText,
		})
	}
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.listener.OnStepsChanged()
	return nil
}

// PauseSession pauses the session and every running timer.
func (c *Controller) PauseSession() error {
	return c.setStatus(domain.SessionInProgress, domain.SessionPaused, true)
}

// ResumeFromPause resumes a paused session and its paused timers.
func (c *Controller) ResumeFromPause() error {
	return c.setStatus(domain.SessionPaused, domain.SessionInProgress, true)
}

// AbandonSession marks the session abandoned. Timers are cancelled.
func (c *Controller) AbandonSession() error {
	if err := c.setStatus(domain.SessionInProgress, domain.SessionAbandoned, false); err != nil {
		return err
	}
	for _, t := range c.timers.List() {
		if err := c.timers.Cancel(t.ID); err != nil {
			c.log.Warn("cancelling timer %s on abandon: %v", t.ID, err)
		}
	}
	return nil
}

func (c *Controller) setStatus(from, to domain.SessionStatus, toggleTimers bool) error {
	c.mu.Lock()
	if c.rec == nil {
		c.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	sess := c.rec.Session()
	if sess.Status != from {
		c.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	sess.Status = to
	sessionID := sess.ID
	c.persist(func(ctx context.Context) error {
		return c.store.UpdateSessionStatus(ctx, sessionID, to)
	})
	c.mu.Unlock()

	if toggleTimers {
		c.toggleTimersFor(to)
	}
	c.log.Info("session %s: %s -> %s", sessionID, from, to)
	c.listener.OnStepsChanged()
	return nil
}

// toggleTimersFor pauses running timers when the session pauses, and
// resumes paused ones when it resumes. Completed timers are untouched.
func (c *Controller) toggleTimersFor(status domain.SessionStatus) {
	for _, t := range c.timers.List() {
		var flip bool
		switch status {
		case domain.SessionPaused:
			flip = t.State == domain.TimerRunning
		case domain.SessionInProgress:
			flip = t.State == domain.TimerPaused
		}
		if !flip {
			continue
		}
		if _, err := c.timers.Toggle(t.ID); err != nil {
			c.log.Warn("toggling timer %s: %v", t.ID, err)
		}
	}
}

// TimerAction is one manage-timer operation from the tool surface.
type TimerAction struct {
	Action          string // "set", "update", "toggle", "dismiss", "get"
	ID              string
	DurationSeconds int
	Label           string
	Emoji           string
	NotifyAt        []int
	AddSeconds      int
	SubtractSeconds int
}

// ManageTimer dispatches a timer action and returns the resulting
// timer set.
func (c *Controller) ManageTimer(req TimerAction) ([]domain.Timer, error) {
	switch req.Action {
	case "set":
		if _, err := c.timers.Add(req.DurationSeconds, req.Label, req.Emoji, req.NotifyAt); err != nil {
			return nil, err
		}
	case "update":
		update := timer.UpdateRequest{AddSeconds: req.AddSeconds, SubtractSeconds: req.SubtractSeconds}
		if req.Label != "" {
			update.Label = &req.Label
		}
		if req.Emoji != "" {
			update.Emoji = &req.Emoji
		}
		if _, err := c.timers.Update(req.ID, update); err != nil {
			return nil, err
		}
	case "toggle":
		if _, err := c.timers.Toggle(req.ID); err != nil {
			return nil, err
		}
	case "dismiss", "cancel":
		if err := c.timers.Dismiss(req.ID); err != nil {
			return nil, err
		}
	case "get":
		// List below.
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAction, req.Action)
	}
	return c.timers.List(), nil
}

// Timers returns the live timer set, oldest first.
func (c *Controller) Timers() []domain.Timer {
	return c.timers.List()
}

// SwitchUnits changes how ingredient amounts are presented. Stored
// amounts are untouched.
func (c *Controller) SwitchUnits(system string) error {
	sys, err := units.ParseSystem(system)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.rec == nil {
		c.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	sess := c.rec.Session()
	if sess.Units == sys {
		c.mu.Unlock()
		return nil
	}
	sess.Units = sys
	c.recordModificationLocked(-1, domain.ModSwitchUnits, map[string]any{"units": sys.String()})
	c.mu.Unlock()

	c.log.Info("units switched to %s", sys)
	c.listener.OnStepsChanged()
	return nil
}

// SubstituteIngredient swaps an ingredient on the step at the given
// active index (nil = current), by placeholder key. newAmount <= 0
// keeps the existing amount.
func (c *Controller) SubstituteIngredient(index *int, placeholderKey, newName string, newAmount float64, note string) error {
	c.mu.Lock()
	step, activeIndex, err := c.resolveStepLocked(index)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	ing := step.Ingredient(placeholderKey)
	if ing == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no ingredient %q on step %q", domain.ErrNotFound, placeholderKey, step.ShortText)
	}

	oldName := ing.Name
	ing.Name = newName
	ing.IsSubstitution = true
	ing.SubstitutionNote = note
	if newAmount > 0 {
		ing.Amount = newAmount
	}

	stepID := step.ID
	c.persist(func(ctx context.Context) error {
		return c.store.SubstituteIngredient(ctx, stepID, placeholderKey, newName, newAmount, note)
	})
	c.recordModificationLocked(activeIndex, domain.ModSubstitute, map[string]any{
		"placeholder_key": placeholderKey,
		"old_name":        oldName,
		"new_name":        newName,
		"note":            note,
	})
	c.mu.Unlock()

	c.log.Info("substituted %q -> %q on step %s", oldName, newName, stepID)
	c.listener.OnStepsChanged()
	return nil
}

// AdjustIngredientAmount changes an ingredient amount on the step at
// the given active index (nil = current).
func (c *Controller) AdjustIngredientAmount(index *int, placeholderKey string, newAmount float64) error {
	c.mu.Lock()
	step, activeIndex, err := c.resolveStepLocked(index)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	ing := step.Ingredient(placeholderKey)
	if ing == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no ingredient %q on step %q", domain.ErrNotFound, placeholderKey, step.ShortText)
	}

	oldAmount := ing.Amount
	ing.Amount = newAmount

	stepID := step.ID
	c.persist(func(ctx context.Context) error {
		return c.store.AdjustIngredientAmount(ctx, stepID, placeholderKey, newAmount)
	})
	c.recordModificationLocked(activeIndex, domain.ModAdjustAmount, map[string]any{
		"placeholder_key": placeholderKey,
		"old_amount":      oldAmount,
		"new_amount":      newAmount,
	})
	c.mu.Unlock()

	c.listener.OnStepsChanged()
	return nil
}

// InsertRecoveryStep injects an agent-authored step right after the
// current one (the burnt-the-sauce path). The new step carries the
// insert-emphasis flag for the standard window.
func (c *Controller) InsertRecoveryStep(shortText, detailedDescription string) (*domain.SessionStep, error) {
	c.mu.Lock()
	if c.rec == nil {
		c.mu.Unlock()
		return nil, domain.ErrSessionNotActive
	}

	orderIndex := len(c.rec.Steps())
	if current := c.rec.CurrentStep(); current != nil {
		orderIndex = current.OrderIndex + 1
	}
	step := c.rec.InsertLocal(orderIndex, shortText, detailedDescription, "")
	c.recordModificationLocked(c.rec.CurrentActiveIndex(), domain.ModAddStep, map[string]any{
		"step_id": step.ID,
		"title":   shortText,
	})
	stepID := step.ID
	c.mu.Unlock()

	c.scheduleEmphasisExpiry(stepID)
	c.listener.OnStepsChanged()
	return step, nil
}

// resolveStepLocked maps an optional active index (nil = current) to
// its step. Caller holds the lock.
func (c *Controller) resolveStepLocked(index *int) (*domain.SessionStep, int, error) {
	if c.rec == nil {
		return nil, 0, domain.ErrSessionNotActive
	}
	active := c.rec.ActiveSteps()
	if len(active) == 0 {
		return nil, 0, domain.ErrNoActiveSteps
	}
	target := c.rec.CurrentActiveIndex()
	if index != nil {
		target = *index
	}
	if target < 0 || target >= len(active) {
		return nil, 0, domain.ErrIndexOutOfRange
	}
	return active[target], target, nil
}

func (c *Controller) stepAtLocked(activeIndex int) *domain.SessionStep {
	if c.rec == nil {
		return nil
	}
	active := c.rec.ActiveSteps()
	if activeIndex < 0 || activeIndex >= len(active) {
		return nil
	}
	return active[activeIndex]
}

// recordModificationLocked appends to the session's audit log in the
// background. Caller holds the lock.
func (c *Controller) recordModificationLocked(stepIndex int, modType string, details map[string]any) {
	if c.rec == nil {
		return
	}
	mod := &domain.Modification{
		SessionID: c.rec.Session().ID,
		StepIndex: stepIndex,
		Type:      modType,
		Details:   details,
		CreatedAt: time.Now(),
	}
	c.persist(func(ctx context.Context) error {
		return c.store.RecordModification(ctx, mod)
	})
}

// persist runs a store write in the background, mirroring the
// reconciler's contract: memory is authoritative, failures are logged.
func (c *Controller) persist(fn func(ctx context.Context) error) {
	go func() {
		if err := fn(context.Background()); err != nil {
			c.log.Error("engine: persistence write failed: %v", err)
		}
	}()
}

// Close stops the timer loop. The session state stays readable.
func (c *Controller) Close() {
	c.timers.Close()
}

// timerEvents adapts the registry's listener interface onto the
// controller, adding user notifications on top of the forwarding.
type timerEvents struct{ c *Controller }

func (e timerEvents) OnMilestone(t domain.Timer, remaining int) {
	msg := fmt.Sprintf("[Timer] %s: %s left.", timerName(t), formatSeconds(remaining))
	if err := e.c.notifier.Notify(context.Background(), msg); err != nil {
		e.c.log.Warn("milestone notification failed: %v", err)
	}
	e.c.listener.OnTimerMilestone(t, remaining)
}

func (e timerEvents) OnTimerDone(t domain.Timer) {
	msg := fmt.Sprintf("[Timer] %s is up.", timerName(t))
	if err := e.c.notifier.NotifyUrgent(context.Background(), msg); err != nil {
		e.c.log.Warn("completion notification failed: %v", err)
	}
	e.c.listener.OnTimerDone(t)
}

func (e timerEvents) OnTimersChanged() {
	e.c.listener.OnTimersChanged()
}

func timerName(t domain.Timer) string {
	if t.Label != "" {
		return t.Label
	}
	return "timer"
}

// formatSeconds renders a duration the way a cook says it: "2 min",
// "1 min 30 sec", "45 sec".
func formatSeconds(s int) string {
	if s < 60 {
		return fmt.Sprintf("%d sec", s)
	}
	if s%60 == 0 {
		return fmt.Sprintf("%d min", s/60)
	}
	return fmt.Sprintf("%d min %d sec", s/60, s%60)
}

// materializeStep copies a template step into a live session step,
// scaling ingredient amounts by the pax multiplier.
func materializeStep(sessionID string, tpl *domain.RecipeStep, orderIndex int, multiplier float64) *domain.SessionStep {
	st := &domain.SessionStep{
		ID:                  uuid.NewString(),
		SessionID:           sessionID,
		SourceStepID:        tpl.ID,
		OrderIndex:          orderIndex,
		ShortText:           tpl.ShortText,
		DetailedDescription: tpl.DetailedDescription,
		MediaURL:            tpl.MediaURL,
	}
	for _, ing := range tpl.Ingredients {
		scaled := ing
		scaled.Amount = ing.Amount * multiplier
		scaled.OriginalAmount = scaled.Amount
		st.Ingredients = append(st.Ingredients, scaled)
	}
	st.Equipment = append(st.Equipment, tpl.Equipment...)
	return st
}
