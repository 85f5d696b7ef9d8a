package engine

import (
	"github.com/mirepoix/souschef/internal/domain"
)

// Snapshot is a point-in-time view of the whole session, safe to hand
// to renderers and tool handlers. Descriptions arrive fully rendered:
// placeholders expanded, amounts in the session's unit system.
type Snapshot struct {
	SessionID   string         `json:"session_id"`
	Status      string         `json:"status"`
	Units       string         `json:"units"`
	CurrentStep int            `json:"current_step"`
	StepsDone   int            `json:"steps_done"`
	StepsTotal  int            `json:"steps_total"`
	Steps       []StepSnapshot `json:"steps"`
	Timers      []TimerView    `json:"timers"`
}

// StepSnapshot is one active step as presented to the user.
type StepSnapshot struct {
	ID                string   `json:"id"`
	Index             int      `json:"index"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Completed         bool     `json:"completed"`
	Current           bool     `json:"current"`
	RecentlyInserted  bool     `json:"recently_inserted,omitempty"`
	HasPendingText    bool     `json:"has_pending_text,omitempty"`
	SubstitutionNotes []string `json:"substitution_notes,omitempty"`
	AgentNotes        string   `json:"agent_notes,omitempty"`
}

// TimerView is one timer as presented to the user.
type TimerView struct {
	ID               string `json:"id"`
	Label            string `json:"label"`
	Emoji            string `json:"emoji,omitempty"`
	State            string `json:"state"`
	RemainingSeconds int    `json:"remaining_seconds"`
	TotalSeconds     int    `json:"total_seconds"`
}

// State captures the current session view. Skipped steps are absent:
// the snapshot is the active projection, matching what navigation
// indices refer to.
func (c *Controller) State() (Snapshot, error) {
	c.mu.Lock()
	if c.rec == nil {
		c.mu.Unlock()
		return Snapshot{}, domain.ErrSessionNotActive
	}

	sess := c.rec.Session()
	snap := Snapshot{
		SessionID:   sess.ID,
		Status:      sess.Status.String(),
		Units:       sess.Units.String(),
		CurrentStep: c.rec.CurrentActiveIndex(),
	}
	snap.StepsDone, snap.StepsTotal = c.rec.CompletedCount()

	recent := make(map[string]bool)
	for _, id := range c.rec.RecentlyInserted() {
		recent[id] = true
	}

	for i, step := range c.rec.ActiveSteps() {
		snap.Steps = append(snap.Steps, StepSnapshot{
			ID:                step.ID,
			Index:             i,
			Title:             step.ShortText,
			Description:       RenderStep(step, sess.Units),
			Completed:         step.IsCompleted,
			Current:           i == snap.CurrentStep,
			RecentlyInserted:  recent[step.ID],
			HasPendingText:    c.rec.HasPendingText(step.ID),
			SubstitutionNotes: SubstitutionNotes(step),
			AgentNotes:        step.AgentNotes,
		})
	}
	c.mu.Unlock()

	for _, t := range c.timers.List() {
		snap.Timers = append(snap.Timers, TimerView{
			ID:               t.ID,
			Label:            t.Label,
			Emoji:            t.Emoji,
			State:            t.State.String(),
			RemainingSeconds: t.Remaining(),
			TotalSeconds:     t.TotalSeconds,
		})
	}
	return snap, nil
}
