package domain

import "time"

// Session represents one cooking run of a recipe (or several merged
// recipes). Steps live outside the struct, owned by the reconciler.
type Session struct {
	ID               string
	UserID           string
	RecipeIDs        []string
	Status           SessionStatus
	PaxMultiplier    float64
	CurrentStepIndex int // raw index into the full step list
	Units            UnitSystem
	StartedAt        time.Time
	CompletedAt      time.Time
	CreatedAt        time.Time
}

// SessionStatus tracks the lifecycle of a cooking session.
type SessionStatus int

const (
	SessionSetup SessionStatus = iota
	SessionInProgress
	SessionPaused
	SessionCompleted
	SessionAbandoned
)

// String returns a human-readable session status.
func (s SessionStatus) String() string {
	switch s {
	case SessionSetup:
		return "setup"
	case SessionInProgress:
		return "in_progress"
	case SessionPaused:
		return "paused"
	case SessionCompleted:
		return "completed"
	case SessionAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// UnitSystem selects how ingredient amounts are presented.
type UnitSystem int

const (
	UnitsMetric UnitSystem = iota
	UnitsImperial
)

// String returns a human-readable unit system name.
func (u UnitSystem) String() string {
	switch u {
	case UnitsMetric:
		return "metric"
	case UnitsImperial:
		return "imperial"
	default:
		return "unknown"
	}
}

// SessionStep is a mutable step record within a session. Copied from a
// RecipeStep at session start, then edited for the session's lifetime.
// Steps are never physically removed, only marked skipped or completed.
//
// OrderIndex defines the canonical sequence and is not guaranteed
// contiguous after edits; ordering must always be re-derived by sorting
// on it, never by array position.
type SessionStep struct {
	ID                  string
	SessionID           string
	SourceStepID        string // empty if agent-created mid-session
	OrderIndex          int
	ShortText           string
	DetailedDescription string
	MediaURL            string
	IsCompleted         bool
	CompletedAt         time.Time
	IsSkipped           bool
	AgentNotes          string
	Ingredients         []StepIngredient
	Equipment           []StepEquipment
}

// Title returns the step's short text.
func (s *SessionStep) Title() string { return s.ShortText }

// Description returns the step's current detailed text.
func (s *SessionStep) Description() string { return s.DetailedDescription }

// Done reports whether the step has been completed.
func (s *SessionStep) Done() bool { return s.IsCompleted }

// Ingredient returns the step ingredient with the given placeholder
// key, or nil.
func (s *SessionStep) Ingredient(placeholderKey string) *StepIngredient {
	for i := range s.Ingredients {
		if s.Ingredients[i].PlaceholderKey == placeholderKey {
			return &s.Ingredients[i]
		}
	}
	return nil
}

// Modification records one agent-driven change to a session, mirroring
// what the backend keeps for audit ("used butter instead of ghee").
type Modification struct {
	ID        string
	SessionID string
	StepIndex int // -1 for session-level changes
	Type      string
	Details   map[string]any
	Changes   map[string]any
	CreatedAt time.Time
}

// Modification types recorded by the engine.
const (
	ModSubstitute   = "substitute"
	ModAdjustAmount = "adjust_amount"
	ModSkip         = "skip"
	ModAddStep      = "add_step"
	ModUpdateStep   = "update_step"
	ModSwitchUnits  = "switch_units"
)
