package domain

import "context"

// RecipeSource provides recipe templates. Implementations can be
// in-memory, file-based, or API-backed.
type RecipeSource interface {
	List(ctx context.Context) ([]RecipeSummary, error)
	Get(ctx context.Context, id string) (*Recipe, error)
}

// SessionStore persists sessions and their steps. All calls made by the
// engine are fire-and-forget: in-memory state is applied first and a
// failed write is logged, never rolled back. Implementations can be
// in-memory, SQLite, or a managed backend.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session, steps []*SessionStep) error
	LoadSession(ctx context.Context, id string) (*Session, []*SessionStep, error)
	UpdateCurrentStep(ctx context.Context, sessionID string, rawIndex int) error
	UpdateSessionStatus(ctx context.Context, sessionID string, status SessionStatus) error
	MarkStepCompleted(ctx context.Context, stepID string) error
	MarkStepSkipped(ctx context.Context, stepID string) error
	UpdateStepText(ctx context.Context, stepID, shortText, detailedDescription string) error
	SubstituteIngredient(ctx context.Context, stepID, placeholderKey, newName string, newAmount float64, note string) error
	AdjustIngredientAmount(ctx context.Context, stepID, placeholderKey string, newAmount float64) error
	InsertStep(ctx context.Context, step *SessionStep) error
	RecordModification(ctx context.Context, mod *Modification) error
}

// ChangeSource delivers remote change events for a session, in arrival
// order. The engine only consumes these; it never produces them. The
// returned channel is closed when ctx is cancelled or the subscription
// ends.
type ChangeSource interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan ChangeEvent, error)
}

// Notifier delivers messages to the user. Implementations can write to
// the terminal, push notifications, or hand text to a speech layer.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyUrgent(ctx context.Context, message string) error
}
