package domain

import "time"

// ChangeType classifies a remote change event.
type ChangeType int

const (
	ChangeInsert ChangeType = iota
	ChangeUpdate
	ChangeDelete
)

// String returns a human-readable change type.
func (t ChangeType) String() string {
	switch t {
	case ChangeInsert:
		return "insert"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ChangeEvent is a remote notification of an insert/update/delete
// against the authoritative step list, delivered by the realtime
// source. Events are ephemeral: applied once, in arrival order, then
// discarded. Delete means soft delete: the step is marked skipped,
// never removed.
type ChangeEvent struct {
	Type       ChangeType
	StepID     string
	Old        *SessionStep
	New        *SessionStep
	ReceivedAt time.Time
}

// DescriptionChanged reports whether the event carries a new detailed
// description, which routes the update through the staged diff path
// instead of being applied to the visible text immediately.
func (e ChangeEvent) DescriptionChanged() bool {
	if e.Type != ChangeUpdate || e.New == nil {
		return false
	}
	if e.Old != nil {
		return e.Old.DetailedDescription != e.New.DetailedDescription
	}
	return e.New.DetailedDescription != ""
}
