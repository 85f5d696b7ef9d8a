// Package storage provides session store implementations.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// Compile-time interface check.
var _ domain.SessionStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory session store. Safe for concurrent
// access. Used for tests and offline runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	steps    map[string]*domain.SessionStep // by step id
	mods     []*domain.Modification
	log      *logger.Logger
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		steps:    make(map[string]*domain.SessionStep),
		log:      log,
	}
}

// CreateSession persists a session and its initial steps.
func (s *MemoryStore) CreateSession(ctx context.Context, session *domain.Session, steps []*domain.SessionStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copySess := *session
	s.sessions[session.ID] = &copySess
	for _, st := range steps {
		copyStep := *st
		s.steps[st.ID] = &copyStep
	}
	s.log.Debug("created session %s with %d steps", session.ID, len(steps))
	return nil
}

// LoadSession returns a session and its steps, sorted by order index.
func (s *MemoryStore) LoadSession(ctx context.Context, id string) (*domain.Session, []*domain.SessionStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	copySess := *sess

	var steps []*domain.SessionStep
	for _, st := range s.steps {
		if st.SessionID == id {
			copyStep := *st
			steps = append(steps, &copyStep)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].OrderIndex < steps[j].OrderIndex })
	return &copySess, steps, nil
}

// UpdateCurrentStep persists the session's raw step index.
func (s *MemoryStore) UpdateCurrentStep(ctx context.Context, sessionID string, rawIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	sess.CurrentStepIndex = rawIndex
	return nil
}

// UpdateSessionStatus persists a status transition.
func (s *MemoryStore) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	sess.Status = status
	if status == domain.SessionCompleted {
		sess.CompletedAt = time.Now()
	}
	return nil
}

// MarkStepCompleted flags a step completed.
func (s *MemoryStore) MarkStepCompleted(ctx context.Context, stepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.steps[stepID]
	if !ok {
		return domain.ErrNotFound
	}
	st.IsCompleted = true
	st.CompletedAt = time.Now()
	return nil
}

// MarkStepSkipped flags a step skipped. The record stays.
func (s *MemoryStore) MarkStepSkipped(ctx context.Context, stepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.steps[stepID]
	if !ok {
		return domain.ErrNotFound
	}
	st.IsSkipped = true
	return nil
}

// UpdateStepText persists new step text.
func (s *MemoryStore) UpdateStepText(ctx context.Context, stepID, shortText, detailedDescription string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.steps[stepID]
	if !ok {
		return domain.ErrNotFound
	}
	if shortText != "" {
		st.ShortText = shortText
	}
	st.DetailedDescription = detailedDescription
	return nil
}

// SubstituteIngredient swaps a step ingredient by placeholder key.
func (s *MemoryStore) SubstituteIngredient(ctx context.Context, stepID, placeholderKey, newName string, newAmount float64, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.steps[stepID]
	if !ok {
		return domain.ErrNotFound
	}
	ing := st.Ingredient(placeholderKey)
	if ing == nil {
		return domain.ErrNotFound
	}
	ing.Name = newName
	ing.IsSubstitution = true
	ing.SubstitutionNote = note
	if newAmount > 0 {
		ing.Amount = newAmount
	}
	return nil
}

// AdjustIngredientAmount changes a step ingredient's amount.
func (s *MemoryStore) AdjustIngredientAmount(ctx context.Context, stepID, placeholderKey string, newAmount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.steps[stepID]
	if !ok {
		return domain.ErrNotFound
	}
	ing := st.Ingredient(placeholderKey)
	if ing == nil {
		return domain.ErrNotFound
	}
	ing.Amount = newAmount
	return nil
}

// InsertStep persists a newly created step.
func (s *MemoryStore) InsertStep(ctx context.Context, step *domain.SessionStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copyStep := *step
	s.steps[step.ID] = &copyStep
	return nil
}

// RecordModification appends to the modification log.
func (s *MemoryStore) RecordModification(ctx context.Context, mod *domain.Modification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := *mod
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.mods = append(s.mods, &m)
	return nil
}

// Modifications returns the recorded modification log, oldest first.
func (s *MemoryStore) Modifications(ctx context.Context, sessionID string) ([]*domain.Modification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Modification
	for _, m := range s.mods {
		if m.SessionID == sessionID {
			copyMod := *m
			out = append(out, &copyMod)
		}
	}
	return out, nil
}
