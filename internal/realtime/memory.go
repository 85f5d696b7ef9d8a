package realtime

import (
	"context"
	"sync"

	"github.com/mirepoix/souschef/internal/domain"
)

var _ domain.ChangeSource = (*MemorySource)(nil)

// MemorySource is an in-process change feed. Used in tests and when no
// realtime endpoint is configured: the engine still runs, it just never
// sees remote edits.
type MemorySource struct {
	mu   sync.Mutex
	subs map[string][]chan domain.ChangeEvent
}

// NewMemorySource creates an empty in-process change feed.
func NewMemorySource() *MemorySource {
	return &MemorySource{subs: make(map[string][]chan domain.ChangeEvent)}
}

// Subscribe returns an ordered event channel for the session. The
// channel is closed when ctx is cancelled.
func (s *MemorySource) Subscribe(ctx context.Context, sessionID string) (<-chan domain.ChangeEvent, error) {
	ch := make(chan domain.ChangeEvent, 16)

	s.mu.Lock()
	s.subs[sessionID] = append(s.subs[sessionID], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		chans := s.subs[sessionID]
		for i, c := range chans {
			if c == ch {
				s.subs[sessionID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// Emit delivers an event to every subscriber of the session, in call
// order.
func (s *MemorySource) Emit(sessionID string, ev domain.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[sessionID] {
		ch <- ev
	}
}
