// Package realtime delivers remote step-change events to the engine.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

var _ domain.ChangeSource = (*WebSocketSource)(nil)

// WebSocketSource subscribes to a realtime endpoint and forwards step
// change events in arrival order. The connection is re-dialed with
// backoff when it drops; events that arrive while disconnected are
// lost, the authoritative state lives server-side.
type WebSocketSource struct {
	url string
	log *logger.Logger

	dialTimeout time.Duration
	maxBackoff  time.Duration
}

// NewWebSocketSource creates a source for the given endpoint URL.
func NewWebSocketSource(url string, log *logger.Logger) *WebSocketSource {
	return &WebSocketSource{
		url:         url,
		log:         log,
		dialTimeout: 10 * time.Second,
		maxBackoff:  30 * time.Second,
	}
}

// wireEvent is the wire format of one change notification. Step fields
// use the backend column names.
type wireEvent struct {
	Type   string    `json:"type"`
	StepID string    `json:"step_id,omitempty"`
	Step   *wireStep `json:"step,omitempty"`
}

type wireStep struct {
	ID                  string `json:"id"`
	SessionID           string `json:"session_id"`
	OrderIndex          int    `json:"order_index"`
	ShortText           string `json:"short_text"`
	DetailedDescription string `json:"detailed_description"`
	MediaURL            string `json:"media_url,omitempty"`
	IsCompleted         bool   `json:"is_completed"`
	IsSkipped           bool   `json:"is_skipped"`
	AgentNotes          string `json:"agent_notes,omitempty"`
}

// subscribeMsg is sent once per connection to select the session feed.
type subscribeMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// Subscribe dials the endpoint and returns an ordered event channel.
// The channel is closed when ctx is cancelled. Reconnects happen
// transparently inside the read loop.
func (s *WebSocketSource) Subscribe(ctx context.Context, sessionID string) (<-chan domain.ChangeEvent, error) {
	// First dial is synchronous so a bad URL fails fast.
	conn, err := s.dial(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("realtime subscribe: %w", err)
	}

	events := make(chan domain.ChangeEvent, 16)
	go s.readLoop(ctx, sessionID, conn, events)
	return events, nil
}

func (s *WebSocketSource) dial(ctx context.Context, sessionID string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	if err != nil {
		return nil, err
	}

	sub, err := json.Marshal(subscribeMsg{Type: "subscribe", SessionID: sessionID})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe encode failed")
		return nil, err
	}
	if err := conn.Write(ctx, websocket.MessageText, sub); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return nil, err
	}
	s.log.Info("realtime: subscribed to session %s", sessionID)
	return conn, nil
}

func (s *WebSocketSource) readLoop(ctx context.Context, sessionID string, conn *websocket.Conn, events chan<- domain.ChangeEvent) {
	defer close(events)
	defer func() {
		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "subscription ended")
		}
	}()

	backoff := time.Second
	for {
		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			var err error
			conn, err = s.dial(ctx, sessionID)
			if err != nil {
				s.log.Warn("realtime: reconnect failed: %v", err)
				backoff = min(backoff*2, s.maxBackoff)
				continue
			}
			backoff = time.Second
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if websocket.CloseStatus(err) != -1 {
				s.log.Warn("realtime: connection closed, reconnecting")
			} else {
				s.log.Warn("realtime: read error: %v", err)
			}
			conn.Close(websocket.StatusNormalClosure, "read failed")
			conn = nil
			continue
		}

		ev, ok := s.decode(data)
		if !ok {
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// decode maps a wire message to a ChangeEvent. Malformed or unknown
// messages are logged and dropped, they never tear down the feed.
func (s *WebSocketSource) decode(data []byte) (domain.ChangeEvent, bool) {
	var we wireEvent
	if err := json.Unmarshal(data, &we); err != nil {
		s.log.Warn("realtime: malformed event: %v", err)
		return domain.ChangeEvent{}, false
	}

	ev := domain.ChangeEvent{ReceivedAt: time.Now()}
	switch we.Type {
	case "insert":
		ev.Type = domain.ChangeInsert
	case "update":
		ev.Type = domain.ChangeUpdate
	case "delete":
		ev.Type = domain.ChangeDelete
	case "ping", "subscribed":
		return domain.ChangeEvent{}, false
	default:
		s.log.Warn("realtime: unknown event type %q", we.Type)
		return domain.ChangeEvent{}, false
	}

	ev.StepID = we.StepID
	if we.Step != nil {
		ev.New = &domain.SessionStep{
			ID:                  we.Step.ID,
			SessionID:           we.Step.SessionID,
			OrderIndex:          we.Step.OrderIndex,
			ShortText:           we.Step.ShortText,
			DetailedDescription: we.Step.DetailedDescription,
			MediaURL:            we.Step.MediaURL,
			IsCompleted:         we.Step.IsCompleted,
			IsSkipped:           we.Step.IsSkipped,
			AgentNotes:          we.Step.AgentNotes,
		}
		if ev.StepID == "" {
			ev.StepID = we.Step.ID
		}
	}
	if ev.StepID == "" {
		s.log.Warn("realtime: %s event without step id", we.Type)
		return domain.ChangeEvent{}, false
	}
	return ev, true
}
