package realtime

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

func testSource() *WebSocketSource {
	return NewWebSocketSource("ws://localhost:0", logger.New(logger.LevelOff, io.Discard))
}

func TestDecodeUpdateEvent(t *testing.T) {
	s := testSource()
	ev, ok := s.decode([]byte(`{
		"type": "update",
		"step": {
			"id": "st-1",
			"session_id": "sess-1",
			"order_index": 2,
			"short_text": "Sear the protein",
			"detailed_description": "Sear the tofu on both sides."
		}
	}`))
	require.True(t, ok)
	assert.Equal(t, domain.ChangeUpdate, ev.Type)
	assert.Equal(t, "st-1", ev.StepID)
	require.NotNil(t, ev.New)
	assert.Equal(t, 2, ev.New.OrderIndex)
	assert.Equal(t, "Sear the tofu on both sides.", ev.New.DetailedDescription)
	assert.False(t, ev.ReceivedAt.IsZero())
}

func TestDecodeDeleteNeedsOnlyStepID(t *testing.T) {
	s := testSource()
	ev, ok := s.decode([]byte(`{"type": "delete", "step_id": "st-9"}`))
	require.True(t, ok)
	assert.Equal(t, domain.ChangeDelete, ev.Type)
	assert.Equal(t, "st-9", ev.StepID)
	assert.Nil(t, ev.New)
}

func TestDecodeDropsNoise(t *testing.T) {
	s := testSource()

	_, ok := s.decode([]byte(`{"type": "ping"}`))
	assert.False(t, ok)

	_, ok = s.decode([]byte(`{"type": "rebalance"}`))
	assert.False(t, ok, "unknown types are dropped")

	_, ok = s.decode([]byte(`{not json`))
	assert.False(t, ok, "malformed payloads are dropped")

	_, ok = s.decode([]byte(`{"type": "insert"}`))
	assert.False(t, ok, "events without a step id are dropped")
}

func TestMemorySourceDeliversInOrder(t *testing.T) {
	src := NewMemorySource()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := src.Subscribe(ctx, "sess-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		src.Emit("sess-1", domain.ChangeEvent{Type: domain.ChangeUpdate, StepID: string(rune('a' + i))})
	}
	src.Emit("other", domain.ChangeEvent{Type: domain.ChangeDelete, StepID: "x"})

	for _, want := range []string{"a", "b", "c"} {
		select {
		case ev := <-ch:
			assert.Equal(t, want, ev.StepID)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %q", want)
		}
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected cross-session event %v", ev)
	default:
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, 10*time.Millisecond, "channel closes on cancel")
}
