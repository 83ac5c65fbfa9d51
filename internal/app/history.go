package app

import (
	"sync"
	"time"

	"github.com/gamepal-app/gamepal/internal/types"
	"github.com/google/uuid"
)

// memoryHistory keeps at most this many messages.
const memoryHistoryCap = 500

// memoryHistory is the fallback conversation history used when the on-disk
// store cannot be opened.
type memoryHistory struct {
	mu   sync.Mutex
	msgs []types.ChatMessage
}

func (h *memoryHistory) Add(msg types.ChatMessage) (types.ChatMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	h.msgs = append(h.msgs, msg)
	if len(h.msgs) > memoryHistoryCap {
		h.msgs = append(h.msgs[:0], h.msgs[len(h.msgs)-memoryHistoryCap:]...)
	}
	return msg, nil
}

func (h *memoryHistory) Recent(gameID string, n int) ([]types.ChatMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []types.ChatMessage
	for _, m := range h.msgs {
		if m.GameID == gameID {
			out = append(out, m)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}
