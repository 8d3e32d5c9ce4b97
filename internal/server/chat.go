package server

import (
	"sync"

	"github.com/zeusync/lockstep/internal/core/protocol"
)

// ChatHistory keeps the most recent server chat lines for the status page.
type ChatHistory struct {
	mu    sync.RWMutex
	lines []protocol.ServerChat
	limit int
}

func NewChatHistory(limit int) *ChatHistory {
	return &ChatHistory{limit: max(limit, 1)}
}

func (h *ChatHistory) Add(line protocol.ServerChat) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.lines) == h.limit {
		copy(h.lines, h.lines[1:])
		h.lines = h.lines[:len(h.lines)-1]
	}
	h.lines = append(h.lines, line)
}

// Get returns the lines oldest first.
func (h *ChatHistory) Get() []protocol.ServerChat {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]protocol.ServerChat(nil), h.lines...)
}
