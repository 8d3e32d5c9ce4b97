package cosmos

import "sync"

// Handoff passes stable copies of a world from the simulation goroutine to
// readers such as a renderer. The writer fills the back buffer without
// holding the lock and swaps it to the front; readers only ever see the
// front buffer, which is never mutated while they hold it.
type Handoff struct {
	mu    sync.RWMutex
	front *Cosmos
	back  *Cosmos
	step  uint64
	ok    bool
}

// Publish copies c into the back buffer and swaps buffers. It must only be
// called from one goroutine.
func (h *Handoff) Publish(c *Cosmos) {
	if h.back == nil {
		h.back = c.Clone()
	} else {
		h.back.CopyFrom(c)
	}

	h.mu.Lock()
	h.front, h.back = h.back, h.front
	h.step = h.front.Step()
	h.ok = true
	h.mu.Unlock()
}

// Read calls fn with the most recently published world. fn must not retain
// or mutate it. Read reports false when nothing was published yet.
func (h *Handoff) Read(fn func(*Cosmos)) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.ok {
		return false
	}
	fn(h.front)
	return true
}

// Step returns the step of the front buffer.
func (h *Handoff) Step() (uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.step, h.ok
}
