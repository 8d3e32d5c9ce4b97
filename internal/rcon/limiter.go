package rcon

import (
	"sync"

	"golang.org/x/time/rate"
)

// Gate limits rcon attempts per client.
type Gate struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

// NewGate allows burst attempts at once and refills at r per second.
func NewGate(r rate.Limit, burst int) *Gate {
	return &Gate{limiters: make(map[string]*rate.Limiter), every: r, burst: burst}
}

func DefaultGate() *Gate { return NewGate(1, 3) }

func (g *Gate) Allow(client string) bool {
	g.mu.Lock()
	l, ok := g.limiters[client]
	if !ok {
		l = rate.NewLimiter(g.every, g.burst)
		g.limiters[client] = l
	}
	g.mu.Unlock()
	return l.Allow()
}

// Forget drops the limiter of a disconnected client.
func (g *Gate) Forget(client string) {
	g.mu.Lock()
	delete(g.limiters, client)
	g.mu.Unlock()
}
