package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type subscription struct {
	id      string
	kind    string
	seq     uint64
	handler EventHandler
	active  atomic.Bool
	cancel  func()
}

func (s *subscription) ID() string     { return s.id }
func (s *subscription) Kind() string   { return s.kind }
func (s *subscription) IsActive() bool { return s.active.Load() }
func (s *subscription) Cancel() {
	if s.active.CompareAndSwap(true, false) && s.cancel != nil {
		s.cancel()
	}
}

type inMemoryBus struct {
	mu        sync.RWMutex
	seq       uint64
	handlers  map[string][]*subscription // kind -> subscriptions in creation order
	metrics   EventBusMetrics
	observers map[EventBusObserver]struct{}
}

func New() EventBus {
	return &inMemoryBus{
		handlers:  make(map[string][]*subscription),
		observers: make(map[EventBusObserver]struct{}),
	}
}

func (b *inMemoryBus) Subscribe(kind string, handler EventHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	s := &subscription{id: uuid.NewString(), kind: kind, seq: b.seq, handler: handler}
	s.active.Store(true)
	s.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[kind]
		for i, other := range subs {
			if other == s {
				b.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(b.handlers[kind]) == 0 {
			delete(b.handlers, kind)
		}
	}
	b.handlers[kind] = append(b.handlers[kind], s)
	return s
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) {
	if sub != nil {
		sub.Cancel()
	}
}

func (b *inMemoryBus) Publish(events ...Event) error {
	var all error
	for _, e := range events {
		if err := b.deliver(e); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

func (b *inMemoryBus) AddObserver(obs EventBusObserver) {
	b.mu.Lock()
	b.observers[obs] = struct{}{}
	b.mu.Unlock()
}

func (b *inMemoryBus) RemoveObserver(obs EventBusObserver) {
	b.mu.Lock()
	delete(b.observers, obs)
	b.mu.Unlock()
}

func (b *inMemoryBus) GetMetrics() EventBusMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

// matching merges the exact and wildcard subscribers by creation order.
func (b *inMemoryBus) matching(kind string) []*subscription {
	exact, wild := b.handlers[kind], b.handlers[AllKinds]
	out := make([]*subscription, 0, len(exact)+len(wild))
	i, j := 0, 0
	for i < len(exact) || j < len(wild) {
		if j == len(wild) || (i < len(exact) && exact[i].seq < wild[j].seq) {
			out = append(out, exact[i])
			i++
		} else {
			out = append(out, wild[j])
			j++
		}
	}
	return out
}

func (b *inMemoryBus) deliver(event Event) error {
	start := time.Now()
	kind := event.Kind()

	b.mu.RLock()
	subs := b.matching(kind)
	var observers []EventBusObserver
	for obs := range b.observers {
		observers = append(observers, obs)
	}
	b.mu.RUnlock()

	for _, obs := range observers {
		obs.OnPublish(kind, event)
	}

	var all error
	delivered := 0
	for _, s := range subs {
		if !s.IsActive() {
			continue
		}
		delivered++
		if err := s.handler(event); err != nil {
			all = errors.Join(all, err)
		}
	}

	if len(observers) > 0 {
		dur := time.Since(start).Microseconds()
		for _, obs := range observers {
			obs.OnDelivered(kind, delivered, all, dur)
		}
		b.mu.Lock()
		b.metrics.Published++
		b.metrics.DeliveredHandlers += uint64(delivered)
		if all != nil {
			b.metrics.Errors++
		}
		var active uint64
		for _, subs := range b.handlers {
			active += uint64(len(subs))
		}
		b.metrics.SubscribersActive = active
		b.mu.Unlock()
	}
	return all
}
