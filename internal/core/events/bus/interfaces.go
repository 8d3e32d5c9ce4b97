package bus

import (
	"time"

	"github.com/zeusync/lockstep/internal/core/cosmos"
)

// EventBus fans out the messages a step produced to read-only consumers
// such as chat relays, logs and statistics.
//
// Delivery is synchronous in the publishing goroutine and follows
// subscription order, so handlers must be quick. Handler errors are joined
// and returned from Publish; they never affect the simulation.
type EventBus interface {
	// Publish delivers every event in order.
	Publish(events ...Event) error
	// Subscribe registers handler for one message kind. AllKinds matches
	// every message.
	Subscribe(kind string, handler EventHandler) Subscription
	// Unsubscribe cancels sub. A nil sub is ignored.
	Unsubscribe(sub Subscription)

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	// GetMetrics is only updated while at least one observer is registered.
	GetMetrics() EventBusMetrics
}

// AllKinds subscribes to every message kind.
const AllKinds = "*"

// Event is one message emitted while advancing to Step.
type Event struct {
	Step    uint64
	Time    time.Time
	Message cosmos.Message
}

func (e Event) Kind() string { return e.Message.Kind() }

// FromMessages wraps the messages of one step.
func FromMessages(step uint64, at time.Time, msgs cosmos.Messages) []Event {
	out := make([]Event, len(msgs))
	for i, m := range msgs {
		out[i] = Event{Step: step, Time: at, Message: m}
	}
	return out
}

type EventHandler func(event Event) error

// Subscription is a registered handler.
type Subscription interface {
	ID() string
	Kind() string
	IsActive() bool
	// Cancel is safe to call more than once.
	Cancel()
}

// EventBusObserver is told about every delivery. Observers should return quickly.
type EventBusObserver interface {
	OnPublish(kind string, event Event)
	OnDelivered(kind string, handlers int, err error, durationMicros int64)
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
}
