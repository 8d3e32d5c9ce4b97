package protocol

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
)

// Conn is one peer connection. Send never blocks: frames are queued and a
// full queue drops the frame with ErrSendQueueFull.
type Conn interface {
	ID() string
	RemoteAddr() net.Addr
	Send(frame []byte) error
	// Close flushes queued frames, tells the peer why and releases the
	// connection. Repeated calls are no-ops.
	Close(reason string) error
}

type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() net.Addr
	Close() error
}

type EventKind uint8

const (
	EventFrame EventKind = iota
	EventClosed
)

// Event is something a transport observed on a connection.
type Event struct {
	Kind  EventKind
	Conn  Conn
	Frame []byte
	Err   error
}

// Inbox collects events from transport goroutines until the owner polls
// them, typically once per tick.
type Inbox struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func NewInbox() *Inbox {
	return &Inbox{notify: make(chan struct{}, 1)}
}

func (in *Inbox) push(e Event) {
	in.mu.Lock()
	in.events = append(in.events, e)
	in.mu.Unlock()
	select {
	case in.notify <- struct{}{}:
	default:
	}
}

// Deliver records a received frame.
func (in *Inbox) Deliver(c Conn, frame []byte) {
	in.push(Event{Kind: EventFrame, Conn: c, Frame: frame})
}

// Closed records that c went away.
func (in *Inbox) Closed(c Conn, err error) {
	in.push(Event{Kind: EventClosed, Conn: c, Err: err})
}

// Drain appends every pending event to dst in arrival order.
func (in *Inbox) Drain(dst []Event) []Event {
	in.mu.Lock()
	dst = append(dst, in.events...)
	clear(in.events)
	in.events = in.events[:0]
	in.mu.Unlock()
	return dst
}

// Ready is signalled after new events arrive.
func (in *Inbox) Ready() <-chan struct{} { return in.notify }

// SendQueue is the bounded outgoing queue transports put in front of a socket.
type SendQueue struct {
	frames chan []byte
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

func NewSendQueue(size int) *SendQueue {
	if size <= 0 {
		size = 256
	}
	return &SendQueue{frames: make(chan []byte, size), done: make(chan struct{})}
}

func (q *SendQueue) Push(frame []byte) error {
	if q.closed.Load() {
		return ErrConnectionClosed
	}
	select {
	case q.frames <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Frames is read by the transport's writer goroutine.
func (q *SendQueue) Frames() <-chan []byte { return q.frames }

// Done is closed once Shutdown was called.
func (q *SendQueue) Done() <-chan struct{} { return q.done }

// Shutdown rejects further frames. It reports whether this call closed the queue.
func (q *SendQueue) Shutdown() bool {
	first := false
	q.once.Do(func() {
		first = true
		q.closed.Store(true)
		close(q.done)
	})
	return first
}

// Flush returns frames still queued after Shutdown.
func (q *SendQueue) Flush() [][]byte {
	var out [][]byte
	for {
		select {
		case f := <-q.frames:
			out = append(out, f)
		default:
			return out
		}
	}
}

// IsLoopback reports whether addr is on this machine.
func IsLoopback(addr net.Addr) bool {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP.IsLoopback()
	case *net.UDPAddr:
		return a.IP.IsLoopback()
	case pipeAddr:
		return true
	}
	return false
}
