package protocol

import (
	"net"
	"sync"

	"github.com/google/uuid"
)

type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }

// PipeConn is an in-process connection. Frames are handed to the peer's
// inbox synchronously.
type PipeConn struct {
	id     string
	mu     sync.Mutex
	closed bool
	reason string
	peer   *PipeConn
	inbox  *Inbox
}

// Pipe connects two inboxes. Frames sent on the first Conn arrive in
// remote, frames sent on the second arrive in local.
func Pipe(local, remote *Inbox) (*PipeConn, *PipeConn) {
	a := &PipeConn{id: uuid.NewString()}
	b := &PipeConn{id: uuid.NewString()}
	a.peer, b.peer = b, a
	a.inbox, b.inbox = local, remote
	return a, b
}

func (c *PipeConn) ID() string { return c.id }

func (c *PipeConn) RemoteAddr() net.Addr { return pipeAddr("pipe:" + c.peer.id) }

func (c *PipeConn) Send(frame []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrConnectionClosed
	}
	c.peer.inbox.Deliver(c.peer, append([]byte(nil), frame...))
	return nil
}

func (c *PipeConn) Close(reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.reason = reason
	c.mu.Unlock()

	c.peer.mu.Lock()
	peerOpen := !c.peer.closed
	c.peer.closed = true
	c.peer.reason = reason
	c.peer.mu.Unlock()
	if peerOpen {
		c.peer.inbox.Closed(c.peer, ErrConnectionClosed)
	}
	return nil
}

// IsClosed reports whether either end closed the pipe.
func (c *PipeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CloseReason is the reason given by whichever end closed first.
func (c *PipeConn) CloseReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}
