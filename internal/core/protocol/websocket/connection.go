package websocket

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/protocol"
)

var _ protocol.Conn = (*Conn)(nil)

// maxCloseReason is what fits into a close control frame next to the code.
const maxCloseReason = 123

// Conn is a protocol.Conn over a WebSocket. One goroutine reads frames
// into the inbox and another drains the send queue.
type Conn struct {
	id     string
	ws     *websocket.Conn
	config Config
	queue  *protocol.SendQueue
	inbox  *protocol.Inbox
	logger log.Log

	mu     sync.Mutex
	reason string
	local  atomic.Bool
	done   chan struct{}
}

func newConn(ws *websocket.Conn, inbox *protocol.Inbox, config Config, logger log.Log) *Conn {
	c := &Conn{
		id:     uuid.NewString(),
		ws:     ws,
		config: config,
		queue:  protocol.NewSendQueue(config.SendQueue),
		inbox:  inbox,
		done:   make(chan struct{}),
	}
	c.logger = logger.With(log.Client(c.id), log.String("remote_addr", ws.RemoteAddr().String()))
	ws.SetReadLimit(protocol.MaxFrameSize)
	go c.readLoop()
	go c.writeLoop()
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *Conn) Send(frame []byte) error {
	return c.queue.Push(frame)
}

func (c *Conn) Close(reason string) error {
	c.mu.Lock()
	c.reason = reason
	c.mu.Unlock()
	c.local.Store(true)
	c.queue.Shutdown()
	return nil
}

// Done is closed after the socket has been released.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) readLoop() {
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			c.queue.Shutdown()
			if !c.local.Load() {
				c.logger.Debug("websocket read ended", log.Error(err))
				c.inbox.Closed(c, err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		c.inbox.Deliver(c, data)
	}
}

func (c *Conn) write(frame []byte) error {
	if c.config.WriteTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *Conn) writeLoop() {
	defer close(c.done)
	defer func() { _ = c.ws.Close() }()

	for {
		select {
		case frame := <-c.queue.Frames():
			if err := c.write(frame); err != nil {
				c.logger.Debug("websocket write failed", log.Error(err))
				c.queue.Shutdown()
				return
			}
		case <-c.queue.Done():
			for _, frame := range c.queue.Flush() {
				if err := c.write(frame); err != nil {
					return
				}
			}
			c.mu.Lock()
			reason := c.reason
			c.mu.Unlock()
			if len(reason) > maxCloseReason {
				reason = reason[:maxCloseReason]
			}
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}
	}
}

// CloseReason extracts the text a peer put into its close frame.
func CloseReason(err error) (string, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Text, true
	}
	return "", false
}
