package quic

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/protocol"
)

var _ protocol.Conn = (*Conn)(nil)

// A length of closeMarker announces a close reason instead of a frame.
const closeMarker = math.MaxUint32

// CloseError is reported to the inbox when the peer closed with a reason.
type CloseError struct {
	Reason string
}

func (e *CloseError) Error() string { return "closed by peer: " + e.Reason }

// Conn carries length-prefixed frames over one bidirectional stream.
type Conn struct {
	id     string
	conn   *quic.Conn
	stream *quic.Stream
	config Config
	queue  *protocol.SendQueue
	inbox  *protocol.Inbox
	logger log.Log

	mu       sync.Mutex
	reason   string
	local    bool
	reported bool
	done     chan struct{}
}

func newConn(conn *quic.Conn, stream *quic.Stream, inbox *protocol.Inbox, config Config, logger log.Log) *Conn {
	c := &Conn{
		id:     uuid.NewString(),
		conn:   conn,
		stream: stream,
		config: config,
		queue:  protocol.NewSendQueue(config.SendQueue),
		inbox:  inbox,
		done:   make(chan struct{}),
	}
	c.logger = logger.With(log.Client(c.id), log.String("remote_addr", conn.RemoteAddr().String()))
	go c.readLoop()
	go c.writeLoop()
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *Conn) Send(frame []byte) error {
	if len(frame) > protocol.MaxFrameSize {
		return errors.Wrapf(protocol.ErrMessageTooLarge, "%d bytes", len(frame))
	}
	return c.queue.Push(frame)
}

func (c *Conn) Close(reason string) error {
	c.mu.Lock()
	if !c.local {
		c.local = true
		c.reason = reason
	}
	c.mu.Unlock()
	c.queue.Shutdown()
	return nil
}

// Done is closed after the connection has been released.
func (c *Conn) Done() <-chan struct{} { return c.done }

// report tells the inbox once that the peer is gone, unless we closed first.
func (c *Conn) report(err error) {
	c.mu.Lock()
	skip := c.local || c.reported
	c.reported = true
	c.mu.Unlock()
	if !skip {
		c.inbox.Closed(c, err)
	}
}

func (c *Conn) readLoop() {
	var header [4]byte
	for {
		if _, err := io.ReadFull(c.stream, header[:]); err != nil {
			c.queue.Shutdown()
			c.report(err)
			return
		}
		n := binary.LittleEndian.Uint32(header[:])
		if n == closeMarker {
			reason, err := c.readReason()
			if err != nil {
				reason = ""
			}
			c.report(&CloseError{Reason: reason})
			_ = c.conn.CloseWithError(0, "")
			c.queue.Shutdown()
			return
		}
		if n > protocol.MaxFrameSize {
			c.report(errors.Wrapf(protocol.ErrMessageTooLarge, "%d bytes", n))
			_ = c.conn.CloseWithError(1, "frame too large")
			c.queue.Shutdown()
			return
		}
		if n == 0 {
			continue
		}
		frame := make([]byte, n)
		if _, err := io.ReadFull(c.stream, frame); err != nil {
			c.queue.Shutdown()
			c.report(err)
			return
		}
		c.inbox.Deliver(c, frame)
	}
}

func (c *Conn) readReason() (string, error) {
	var size [2]byte
	if _, err := io.ReadFull(c.stream, size[:]); err != nil {
		return "", err
	}
	buf := make([]byte, binary.LittleEndian.Uint16(size[:]))
	if _, err := io.ReadFull(c.stream, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (c *Conn) write(frame []byte) error {
	if c.config.WriteTimeout > 0 {
		_ = c.stream.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	buf := make([]byte, 4, 4+len(frame))
	binary.LittleEndian.PutUint32(buf, uint32(len(frame)))
	_, err := c.stream.Write(append(buf, frame...))
	return err
}

func (c *Conn) writeLoop() {
	defer close(c.done)
	for {
		select {
		case frame := <-c.queue.Frames():
			if err := c.write(frame); err != nil {
				c.logger.Debug("quic write failed", log.Error(err))
				c.queue.Shutdown()
				_ = c.conn.CloseWithError(1, "write failed")
				return
			}
		case <-c.queue.Done():
			c.finish()
			return
		}
	}
}

// finish flushes pending frames, announces the close reason and waits a
// moment for the peer to hang up before closing the connection itself.
func (c *Conn) finish() {
	for _, frame := range c.queue.Flush() {
		if err := c.write(frame); err != nil {
			_ = c.conn.CloseWithError(1, "write failed")
			return
		}
	}
	c.mu.Lock()
	local, reason := c.local, c.reason
	c.mu.Unlock()
	if !local {
		_ = c.conn.CloseWithError(0, "")
		return
	}
	if len(reason) > math.MaxUint16 {
		reason = reason[:math.MaxUint16]
	}
	buf := binary.LittleEndian.AppendUint32(nil, closeMarker)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(reason)))
	buf = append(buf, reason...)
	if c.config.WriteTimeout > 0 {
		_ = c.stream.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if _, err := c.stream.Write(buf); err == nil {
		_ = c.stream.Close()
		select {
		case <-c.conn.Context().Done():
		case <-time.After(c.config.LingerTimeout):
		}
	}
	_ = c.conn.CloseWithError(0, reason)
}

// Dial connects to a quic listener at addr.
func Dial(ctx context.Context, addr string, inbox *protocol.Inbox, config Config, logger log.Log) (*Conn, error) {
	tlsConfig := config.TLS
	if tlsConfig == nil {
		tlsConfig = InsecureClientTLS()
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, config.quicConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(1, "open stream")
		return nil, errors.Wrap(err, "open stream")
	}
	c := newConn(conn, stream, inbox, config, logger.With(log.String("transport", "quic")))
	// the peer only sees the stream once something was written on it
	if err := c.Send(nil); err != nil {
		return nil, err
	}
	return c, nil
}
