package quic

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/protocol"
)

var _ protocol.Listener = (*Listener)(nil)

type Config struct {
	SendQueue     int           `yaml:"send_queue"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	KeepAlive     time.Duration `yaml:"keep_alive"`
	LingerTimeout time.Duration `yaml:"linger_timeout"`
	// StreamTimeout bounds the wait for a new connection's stream.
	StreamTimeout time.Duration `yaml:"stream_timeout"`
	TLS           *tls.Config   `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		SendQueue:     512,
		WriteTimeout:  5 * time.Second,
		IdleTimeout:   30 * time.Second,
		KeepAlive:     5 * time.Second,
		LingerTimeout: time.Second,
		StreamTimeout: 10 * time.Second,
	}
}

func (c Config) quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  c.IdleTimeout,
		KeepAlivePeriod: c.KeepAlive,
	}
}

type Listener struct {
	ln       *quic.Listener
	config   Config
	inbox    *protocol.Inbox
	logger   log.Log
	accepted chan *Conn
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

// Listen binds a UDP address. A nil config.TLS gets a self-signed
// certificate.
func Listen(addr string, inbox *protocol.Inbox, config Config, logger log.Log) (*Listener, error) {
	tlsConfig := config.TLS
	if tlsConfig == nil {
		var err error
		if tlsConfig, err = SelfSignedTLS(); err != nil {
			return nil, err
		}
	}
	ln, err := quic.ListenAddr(addr, tlsConfig, config.quicConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		ln:       ln,
		config:   config,
		inbox:    inbox,
		logger:   logger.With(log.String("transport", "quic")),
		accepted: make(chan *Conn, 16),
		ctx:      ctx,
		cancel:   cancel,
	}
	go l.acceptLoop()
	l.logger.Info("quic listener started", log.String("addr", ln.Addr().String()))
	return l, nil
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept(l.ctx)
		if err != nil {
			if l.ctx.Err() == nil {
				l.logger.Error("quic accept failed", log.Error(err))
			}
			return
		}
		go l.handshake(conn)
	}
}

func (l *Listener) handshake(conn *quic.Conn) {
	ctx, cancel := context.WithTimeout(l.ctx, l.config.StreamTimeout)
	defer cancel()
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		l.logger.Debug("no stream opened", log.String("remote_addr", conn.RemoteAddr().String()), log.Error(err))
		_ = conn.CloseWithError(1, "no stream")
		return
	}
	c := newConn(conn, stream, l.inbox, l.config, l.logger)
	select {
	case l.accepted <- c:
	case <-l.ctx.Done():
		_ = c.Close("server is shutting down")
	}
}

func (l *Listener) Accept(ctx context.Context) (protocol.Conn, error) {
	select {
	case c := <-l.accepted:
		return c, nil
	case <-l.ctx.Done():
		return nil, protocol.ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		l.cancel()
		err = l.ln.Close()
	})
	return err
}
