package websocket

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/protocol"
)

var _ protocol.Listener = (*Listener)(nil)

type Config struct {
	Path         string        `yaml:"path"`
	SendQueue    int           `yaml:"send_queue"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	BufferSize   int           `yaml:"buffer_size"`
}

func DefaultConfig() Config {
	return Config{
		Path:         "/ws",
		SendQueue:    512,
		WriteTimeout: 5 * time.Second,
		BufferSize:   4096,
	}
}

// Listener upgrades HTTP requests to connections and hands them to Accept.
type Listener struct {
	config   Config
	inbox    *protocol.Inbox
	logger   log.Log
	upgrader websocket.Upgrader

	accepted chan *Conn
	closing  chan struct{}
	once     sync.Once

	ln     net.Listener
	server *http.Server
}

// NewListener builds a listener that is not bound to an address. Mount
// Handler on any HTTP server to use it.
func NewListener(inbox *protocol.Inbox, config Config, logger log.Log) *Listener {
	return &Listener{
		config: config,
		inbox:  inbox,
		logger: logger.With(log.String("transport", "websocket")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.BufferSize,
			WriteBufferSize: config.BufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		accepted: make(chan *Conn, 16),
		closing:  make(chan struct{}),
	}
}

// Listen binds addr and serves the upgrade endpoint on config.Path.
func Listen(addr string, inbox *protocol.Inbox, config Config, logger log.Log) (*Listener, error) {
	l := NewListener(inbox, config, logger)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}
	mux := http.NewServeMux()
	mux.Handle(config.Path, l)
	l.ln = ln
	l.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("websocket server stopped", log.Error(err))
		}
	}()
	l.logger.Info("websocket listener started", log.String("addr", ln.Addr().String()))
	return l, nil
}

func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Debug("websocket upgrade failed", log.Error(err))
		return
	}
	c := newConn(ws, l.inbox, l.config, l.logger)
	select {
	case l.accepted <- c:
	case <-l.closing:
		_ = c.Close("server is shutting down")
	case <-r.Context().Done():
		_ = c.Close("")
	}
}

func (l *Listener) Accept(ctx context.Context) (protocol.Conn, error) {
	select {
	case c := <-l.accepted:
		return c, nil
	case <-l.closing:
		return nil, protocol.ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Addr is nil for a listener created by NewListener.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.closing)
		if l.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err = l.server.Shutdown(ctx)
		}
	})
	return err
}

// Dial connects to a websocket listener at url.
func Dial(ctx context.Context, url string, inbox *protocol.Inbox, config Config, logger log.Log) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return newConn(ws, inbox, config, logger.With(log.String("transport", "websocket"))), nil
}
