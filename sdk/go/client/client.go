// Package client is the Go SDK for joining a lockstep server. It dials a
// transport, introduces the player and then turns sampled frame input into
// one prediction per fixed step.
package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	session "github.com/zeusync/lockstep/internal/client"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/jitter"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/protocol"
	"github.com/zeusync/lockstep/internal/core/protocol/quic"
	"github.com/zeusync/lockstep/internal/core/protocol/websocket"
	"github.com/zeusync/lockstep/internal/core/stepping"
)

type Transport string

const (
	TransportWebsocket Transport = "websocket"
	TransportQUIC      Transport = "quic"
)

// Config holds configuration for the client
type Config struct {
	// ServerAddr is a ws:// URL for websocket or host:port for QUIC.
	ServerAddr     string
	Transport      Transport
	ConnectTimeout time.Duration

	Nickname string
	Faction  entropy.Faction
	Token    string
	// Jitter is sent to the server, which may lower it. Zero takes the
	// server defaults.
	Jitter jitter.Settings

	// FrameInterval is how often input is sampled.
	FrameInterval time.Duration

	LogLevel log.Level
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerAddr:     "ws://localhost:8412/ws",
		Transport:      TransportWebsocket,
		ConnectTimeout: 10 * time.Second,
		Nickname:       "player",
		Faction:        entropy.FactionRed,
		FrameInterval:  time.Second / 144,
		LogLevel:       log.LevelInfo,
	}
}

func (c Config) validate() error {
	switch {
	case c.ServerAddr == "":
		return errors.Wrap(ErrInvalidConfig, "server address is empty")
	case c.Nickname == "":
		return errors.Wrap(ErrInvalidConfig, "nickname is empty")
	case c.FrameInterval <= 0:
		return errors.Wrap(ErrInvalidConfig, "frame interval must be positive")
	case !c.Faction.Valid():
		return errors.Wrapf(ErrInvalidConfig, "faction %d", c.Faction)
	}
	return nil
}

// InputFunc samples the local input of one frame.
type InputFunc func() entropy.LocalEntropy

// UpdateHandler sees every poll that applied steps or carried chat or rcon
// answers.
type UpdateHandler func(s *session.Session, up session.Update)

// Client represents a lockstep client connection
type Client struct {
	config Config
	logger log.Log
	inbox  *protocol.Inbox

	conn    protocol.Conn
	session *session.Session

	connected atomic.Bool
	closed    atomic.Bool
}

// NewClient creates a new client. A nil logger logs at config.LogLevel.
func NewClient(config Config, logger log.Log) *Client {
	if logger == nil {
		logger = log.New(config.LogLevel)
	}
	return &Client{
		config: config,
		logger: logger.With(log.String("component", "sdk")),
		inbox:  protocol.NewInbox(),
	}
}

// Connect dials the server and sends the hello.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if c.connected.Load() {
		return ErrAlreadyConnected
	}
	if err := c.config.validate(); err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	c.logger.Info("connecting to server",
		log.String("addr", c.config.ServerAddr),
		log.String("transport", string(c.config.Transport)))
	conn, err := c.dial(connectCtx)
	if err != nil {
		if errors.Is(connectCtx.Err(), context.DeadlineExceeded) {
			return errors.Wrap(ErrConnectionTimeout, err.Error())
		}
		return err
	}

	c.conn = conn
	c.session = session.NewSession(conn, c.inbox, c.logger, nil)
	if err := c.session.Hello(c.config.Nickname, c.config.Faction, c.config.Jitter, c.config.Token); err != nil {
		_ = conn.Close("")
		return errors.Wrap(err, "send hello")
	}
	c.connected.Store(true)
	return nil
}

func (c *Client) dial(ctx context.Context) (protocol.Conn, error) {
	switch c.config.Transport {
	case TransportWebsocket, "":
		return websocket.Dial(ctx, c.config.ServerAddr, c.inbox, websocket.DefaultConfig(), c.logger)
	case TransportQUIC:
		return quic.Dial(ctx, c.config.ServerAddr, c.inbox, quic.DefaultConfig(), c.logger)
	}
	return nil, errors.Wrapf(ErrUnknownTransport, "%q", c.config.Transport)
}

// Session is nil until Connect succeeded. It must only be used from the
// goroutine running Run.
func (c *Client) Session() *session.Session { return c.session }

func (c *Client) IsConnected() bool { return c.connected.Load() }

// Run samples input every frame and predicts one entropy per fixed step
// once the world arrived. It returns when ctx ends, the client is kicked or
// the connection is lost. Desyncs are logged; the session resyncs by itself.
func (c *Client) Run(ctx context.Context, input InputFunc, onUpdate UpdateHandler) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	ticker := time.NewTicker(c.config.FrameInterval)
	defer ticker.Stop()

	var unpacker *stepping.Unpacker
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			_ = c.Close()
			return ctx.Err()
		case <-c.inbox.Ready():
			if err := c.poll(onUpdate); err != nil {
				_ = c.Close()
				return err
			}
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if c.session.World() == nil {
				continue
			}
			if unpacker == nil {
				unpacker = stepping.NewUnpacker(c.session.Tickrate(), c.session.World().Step())
			}
			if input != nil {
				unpacker.Control(input())
			}
			for _, step := range unpacker.Unpack(elapsed) {
				if err := c.session.Predict(step.Entropy); err != nil {
					_ = c.Close()
					return err
				}
			}
		}
	}
}

func (c *Client) poll(onUpdate UpdateHandler) error {
	up, err := c.session.Poll()
	if onUpdate != nil && (up.Steps > 0 || len(up.Chat) > 0 || len(up.Rcon) > 0 || up.Resynced) {
		onUpdate(c.session, up)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrDesync):
		c.logger.Warn("desync, waiting for snapshot", log.Error(err))
		return nil
	default:
		return err
	}
}

// Close disconnects from the server.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.connected.Store(false)
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}
