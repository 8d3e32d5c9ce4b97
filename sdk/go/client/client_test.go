package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	session "github.com/zeusync/lockstep/internal/client"
	"github.com/zeusync/lockstep/internal/config"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/protocol/websocket"
	"github.com/zeusync/lockstep/internal/server"
)

func TestConfigValidation(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.Nickname = ""
	err := NewClient(cfg, log.Nop()).Connect(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultClientConfig()
	cfg.Transport = "carrier-pigeon"
	err = NewClient(cfg, log.Nop()).Connect(context.Background())
	assert.ErrorIs(t, err, ErrUnknownTransport)
}

func TestRunBeforeConnect(t *testing.T) {
	c := NewClient(DefaultClientConfig(), log.Nop())
	assert.ErrorIs(t, c.Run(context.Background(), nil, nil), ErrNotConnected)
}

func TestPlaysAgainstServer(t *testing.T) {
	srv, err := server.New(server.Deps{Vars: config.Default(), Logger: log.Nop()})
	require.NoError(t, err)
	ws := websocket.NewListener(srv.Inbox(), websocket.DefaultConfig(), log.Nop())
	hs := httptest.NewServer(ws)
	defer hs.Close()

	serverCtx, stopServer := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Run(serverCtx, ws) }()
	defer func() {
		stopServer()
		<-serverDone
	}()

	cfg := DefaultClientConfig()
	cfg.ServerAddr = "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
	cfg.Nickname = "bot"
	c := NewClient(cfg, log.Nop())
	require.NoError(t, c.Connect(context.Background()))
	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)

	var steps atomic.Int64
	var frame int32
	input := func() entropy.LocalEntropy {
		frame++
		var e entropy.LocalEntropy
		e.Motions[entropy.MotionCrosshair] = entropy.Motion{X: frame % 5}
		return e
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() {
		runDone <- c.Run(ctx, input, func(_ *session.Session, up session.Update) {
			if steps.Add(int64(up.Steps)) >= 60 {
				cancel()
			}
		})
	}()

	err = <-runDone
	require.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, steps.Load(), int64(60))
	_, ok := c.Session().World().Player(c.Session().Player())
	assert.True(t, ok)
	assert.False(t, c.IsConnected())
}
