package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/protocol"
)

func waitEvents(t *testing.T, in *protocol.Inbox, n int) []protocol.Event {
	t.Helper()
	var events []protocol.Event
	deadline := time.After(5 * time.Second)
	for len(events) < n {
		select {
		case <-in.Ready():
			events = in.Drain(events)
		case <-time.After(10 * time.Millisecond):
			events = in.Drain(events)
		case <-deadline:
			t.Fatalf("got %d of %d events", len(events), n)
		}
	}
	return events
}

func TestFramesAndCloseReason(t *testing.T) {
	serverInbox, clientInbox := protocol.NewInbox(), protocol.NewInbox()
	l := NewListener(serverInbox, DefaultConfig(), log.Nop())
	srv := httptest.NewServer(l)
	defer srv.Close()
	defer func() { _ = l.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(ctx, url, clientInbox, DefaultConfig(), log.Nop())
	require.NoError(t, err)

	conn, err := l.Accept(ctx)
	require.NoError(t, err)
	assert.True(t, protocol.IsLoopback(conn.RemoteAddr()))

	require.NoError(t, client.Send([]byte{1, 2}))
	got := waitEvents(t, serverInbox, 1)
	assert.Equal(t, protocol.EventFrame, got[0].Kind)
	assert.Equal(t, []byte{1, 2}, got[0].Frame)
	assert.Equal(t, conn.ID(), got[0].Conn.ID())

	require.NoError(t, conn.Send([]byte{3}))
	require.NoError(t, conn.Close("too slow"))
	assert.ErrorIs(t, conn.Send([]byte{4}), protocol.ErrConnectionClosed)

	events := waitEvents(t, clientInbox, 2)
	assert.Equal(t, []byte{3}, events[0].Frame)
	require.Equal(t, protocol.EventClosed, events[1].Kind)
	reason, ok := CloseReason(events[1].Err)
	require.True(t, ok)
	assert.Equal(t, "too slow", reason)
}

func TestAcceptAfterClose(t *testing.T) {
	l := NewListener(protocol.NewInbox(), DefaultConfig(), log.Nop())
	require.NoError(t, l.Close())
	_, err := l.Accept(context.Background())
	assert.ErrorIs(t, err, protocol.ErrConnectionClosed)
	assert.Nil(t, l.Addr())
}
