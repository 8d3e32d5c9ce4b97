package server

import (
	"time"

	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/jitter"
	"github.com/zeusync/lockstep/internal/core/protocol"
)

type clientState uint8

const (
	statePendingWelcome clientState = iota
	stateWelcomed
	stateReceivingInitialSnapshot
	stateInGame
)

func (s clientState) String() string {
	switch s {
	case statePendingWelcome:
		return "pending_welcome"
	case stateWelcomed:
		return "welcomed"
	case stateReceivingInitialSnapshot:
		return "receiving_initial_snapshot"
	case stateInGame:
		return "in_game"
	}
	return "unknown"
}

const maxNickname = 32

type client struct {
	conn     protocol.Conn
	player   entropy.PlayerID
	state    clientState
	nickname string
	faction  entropy.Faction
	buffer   *jitter.Buffer

	// consumed counts entropies accepted since the last broadcast.
	consumed uint8

	connectedAt  time.Time
	lastReceived time.Time
	verified     bool

	kicked       bool
	kickedAt     time.Time
	kickReason   string
	kickNoLinger bool

	// gone means the connection was released; the client stays around until
	// its player has been removed from the mode.
	gone        bool
	addedToMode bool
	resync      bool
}

func newClient(conn protocol.Conn, id entropy.PlayerID, now time.Time) *client {
	return &client{
		conn:         conn,
		player:       id,
		connectedAt:  now,
		lastReceived: now,
		buffer:       jitter.NewBuffer(jitter.DefaultSettings()),
	}
}

// receivesSteps reports whether step packets should be sent to c.
func (c *client) receivesSteps() bool {
	return !c.gone && c.state >= stateReceivingInitialSnapshot
}

func (c *client) send(m protocol.Message) {
	if c.gone {
		return
	}
	_ = c.conn.Send(protocol.Encode(m))
}
