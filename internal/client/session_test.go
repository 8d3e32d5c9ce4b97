package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/lockstep/internal/core/cosmos"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/jitter"
	"github.com/zeusync/lockstep/internal/core/protocol"
)

// fakeServer plays the server side of a pipe by hand.
type fakeServer struct {
	t     *testing.T
	conn  *protocol.PipeConn
	inbox *protocol.Inbox
	world *cosmos.Cosmos
}

func newSession(t *testing.T) (*Session, *fakeServer) {
	t.Helper()
	serverInbox, clientInbox := protocol.NewInbox(), protocol.NewInbox()
	sc, cc := protocol.Pipe(serverInbox, clientInbox)
	world, err := cosmos.New(cosmos.DefaultConfig())
	require.NoError(t, err)
	return NewSession(cc, clientInbox, nil, nil), &fakeServer{t: t, conn: sc, inbox: serverInbox, world: world}
}

func (f *fakeServer) send(m protocol.Message) {
	require.NoError(f.t, f.conn.Send(protocol.Encode(m)))
}

// welcome adds player 1 the way the server does for a joining client.
func (f *fakeServer) welcome() {
	f.send(&protocol.ServerWelcome{Player: 1, Tickrate: 60, StateHashEvery: 1})
	data, err := f.world.CompressedSnapshot()
	require.NoError(f.t, err)
	f.send(&protocol.ServerSnapshot{Step: f.world.Step(), Data: data})

	var step entropy.StepEntropy
	step.General.AddedPlayer = entropy.AddPlayer{ID: 1, Name: "alice", Faction: entropy.FactionRed}
	f.step(step, 0, true)
}

func (f *fakeServer) step(step entropy.StepEntropy, consumed uint8, reinfer bool) {
	f.send(&protocol.StepPacket{
		Consumed:    consumed,
		HasHash:     true,
		Hash:        f.world.StateHash(),
		Reinference: reinfer,
		Entropy:     step,
	})
	if reinfer {
		f.world.Reinfer()
	}
	_, err := f.world.Advance(step)
	require.NoError(f.t, err)
}

func (f *fakeServer) received() []protocol.Message {
	var out []protocol.Message
	for _, e := range f.inbox.Drain(nil) {
		if e.Kind != protocol.EventFrame {
			continue
		}
		m, err := protocol.Decode(e.Frame)
		require.NoError(f.t, err)
		out = append(out, m)
	}
	return out
}

func move(x int32) entropy.LocalEntropy {
	var e entropy.LocalEntropy
	e.Motions[entropy.MotionCrosshair] = entropy.Motion{X: x}
	e.Intents = []entropy.Intent{entropy.Press(entropy.IntentMoveRight)}
	return e
}

func TestHelloIsSent(t *testing.T) {
	s, f := newSession(t)
	require.NoError(t, s.Hello("alice", entropy.FactionBlue, jitter.Settings{BufferAtLeastSteps: 3}, "tok"))

	msgs := f.received()
	require.Len(t, msgs, 1)
	hello, ok := msgs[0].(*protocol.ClientHello)
	require.True(t, ok)
	assert.Equal(t, protocol.Version, hello.Version)
	assert.Equal(t, "alice", hello.Nickname)
	assert.Equal(t, uint32(3), hello.Jitter.BufferAtLeastSteps)
	assert.Equal(t, "tok", hello.Token)
}

func TestPredictNeedsWelcome(t *testing.T) {
	s, _ := newSession(t)
	assert.ErrorIs(t, s.Predict(move(1)), ErrNotWelcomed)
	_, err := s.Predicted()
	assert.ErrorIs(t, err, ErrNotWelcomed)
}

func TestFollowsStepPackets(t *testing.T) {
	s, f := newSession(t)
	f.welcome()

	up, err := s.Poll()
	require.NoError(t, err)
	assert.True(t, up.Resynced)
	assert.Equal(t, 1, up.Steps)
	assert.Equal(t, entropy.PlayerID(1), s.Player())
	assert.Equal(t, uint32(60), s.Tickrate())
	assert.True(t, s.World().Equal(f.world))
}

func TestPredictionsDroppedWhenConsumed(t *testing.T) {
	s, f := newSession(t)
	f.welcome()
	_, err := s.Poll()
	require.NoError(t, err)

	for i := range 3 {
		require.NoError(t, s.Predict(move(int32(i+1))))
	}
	assert.Equal(t, 3, s.Pending())
	sent := f.received()
	require.Len(t, sent, 3)

	var step entropy.StepEntropy
	step.Accept(1, entropy.Squash(move(1), move(2)))
	f.step(step, 2, false)

	_, err = s.Poll()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Pending())
	assert.True(t, s.World().Equal(f.world))
}

func TestPredictedAppliesPendingInput(t *testing.T) {
	s, f := newSession(t)
	f.welcome()
	_, err := s.Poll()
	require.NoError(t, err)
	require.NoError(t, s.Predict(move(5)))
	require.NoError(t, s.Predict(move(5)))

	predicted, err := s.Predicted()
	require.NoError(t, err)
	assert.Equal(t, s.World().Step()+2, predicted.Step())

	expected := s.World().Clone()
	for range 2 {
		var step entropy.StepEntropy
		step.Accept(1, move(5))
		_, err := expected.Advance(step)
		require.NoError(t, err)
	}
	assert.Equal(t, expected.StateHash(), predicted.StateHash())
	assert.Equal(t, uint64(1), s.World().Step(), "replica is untouched")
}

func TestDesyncRequestsSnapshot(t *testing.T) {
	s, f := newSession(t)
	f.welcome()
	_, err := s.Poll()
	require.NoError(t, err)
	f.received()

	f.send(&protocol.StepPacket{HasHash: true, Hash: f.world.StateHash() + 1})
	f.step(entropy.StepEntropy{}, 0, false)

	_, err = s.Poll()
	require.ErrorIs(t, err, ErrDesync)
	msgs := f.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, &protocol.ClientResync{Step: 1}, msgs[0])
	assert.Equal(t, uint64(1), s.World().Step(), "steps are held until the snapshot")

	data, err := f.world.CompressedSnapshot()
	require.NoError(t, err)
	f.send(&protocol.ServerSnapshot{Step: f.world.Step(), Data: data})
	f.step(entropy.StepEntropy{}, 0, false)

	up, err := s.Poll()
	require.NoError(t, err)
	assert.True(t, up.Resynced)
	assert.Equal(t, 1, up.Steps)
	assert.True(t, s.World().Equal(f.world))
}

func TestSnapshotStepMustMatch(t *testing.T) {
	s, f := newSession(t)
	data, err := f.world.CompressedSnapshot()
	require.NoError(t, err)
	f.send(&protocol.ServerSnapshot{Step: 7, Data: data})

	_, err = s.Poll()
	assert.ErrorIs(t, err, ErrBadSnapshot)
}

func TestKickAndClose(t *testing.T) {
	s, f := newSession(t)
	f.send(&protocol.ServerKick{Reason: "bye"})
	require.NoError(t, f.conn.Close("bye"))

	_, err := s.Poll()
	require.ErrorIs(t, err, ErrKicked)
	reason, kicked := s.Kicked()
	assert.True(t, kicked)
	assert.Equal(t, "bye", reason)
	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Hello("a", entropy.FactionRed, jitter.Settings{}, ""), ErrClosed)
}

func TestChatAndMalformedFrames(t *testing.T) {
	s, f := newSession(t)
	require.NoError(t, f.conn.Send([]byte{0xff}))
	f.send(&protocol.ServerChat{Kind: protocol.ChatServerNotice, Text: "hi"})

	up, err := s.Poll()
	require.NoError(t, err)
	require.Len(t, up.Chat, 1)
	assert.Equal(t, "hi", up.Chat[0].Text)
}
