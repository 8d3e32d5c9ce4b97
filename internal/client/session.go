// Package client is the receiving end of a lockstep session. It keeps a
// replica of the server's world that only moves forward on step packets and
// predicts the local player's input on top of it.
package client

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/core/cosmos"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/jitter"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/physics"
	"github.com/zeusync/lockstep/internal/core/protocol"
	"github.com/zeusync/lockstep/internal/rcon"
)

var (
	ErrDesync       = errors.New("client: state hash mismatch")
	ErrKicked       = errors.New("client: kicked")
	ErrClosed       = errors.New("client: connection closed")
	ErrNotWelcomed  = errors.New("client: not welcomed yet")
	ErrBadSnapshot  = errors.New("client: snapshot does not match its step")
	ErrStepRejected = errors.New("client: world rejected a step")
)

// Update summarizes what one Poll applied.
type Update struct {
	Steps    int
	Messages cosmos.Messages
	Chat     []protocol.ServerChat
	Rcon     []rcon.Response
	// Resynced is set when a snapshot replaced the world.
	Resynced bool
}

type Session struct {
	conn       protocol.Conn
	inbox      *protocol.Inbox
	logger     log.Log
	integrator physics.Integrator

	player         entropy.PlayerID
	tickrate       uint32
	stateHashEvery uint32

	world       *cosmos.Cosmos
	predictions []entropy.LocalEntropy
	awaitResync bool

	kicked     bool
	kickReason string
	closed     bool

	events []protocol.Event
}

// NewSession wraps a connection whose frames arrive in inbox. A nil
// integrator uses the world default.
func NewSession(conn protocol.Conn, inbox *protocol.Inbox, logger log.Log, integrator physics.Integrator) *Session {
	if logger == nil {
		logger = log.Nop()
	}
	return &Session{
		conn:       conn,
		inbox:      inbox,
		logger:     logger.With(log.String("component", "client")),
		integrator: integrator,
	}
}

func (s *Session) send(m protocol.Message) error {
	if s.closed {
		return ErrClosed
	}
	return s.conn.Send(protocol.Encode(m))
}

// Hello introduces the player. It must be the first message.
func (s *Session) Hello(nickname string, faction entropy.Faction, settings jitter.Settings, token string) error {
	return s.send(&protocol.ClientHello{
		Version:  protocol.Version,
		Nickname: nickname,
		Faction:  faction,
		Jitter:   settings,
		Token:    token,
	})
}

// Predict sends one step of local input and keeps it until the server
// reports it consumed.
func (s *Session) Predict(e entropy.LocalEntropy) error {
	if s.world == nil {
		return ErrNotWelcomed
	}
	if err := s.send(&protocol.ClientEntropy{Entropy: e}); err != nil {
		return err
	}
	s.predictions = append(s.predictions, e.Clone())
	return nil
}

// Rcon sends an admin request. Answers show up in Update.Rcon.
func (s *Session) Rcon(req rcon.Request) error {
	data, err := rcon.EncodeRequest(req)
	if err != nil {
		return errors.Wrap(err, "encode rcon request")
	}
	return s.send(&protocol.ClientRcon{Payload: data})
}

func (s *Session) Player() entropy.PlayerID { return s.player }

func (s *Session) Tickrate() uint32 { return s.tickrate }

// World is the replica of the server's world. Callers must not mutate it.
func (s *Session) World() *cosmos.Cosmos { return s.world }

// Pending is the number of predictions the server has not consumed yet.
func (s *Session) Pending() int { return len(s.predictions) }

func (s *Session) Kicked() (string, bool) { return s.kickReason, s.kicked }

func (s *Session) Closed() bool { return s.closed }

func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close("")
}

// Predicted returns a copy of the replica with every pending prediction of
// the local player applied, one per step.
func (s *Session) Predicted() (*cosmos.Cosmos, error) {
	if s.world == nil {
		return nil, ErrNotWelcomed
	}
	out := s.world.Clone()
	for _, p := range s.predictions {
		var step entropy.StepEntropy
		step.Accept(s.player, p)
		if _, err := out.Advance(step); err != nil {
			return nil, errors.Wrap(err, "predict")
		}
	}
	return out, nil
}

// Poll applies everything that arrived since the last call. A state hash
// mismatch returns ErrDesync after asking the server for a snapshot; step
// packets are skipped until it arrives.
func (s *Session) Poll() (Update, error) {
	var up Update
	s.events = s.inbox.Drain(s.events[:0])
	defer clear(s.events)

	var firstErr error
	for _, e := range s.events {
		if e.Kind == protocol.EventClosed {
			s.closed = true
			if firstErr == nil && !s.kicked {
				firstErr = errors.Wrap(ErrClosed, errString(e.Err))
			}
			continue
		}
		msg, err := protocol.Decode(e.Frame)
		if err != nil {
			s.logger.Debug("dropping malformed frame", log.Error(err))
			continue
		}
		if err := s.handle(msg, &up); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return up, firstErr
}

func errString(err error) string {
	if err == nil {
		return "closed"
	}
	return err.Error()
}

func (s *Session) handle(msg protocol.Message, up *Update) error {
	switch m := msg.(type) {
	case *protocol.ServerWelcome:
		s.player = m.Player
		s.tickrate = m.Tickrate
		s.stateHashEvery = m.StateHashEvery
		s.logger = s.logger.With(log.Player(m.Player))
	case *protocol.ServerSnapshot:
		world, err := cosmos.LoadSnapshot(bytes.NewReader(m.Data), s.integrator)
		if err != nil {
			return errors.Wrap(err, "load snapshot")
		}
		if world.Step() != m.Step {
			return errors.Wrapf(ErrBadSnapshot, "snapshot says %d, world is at %d", m.Step, world.Step())
		}
		s.world = world
		s.awaitResync = false
		up.Resynced = true
	case *protocol.StepPacket:
		return s.applyStep(m, up)
	case *protocol.ServerKick:
		s.kicked = true
		s.kickReason = m.Reason
		s.logger.Info("kicked", log.String("reason", m.Reason))
		return errors.Wrap(ErrKicked, m.Reason)
	case *protocol.ServerChat:
		up.Chat = append(up.Chat, *m)
	case *protocol.ServerRcon:
		resp, err := rcon.DecodeResponse(m.Payload)
		if err != nil {
			return err
		}
		up.Rcon = append(up.Rcon, resp)
	}
	return nil
}

func (s *Session) applyStep(p *protocol.StepPacket, up *Update) error {
	s.dropConsumed(int(p.Consumed))
	if s.world == nil || s.awaitResync {
		return nil
	}
	if p.HasHash {
		if local := s.world.StateHash(); local != p.Hash {
			step := s.world.Step()
			s.logger.Error("state diverged", log.Step(step),
				log.Uint32("local_hash", local), log.Uint32("server_hash", p.Hash))
			s.awaitResync = true
			if err := s.send(&protocol.ClientResync{Step: step}); err != nil {
				s.logger.Warn("resync request not sent", log.Error(err))
			}
			return errors.Wrapf(ErrDesync, "step %d: local %08x, server %08x", step, local, p.Hash)
		}
	}
	if p.Reinference || p.Entropy.General.AddedPlayer.IsSet() {
		s.world.Reinfer()
	}
	msgs, err := s.world.Advance(p.Entropy)
	if err != nil {
		return errors.Wrap(ErrStepRejected, err.Error())
	}
	up.Steps++
	up.Messages = append(up.Messages, msgs...)
	return nil
}

func (s *Session) dropConsumed(n int) {
	n = min(n, len(s.predictions))
	if n == 0 {
		return
	}
	clear(s.predictions[:n])
	s.predictions = s.predictions[n:]
}
