package server

import (
	"context"
	"strings"
	"time"

	"github.com/zeusync/lockstep/internal/core/jitter"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/protocol"
	"github.com/zeusync/lockstep/internal/rcon"
)

func (s *Server) handleEvent(e protocol.Event, now time.Time) {
	c, ok := s.byConn[e.Conn.ID()]
	if !ok || c.gone {
		return
	}
	switch e.Kind {
	case protocol.EventClosed:
		s.logger.Info("client disconnected", log.Player(c.player), log.Error(e.Err))
		c.gone = true
		c.buffer.Clear()
		s.gate.Forget(c.conn.ID())
	case protocol.EventFrame:
		msg, err := protocol.Decode(e.Frame)
		if err != nil {
			s.logger.Debug("dropping malformed frame", log.Player(c.player), log.Error(err))
			return
		}
		c.lastReceived = now
		if c.kicked {
			return
		}
		s.handleMessage(c, msg, now)
	}
}

func (s *Server) handleMessage(c *client, msg protocol.Message, now time.Time) {
	switch m := msg.(type) {
	case *protocol.ClientHello:
		s.handleHello(c, m, now)
	case *protocol.ClientEntropy:
		if c.state < stateReceivingInitialSnapshot {
			return
		}
		c.buffer.Push(m.Entropy)
	case *protocol.ClientResync:
		if c.state >= stateReceivingInitialSnapshot {
			s.logger.Info("client requested resync", log.Player(c.player), log.Uint64("client_step", m.Step), log.Step(s.world.Step()))
			c.resync = true
		}
	case *protocol.ClientRcon:
		s.handleRcon(c, m, now)
	default:
		s.kick(c, ReasonUnexpected, now)
	}
}

func (s *Server) handleHello(c *client, m *protocol.ClientHello, now time.Time) {
	if c.state != statePendingWelcome {
		s.kick(c, ReasonUnexpected, now)
		return
	}
	if m.Version != protocol.Version {
		s.kick(c, ReasonVersion, now)
		return
	}
	nickname := strings.TrimSpace(m.Nickname)
	if nickname == "" {
		s.kick(c, ReasonNickname, now)
		return
	}
	if len(nickname) > maxNickname {
		nickname = nickname[:maxNickname]
	}
	c.nickname = nickname
	c.faction = m.Faction
	c.buffer.Settings = s.clampJitter(m.Jitter)
	c.state = stateWelcomed

	c.send(&protocol.ServerWelcome{
		Player:         c.player,
		Tickrate:       s.vars.Tickrate,
		StateHashEvery: s.vars.SendStateHashEvery,
	})

	if s.auth == nil {
		c.verified = true
		return
	}
	token := m.Token
	s.jobs.Go(c.conn.ID(), func(ctx context.Context) (any, error) {
		return nil, s.auth.Verify(ctx, nickname, token)
	})
}

// clampJitter applies the server's limits to what a client asked for. A
// zero request takes the server defaults.
func (s *Server) clampJitter(req jitter.Settings) jitter.Settings {
	def := s.vars.Jitter
	if req == (jitter.Settings{}) {
		return def
	}
	out := req
	out.BufferAtLeastSteps = min(out.BufferAtLeastSteps, s.vars.MaxBufferedClientCommands)
	if def.MaxCommandsToSquashAtOnce > 0 {
		out.MaxCommandsToSquashAtOnce = min(out.MaxCommandsToSquashAtOnce, def.MaxCommandsToSquashAtOnce)
	}
	return out
}

func (s *Server) handleRcon(c *client, m *protocol.ClientRcon, now time.Time) {
	reply := func(resp rcon.Response) {
		data, err := rcon.EncodeResponse(resp)
		if err != nil {
			s.logger.Error("encode rcon response", log.Error(err))
			return
		}
		c.send(&protocol.ServerRcon{Payload: data})
	}

	if !s.gate.Allow(c.conn.ID()) {
		reply(rcon.Response{Error: rcon.ErrRateLimited.Error()})
		return
	}
	req, err := rcon.DecodeRequest(m.Payload)
	if err != nil {
		reply(rcon.Response{Error: err.Error()})
		return
	}
	level := s.policy.Authorize(req.Password, c.conn.RemoteAddr())
	action, err := req.Resolve(level)
	if err != nil {
		s.logger.Info("rcon request refused", log.Player(c.player), log.String("command", string(req.Command)),
			log.String("level", level.String()), log.Error(err))
		reply(rcon.Response{Error: err.Error()})
		return
	}
	s.logger.Info("performing rcon command", log.Player(c.player), log.String("command", string(req.Command)))

	resp := rcon.Response{OK: true}
	switch {
	case action.General != nil:
		s.rconCmds = append(s.rconCmds, action.General)
		s.notice(c.player, c.nickname+" "+action.Notice+".")
	case action.Info:
		info := s.runtimeInfo(now)
		resp.Info = &info
	case action.Shutdown:
		s.shutdown = true
	case action.Kick.IsSet():
		target, ok := s.clients[action.Kick]
		if !ok {
			reply(rcon.Response{Error: ErrUnknownClient.Error()})
			return
		}
		reason := action.KickReason
		if reason == "" {
			reason = ReasonAdmin
		}
		s.kick(target, reason, now)
	}
	reply(resp)
}
