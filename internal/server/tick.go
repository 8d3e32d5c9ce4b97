package server

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/events/bus"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/protocol"
	"github.com/zeusync/lockstep/internal/core/storage/interfaces"
)

const autosaveJob = "autosave"

// tickState is what one tick collects before the step is broadcast.
type tickState struct {
	now            time.Time
	step           entropy.StepEntropy
	removedSomeone bool
	addedSomeone   bool
}

// Tick runs one server step at wall clock time now. It returns ErrShutdown
// once an administrator asked to stop, and a *TickError matching ErrTickFailed
// when the world could not be advanced.
func (s *Server) Tick(now time.Time) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	t := &tickState{now: now}

	s.acceptIncoming(now)
	s.events = s.inbox.Drain(s.events[:0])
	for _, e := range s.events {
		s.handleEvent(e, now)
	}
	clear(s.events)
	s.mergeJobResults()

	for _, id := range s.sortedIDs() {
		s.processClient(s.clients[id], t)
	}
	if len(s.rconCmds) > 0 {
		t.step.General.Special = s.rconCmds[0]
		s.rconCmds = s.rconCmds[1:]
	}

	reinfer := t.step.General.PopulationChanged() || s.reinferNext
	s.broadcast(t.step, reinfer)

	if reinfer {
		s.world.Reinfer()
		s.reinferNext = false
	}
	step := s.world.Step()
	msgs, err := s.world.Advance(t.step)
	if err != nil {
		s.logger.Error("step rolled back", log.Step(step), log.Error(err))
		return &TickError{Step: step, Err: err}
	}
	if len(msgs) > 0 {
		if err := s.bus.Publish(bus.FromMessages(step, now, msgs)...); err != nil {
			s.logger.Debug("message consumer failed", log.Step(step), log.Error(err))
		}
	}
	s.handoff.Publish(s.world)
	s.autosave()

	if s.shutdown {
		return ErrShutdown
	}
	return nil
}

func (s *Server) acceptIncoming(now time.Time) {
	s.mu.Lock()
	incoming := s.incoming
	s.incoming = nil
	s.mu.Unlock()

	for _, conn := range incoming {
		if len(s.clients) >= s.vars.MaxClients {
			s.logger.Info("rejecting connection", log.Client(conn.ID()), log.String("reason", ReasonFull))
			_ = conn.Close(ReasonFull)
			continue
		}
		id := s.nextID
		s.nextID++
		c := newClient(conn, id, now)
		s.clients[id] = c
		s.byConn[conn.ID()] = c
		s.logger.Debug("client connected", log.Player(id), log.Client(conn.ID()),
			log.String("remote_addr", conn.RemoteAddr().String()))
	}
}

func (s *Server) mergeJobResults() {
	for _, r := range s.jobs.Drain() {
		if r.Key == autosaveJob {
			if r.Err != nil {
				s.logger.Error("autosave failed", log.Error(r.Err))
			}
			continue
		}
		c, ok := s.byConn[r.Key]
		if !ok || c.gone {
			continue
		}
		if r.Err != nil {
			s.logger.Info("authentication failed", log.Player(c.player), log.Error(r.Err))
			continue
		}
		c.verified = true
	}
}

func (s *Server) processClient(c *client, t *tickState) {
	if !c.gone {
		s.checkKickConditions(c, t)
	}
	if c.gone {
		switch {
		case !c.addedToMode:
			s.forget(c)
		case !t.removedSomeone:
			t.step.General.RemovedPlayer = c.player
			t.removedSomeone = true
			s.forget(c)
		}
		return
	}

	if !t.addedSomeone && !c.addedToMode && !c.kicked && c.state >= stateWelcomed {
		t.step.General.AddedPlayer = entropy.AddPlayer{ID: c.player, Name: c.nickname, Faction: c.faction}
		t.addedSomeone = true
		c.addedToMode = true
		if c.state == stateWelcomed {
			s.logger.Info("adding player", log.Player(c.player), log.String("nickname", c.nickname), log.Step(s.world.Step()))
			s.sendSnapshot(c)
			c.state = stateReceivingInitialSnapshot
			s.reinferNext = true
		}
	}

	if c.state == stateInGame {
		e, n := c.buffer.Consume(s.tickDuration())
		c.consumed = uint8(min(int(c.consumed)+int(n), math.MaxUint8))
		t.step.Accept(c.player, e)
	}
}

func (s *Server) checkKickConditions(c *client, t *tickState) {
	now := t.now
	if now.Sub(c.lastReceived) > s.vars.NetworkTimeout {
		s.kick(c, ReasonTimedOut, now)
		c.kickNoLinger = true
	}
	if s.auth != nil && s.vars.AuthTimeout > 0 && !c.verified && now.Sub(c.connectedAt) > s.vars.AuthTimeout {
		s.kick(c, ReasonUnauthenticated, now)
	}
	if limit := int(s.vars.MaxBufferedClientCommands); c.buffer.Exceeds(limit) {
		s.kick(c, fmt.Sprintf("number of pending commands (%d) exceeded the maximum of %d.", c.buffer.Len(), limit), now)
	}
	if c.kicked && !t.removedSomeone {
		if c.kickNoLinger || now.Sub(c.kickedAt) > s.vars.KickLinger() {
			s.logger.Info("disconnecting kicked client", log.Player(c.player), log.String("reason", c.kickReason))
			s.disconnect(c, c.kickReason)
		}
	}
}

// kick tells c and everyone else why c is leaving. The connection stays
// open for the linger period so the notice can be flushed.
func (s *Server) kick(c *client, reason string, now time.Time) {
	if c.gone || c.kicked {
		return
	}
	c.kicked = true
	c.kickedAt = now
	c.kickReason = reason
	s.logger.Info("kicking client", log.Player(c.player), log.String("nickname", c.nickname), log.String("reason", reason))

	notice := &protocol.ServerChat{Kind: protocol.ChatKickNotice, Subject: c.player, Text: reason}
	s.chat.Add(*notice)
	for _, other := range s.clients {
		if other != c && !other.gone && other.state >= stateWelcomed {
			other.send(notice)
		}
	}
	c.send(&protocol.ServerKick{Reason: reason})
}

func (s *Server) disconnect(c *client, reason string) {
	if c.gone {
		return
	}
	_ = c.conn.Close(reason)
	c.gone = true
	c.buffer.Clear()
	s.gate.Forget(c.conn.ID())
}

func (s *Server) forget(c *client) {
	delete(s.clients, c.player)
	delete(s.byConn, c.conn.ID())
}

func (s *Server) notice(author entropy.PlayerID, text string) {
	msg := &protocol.ServerChat{Kind: protocol.ChatServerNotice, Author: author, Text: text}
	s.chat.Add(*msg)
	for _, c := range s.clients {
		if !c.gone && c.state >= stateWelcomed {
			c.send(msg)
		}
	}
}

func (s *Server) sendSnapshot(c *client) {
	data, err := s.world.CompressedSnapshot()
	if err != nil {
		s.logger.Error("snapshot failed", log.Player(c.player), log.Error(err))
		s.disconnect(c, "Snapshot failed.")
		return
	}
	c.send(&protocol.ServerSnapshot{Step: s.world.Step(), Data: data})
}

// broadcast sends the step about to be applied to every client that has
// the state it applies to. Only the consumed count differs per client.
func (s *Server) broadcast(step entropy.StepEntropy, reinfer bool) {
	packet := &protocol.StepPacket{Reinference: reinfer, Entropy: step}
	if s.hashCountdown == 0 {
		packet.HasHash = true
		packet.Hash = s.world.StateHash()
		s.hashCountdown = s.vars.SendStateHashEvery - 1
	} else {
		s.hashCountdown--
	}
	shared := protocol.Encode(packet)

	for _, id := range s.sortedIDs() {
		c := s.clients[id]
		if !c.receivesSteps() {
			continue
		}
		if c.resync {
			s.sendSnapshot(c)
			c.resync = false
		}
		if err := c.conn.Send(protocol.EncodeStep(shared, c.consumed)); err != nil {
			if !errors.Is(err, protocol.ErrSendQueueFull) {
				s.logger.Debug("step not sent", log.Player(c.player), log.Error(err))
				continue
			}
			// The client can no longer follow the steps. Its consumed count
			// rides on the next packet, after a fresh snapshot.
			s.logger.Info("step dropped, resyncing", log.Player(c.player), log.Step(s.world.Step()))
			c.resync = true
			continue
		}
		c.consumed = 0
		if c.state == stateReceivingInitialSnapshot {
			c.state = stateInGame
		}
	}
}

func (s *Server) autosave() {
	every := s.vars.AutosaveEverySteps
	if every == 0 || s.store == nil || s.world.Step()%every != 0 {
		return
	}
	data, err := s.world.CompressedSnapshot()
	if err != nil {
		s.logger.Error("autosave snapshot failed", log.Error(err))
		return
	}
	snap := interfaces.Snapshot{
		Session:   s.session,
		Step:      s.world.Step(),
		Hash:      s.world.StateHash(),
		Data:      data,
		CreatedAt: time.Now(),
	}
	keep := s.vars.KeepSnapshots
	s.jobs.Go(autosaveJob, func(ctx context.Context) (any, error) {
		if err := s.store.Save(ctx, snap); err != nil {
			return nil, err
		}
		if keep > 0 {
			if _, err := s.store.Prune(ctx, snap.Session, keep); err != nil {
				return nil, err
			}
		}
		return snap.Step, nil
	})
}
