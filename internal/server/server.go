// Package server runs the authoritative lockstep session: it gathers client
// input once per tick, broadcasts the resulting step and advances its own
// copy of the world.
package server

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/config"
	"github.com/zeusync/lockstep/internal/core/cosmos"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/events/bus"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/physics"
	"github.com/zeusync/lockstep/internal/core/protocol"
	"github.com/zeusync/lockstep/internal/core/storage/interfaces"
	"github.com/zeusync/lockstep/internal/jobs"
	"github.com/zeusync/lockstep/internal/rcon"
	"github.com/zeusync/lockstep/pkg/concurrent"
)

// Deps are the collaborators of a Server. Only Vars and Logger are required.
type Deps struct {
	Vars    config.ServerVars
	Private config.PrivateVars
	Logger  log.Log
	Bus     bus.EventBus
	// Store receives autosaves when Vars.AutosaveEverySteps is set.
	Store interfaces.SnapshotStore
	// Auth verifies hello tokens. Nil marks every client verified.
	Auth jobs.Authenticator
	// Integrator overrides the world's default integrator.
	Integrator physics.Integrator
}

type Server struct {
	vars    config.ServerVars
	logger  log.Log
	bus     bus.EventBus
	store   interfaces.SnapshotStore
	auth    jobs.Authenticator
	jobs    *jobs.Dispatcher
	policy  rcon.Policy
	gate    *rcon.Gate
	inbox   *protocol.Inbox
	session uuid.UUID
	started time.Time

	world   *cosmos.Cosmos
	handoff cosmos.Handoff

	mu       sync.Mutex
	incoming []protocol.Conn

	clients  map[entropy.PlayerID]*client
	byConn   map[string]*client
	nextID   entropy.PlayerID
	events   []protocol.Event
	rconCmds []entropy.GeneralCommand

	hashCountdown uint32
	reinferNext   bool
	shutdown      bool
	chat          *ChatHistory

	running atomic.Bool
	closed  atomic.Bool
}

func New(deps Deps) (*Server, error) {
	if err := deps.Vars.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}
	if deps.Bus == nil {
		deps.Bus = bus.New()
	}
	v := deps.Vars
	half := v.WorldHalfExtent
	world, err := cosmos.New(cosmos.Config{
		Tickrate:   v.Tickrate,
		Seed:       v.Seed,
		Bounds:     physics.Rect{Min: physics.Vec2{X: -half, Y: -half}, Max: physics.Vec2{X: half, Y: half}},
		Integrator: deps.Integrator,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create world")
	}

	s := &Server{
		vars:    v,
		logger:  deps.Logger.With(log.String("component", "server")),
		bus:     deps.Bus,
		store:   deps.Store,
		auth:    deps.Auth,
		jobs:    jobs.NewDispatcher(context.Background(), 8),
		gate:    rcon.DefaultGate(),
		inbox:   protocol.NewInbox(),
		session: uuid.New(),
		world:   world,
		clients: make(map[entropy.PlayerID]*client),
		byConn:  make(map[string]*client),
		nextID:  1,
		chat:    NewChatHistory(64),
		policy: rcon.Policy{
			Password:              deps.Private.RconPassword,
			MasterPassword:        deps.Private.MasterRconPassword,
			AutoAuthorizeLoopback: v.AutoAuthorizeLoopbackForRcon,
			AutoAuthorizeInternal: v.AutoAuthorizeInternalForRcon,
		},
	}
	if s.policy.MasterPassword == "" {
		s.logger.Warn("master rcon password is empty, only auto-authorized clients get master rcon")
	}
	if s.policy.Password == "" {
		s.logger.Warn("rcon password is empty, only auto-authorized clients get rcon")
	}
	s.handoff.Publish(world)
	return s, nil
}

// Inbox receives the frames of every attached connection. Transports
// deliver into it.
func (s *Server) Inbox() *protocol.Inbox { return s.inbox }

// Session identifies this run in the snapshot archive.
func (s *Server) Session() uuid.UUID { return s.session }

func (s *Server) Chat() *ChatHistory { return s.chat }

// Attach hands a new connection to the server. It is picked up on the next
// tick and may be called from any goroutine.
func (s *Server) Attach(conn protocol.Conn) {
	s.mu.Lock()
	s.incoming = append(s.incoming, conn)
	s.mu.Unlock()
}

// View calls fn with a read-only copy of the world as of the last tick.
func (s *Server) View(fn func(*cosmos.Cosmos)) bool {
	return s.handoff.Read(fn)
}

// Run accepts connections from listeners and ticks until ctx is cancelled
// or an administrator requests a shutdown.
func (s *Server) Run(ctx context.Context, listeners ...protocol.Listener) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	scope := concurrent.NewScope(ctx, 0)

	for _, l := range listeners {
		scope.Go(func(ctx context.Context) error {
			s.acceptLoop(ctx, l)
			return nil
		})
	}
	scope.Go(func(ctx context.Context) error {
		defer cancel()
		ticker := time.NewTicker(s.vars.TickDuration())
		defer ticker.Stop()
		s.started = time.Now()
		s.logger.Info("server running",
			log.Uint32("tickrate", s.vars.Tickrate),
			log.String("session", s.session.String()))
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				if err := s.Tick(now); err != nil {
					if errors.Is(err, ErrShutdown) {
						s.logger.Info("shutting down on rcon request")
						return nil
					}
					return err
				}
			}
		}
	})

	err := scope.Wait()
	for _, l := range listeners {
		_ = l.Close()
	}
	s.Close()
	return err
}

func (s *Server) acceptLoop(ctx context.Context, l protocol.Listener) {
	for {
		conn, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, protocol.ErrConnectionClosed) {
				s.logger.Error("accept failed", log.Error(err))
			}
			return
		}
		s.Attach(conn)
	}
}

// Close tells every client the server is going away and waits for pending
// jobs such as autosaves.
func (s *Server) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	for _, c := range s.clients {
		if !c.gone {
			_ = c.conn.Close(ReasonShutdown)
		}
	}
	s.mu.Lock()
	for _, conn := range s.incoming {
		_ = conn.Close(ReasonShutdown)
	}
	s.incoming = nil
	s.mu.Unlock()
	s.jobs.Wait()
}

func (s *Server) sortedIDs() []entropy.PlayerID {
	return slices.Sorted(maps.Keys(s.clients))
}

func (s *Server) tickDuration() time.Duration { return s.vars.TickDuration() }

// runtimeInfo is answered to rcon clients.
func (s *Server) runtimeInfo(now time.Time) rcon.RuntimeInfo {
	info := rcon.RuntimeInfo{
		Step:     s.world.Step(),
		Tickrate: s.world.Tickrate(),
		Round:    s.world.Round(),
		Paused:   s.world.Paused(),
		Players:  len(s.world.Players()),
		Clients:  len(s.clients),
	}
	if !s.started.IsZero() {
		info.UptimeSeconds = int64(now.Sub(s.started) / time.Second)
	}
	return info
}
