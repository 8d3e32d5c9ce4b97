package cosmos

import (
	"bytes"

	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/physics"
)

const DefaultTickrate = 60

// Meta is the world-wide part of significant state.
type Meta struct {
	Step     uint64
	Tickrate uint32
	Seed     uint64
	Bounds   physics.Rect
}

type significant struct {
	meta     Meta
	rng      rng
	entities []entity
	free     []uint32
	mode     ModeState
}

func (s *significant) clone() significant {
	out := significant{
		meta: s.meta,
		rng:  s.rng,
		free: append([]uint32(nil), s.free...),
		mode: s.mode.clone(),
	}
	out.entities = make([]entity, len(s.entities))
	for i, e := range s.entities {
		out.entities[i] = e.clone()
	}
	return out
}

// Config describes a fresh world.
type Config struct {
	Tickrate uint32
	Seed     uint64
	Bounds   physics.Rect
	// Integrator defaults to a parallel Euler integrator.
	Integrator physics.Integrator
}

func DefaultConfig() Config {
	return Config{
		Tickrate: DefaultTickrate,
		Seed:     1,
		Bounds:   physics.Rect{Min: physics.Vec2{X: -64, Y: -64}, Max: physics.Vec2{X: 64, Y: 64}},
	}
}

// Cosmos is one simulated world. It is not safe for concurrent use; readers
// on other goroutines go through a Handoff.
type Cosmos struct {
	sig        significant
	solv       solvable
	integrator physics.Integrator
}

func New(cfg Config) (*Cosmos, error) {
	if cfg.Tickrate == 0 {
		return nil, ErrInvalidTickrate
	}
	c := &Cosmos{
		sig: significant{
			meta: Meta{Tickrate: cfg.Tickrate, Seed: cfg.Seed, Bounds: cfg.Bounds},
			rng:  seedRNG(cfg.Seed),
		},
		integrator: cfg.Integrator,
	}
	if c.integrator == nil {
		c.integrator = physics.Euler{MinParallel: 256}
	}
	c.Reinfer()
	return c, nil
}

func (c *Cosmos) Meta() Meta { return c.sig.meta }

func (c *Cosmos) Step() uint64 { return c.sig.meta.Step }

func (c *Cosmos) Tickrate() uint32 { return c.sig.meta.Tickrate }

// Delta is the fixed duration of one step in seconds.
func (c *Cosmos) Delta() float64 { return 1 / float64(c.sig.meta.Tickrate) }

// Time is the simulated time in seconds.
func (c *Cosmos) Time() float64 { return float64(c.sig.meta.Step) / float64(c.sig.meta.Tickrate) }

func (c *Cosmos) Paused() bool { return c.sig.mode.Paused }

func (c *Cosmos) Round() uint32 { return c.sig.mode.Round }

// Players returns a copy of the mode's player records in ascending id order.
func (c *Cosmos) Players() []PlayerState {
	return append([]PlayerState(nil), c.sig.mode.Players...)
}

func (c *Cosmos) Player(id entropy.PlayerID) (PlayerState, bool) {
	p := c.sig.mode.player(id)
	if p == nil {
		return PlayerState{}, false
	}
	return *p, true
}

func (c *Cosmos) Rule(id entropy.RuleID) int32 { return c.sig.mode.rule(id) }

// EntityCount is the number of live entities.
func (c *Cosmos) EntityCount() int {
	n := 0
	c.sig.eachEntity(func(EntityID, *entity) { n++ })
	return n
}

// Entities visits live entities in slot order.
func (c *Cosmos) Entities(fn func(Handle)) {
	c.sig.eachEntity(func(id EntityID, _ *entity) { fn(Handle{c: c, id: id}) })
}

// Near returns live entities within radius of center in ascending id order.
func (c *Cosmos) Near(center physics.Vec2, radius float64) []EntityID {
	var out []EntityID
	r2 := radius * radius
	for _, id := range c.solv.near(center, radius) {
		e := c.sig.lookup(id)
		if e == nil || e.transform == nil {
			continue
		}
		if physics.Distance2(center, e.transform.Pos) <= r2 {
			out = append(out, id)
		}
	}
	return out
}

// Clone returns an independent copy with freshly inferred caches.
func (c *Cosmos) Clone() *Cosmos {
	out := &Cosmos{sig: c.sig.clone(), integrator: c.integrator}
	out.Reinfer()
	return out
}

// CopyFrom overwrites c with the state of other, reusing c's integrator.
func (c *Cosmos) CopyFrom(other *Cosmos) {
	c.sig = other.sig.clone()
	c.Reinfer()
}

// Equal compares significant state byte for byte.
func (c *Cosmos) Equal(o *Cosmos) bool {
	return bytes.Equal(c.SignificantBytes(), o.SignificantBytes())
}
