package cosmos

import (
	"slices"

	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/physics"
)

type Transform struct {
	Pos physics.Vec2
}

// Movement holds the intents a player keeps pressed and the resulting velocity.
type Movement struct {
	Held uint16
	Aim  physics.Vec2
	Vel  physics.Vec2
}

func (m *Movement) holds(t entropy.IntentType) bool { return m.Held&(1<<t) != 0 }

func (m *Movement) apply(in entropy.Intent) {
	if in.Change == entropy.Pressed {
		m.Held |= 1 << in.Type
	} else {
		m.Held &^= 1 << in.Type
	}
}

type Health struct {
	Value int32
	Max   int32
}

type Inventory struct {
	Items []entropy.ItemID
}

func (i Inventory) clone() Inventory {
	return Inventory{Items: slices.Clone(i.Items)}
}

func (i Inventory) Count(item entropy.ItemID) int {
	n := 0
	for _, it := range i.Items {
		if it == item {
			n++
		}
	}
	return n
}

// take removes the first occurrence of item.
func (i *Inventory) take(item entropy.ItemID) bool {
	k := slices.Index(i.Items, item)
	if k < 0 {
		return false
	}
	i.Items = slices.Delete(i.Items, k, k+1)
	return true
}

type Shooter struct {
	ReadyAt uint64
}

// Component lists the component types an entity may carry.
type Component interface {
	Transform | Movement | Health | Inventory | Shooter
}

func component[C Component](e *entity) *C {
	var p any
	switch any((*C)(nil)).(type) {
	case *Transform:
		p = e.transform
	case *Movement:
		p = e.movement
	case *Health:
		p = e.health
	case *Inventory:
		p = e.inventory
	case *Shooter:
		p = e.shooter
	}
	c, _ := p.(*C)
	return c
}

// Get returns a read-only copy of component C of entity id. It reports false
// when the entity is gone or lacks the component.
func Get[C Component](c *Cosmos, id EntityID) (C, bool) {
	var zero C
	e := c.sig.lookup(id)
	if e == nil {
		return zero, false
	}
	p := component[C](e)
	if p == nil {
		return zero, false
	}
	return *p, true
}

func Has[C Component](c *Cosmos, id EntityID) bool {
	e := c.sig.lookup(id)
	return e != nil && component[C](e) != nil
}

// Handle is a read-only view of one entity.
type Handle struct {
	c  *Cosmos
	id EntityID
}

func (c *Cosmos) Entity(id EntityID) Handle { return Handle{c: c, id: id} }

func (h Handle) ID() EntityID { return h.id }

func (h Handle) Alive() bool { return h.c.sig.lookup(h.id) != nil }

func (h Handle) Owner() entropy.PlayerID {
	if e := h.c.sig.lookup(h.id); e != nil {
		return e.owner
	}
	return entropy.NoPlayer
}

func (h Handle) Position() (physics.Vec2, bool) {
	t, ok := Get[Transform](h.c, h.id)
	return t.Pos, ok
}

func (h Handle) Health() (Health, bool) { return Get[Health](h.c, h.id) }

func (h Handle) Inventory() (Inventory, bool) {
	inv, ok := Get[Inventory](h.c, h.id)
	return inv.clone(), ok
}
