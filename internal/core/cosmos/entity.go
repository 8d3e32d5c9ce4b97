package cosmos

import (
	"fmt"

	"github.com/zeusync/lockstep/internal/core/entropy"
)

// EntityID addresses an entity slot. Generation tells apart successive
// occupants of the same slot, so a stale id never resolves to a newer entity.
type EntityID struct {
	Index      uint32
	Generation uint32
}

// IsSet reports whether id was ever issued. Generations start at 1.
func (id EntityID) IsSet() bool { return id.Generation != 0 }

func (id EntityID) String() string {
	if !id.IsSet() {
		return "entity(none)"
	}
	return fmt.Sprintf("entity(%d:%d)", id.Index, id.Generation)
}

func (id EntityID) less(o EntityID) bool {
	if id.Index != o.Index {
		return id.Index < o.Index
	}
	return id.Generation < o.Generation
}

type entity struct {
	generation uint32
	alive      bool
	owner      entropy.PlayerID

	transform *Transform
	movement  *Movement
	health    *Health
	inventory *Inventory
	shooter   *Shooter
}

func (e entity) clone() entity {
	out := e
	if e.transform != nil {
		v := *e.transform
		out.transform = &v
	}
	if e.movement != nil {
		v := *e.movement
		out.movement = &v
	}
	if e.health != nil {
		v := *e.health
		out.health = &v
	}
	if e.inventory != nil {
		v := e.inventory.clone()
		out.inventory = &v
	}
	if e.shooter != nil {
		v := *e.shooter
		out.shooter = &v
	}
	return out
}

// lookup resolves id to its live slot or nil.
func (s *significant) lookup(id EntityID) *entity {
	if !id.IsSet() || int(id.Index) >= len(s.entities) {
		return nil
	}
	e := &s.entities[id.Index]
	if !e.alive || e.generation != id.Generation {
		return nil
	}
	return e
}

// create stores e in the most recently freed slot, or a new one.
func (s *significant) create(e entity) EntityID {
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
		e.generation = s.entities[idx].generation + 1
		s.entities[idx] = e
	} else {
		idx = uint32(len(s.entities))
		e.generation = 1
		s.entities = append(s.entities, e)
	}
	s.entities[idx].alive = true
	return EntityID{Index: idx, Generation: s.entities[idx].generation}
}

func (s *significant) destroy(id EntityID) bool {
	e := s.lookup(id)
	if e == nil {
		return false
	}
	*e = entity{generation: e.generation}
	s.free = append(s.free, id.Index)
	return true
}

// eachEntity visits live entities in slot order.
func (s *significant) eachEntity(fn func(EntityID, *entity)) {
	for i := range s.entities {
		e := &s.entities[i]
		if e.alive {
			fn(EntityID{Index: uint32(i), Generation: e.generation}, e)
		}
	}
}
