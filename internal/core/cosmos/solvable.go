package cosmos

import (
	"math"
	"slices"

	"github.com/zeusync/lockstep/internal/core/physics"
)

const gridCellSize = 8.0

type cell struct{ x, y int32 }

func cellOf(p physics.Vec2) cell {
	return cell{x: int32(math.Floor(p.X / gridCellSize)), y: int32(math.Floor(p.Y / gridCellSize))}
}

// solvable is derived from significant state and never serialized.
type solvable struct {
	grid map[cell][]EntityID

	// physics body handles: bodies[handles[idx]] belongs to entity slot idx
	bodies  []physics.Body
	owners  []EntityID
	handles map[uint32]int
}

func newSolvable() solvable {
	return solvable{
		grid:    make(map[cell][]EntityID),
		handles: make(map[uint32]int),
	}
}

func (s *solvable) insert(id EntityID, pos physics.Vec2) {
	k := cellOf(pos)
	s.grid[k] = append(s.grid[k], id)
}

func (s *solvable) remove(id EntityID, pos physics.Vec2) {
	k := cellOf(pos)
	ids := slices.DeleteFunc(s.grid[k], func(o EntityID) bool { return o == id })
	if len(ids) == 0 {
		delete(s.grid, k)
		return
	}
	s.grid[k] = ids
}

func (s *solvable) move(id EntityID, from, to physics.Vec2) {
	if cellOf(from) == cellOf(to) {
		return
	}
	s.remove(id, from)
	s.insert(id, to)
}

// near returns entities registered in cells overlapping the square around
// center, in ascending id order.
func (s *solvable) near(center physics.Vec2, radius float64) []EntityID {
	lo := cellOf(physics.Vec2{X: center.X - radius, Y: center.Y - radius})
	hi := cellOf(physics.Vec2{X: center.X + radius, Y: center.Y + radius})
	var out []EntityID
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			out = append(out, s.grid[cell{x: x, y: y}]...)
		}
	}
	slices.SortFunc(out, func(a, b EntityID) int {
		switch {
		case a.less(b):
			return -1
		case b.less(a):
			return 1
		}
		return 0
	})
	return out
}

func (s *solvable) addBody(id EntityID) {
	if _, ok := s.handles[id.Index]; ok {
		return
	}
	s.handles[id.Index] = len(s.bodies)
	s.bodies = append(s.bodies, physics.Body{})
	s.owners = append(s.owners, id)
}

func (s *solvable) removeBody(id EntityID) {
	h, ok := s.handles[id.Index]
	if !ok {
		return
	}
	last := len(s.bodies) - 1
	if h != last {
		s.bodies[h] = s.bodies[last]
		s.owners[h] = s.owners[last]
		s.handles[s.owners[h].Index] = h
	}
	s.bodies = s.bodies[:last]
	s.owners = s.owners[:last]
	delete(s.handles, id.Index)
}

func (s *solvable) track(id EntityID, e *entity) {
	if e.transform == nil {
		return
	}
	s.insert(id, e.transform.Pos)
	if e.movement != nil {
		s.addBody(id)
	}
}

func (s *solvable) untrack(id EntityID, e *entity) {
	if e.transform == nil {
		return
	}
	s.remove(id, e.transform.Pos)
	s.removeBody(id)
}

// Reinfer throws away every derived cache and rebuilds it from significant
// state. The result is independent of the history of incremental updates.
func (c *Cosmos) Reinfer() {
	c.solv = newSolvable()
	c.sig.eachEntity(func(id EntityID, e *entity) {
		c.solv.track(id, e)
	})
}
